package handlers

import (
	"math"
	"net/http"
	"strconv"

	"github.com/anonto42/micro-blog/backend/internal/models"
	"github.com/anonto42/micro-blog/backend/internal/realtime"
	"github.com/anonto42/micro-blog/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// FeedHandler handles feed-related HTTP requests, including the live SSE
// subscriptions for the public and follower feeds
type FeedHandler struct {
	postRepository   repositories.PostRepository
	userRepository   repositories.UserRepository
	followRepository repositories.FollowRepository
	likeRepository   repositories.LikeRepository
	publicFeed       *realtime.Registry
	followingFeed    *realtime.Registry
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(
	postRepo repositories.PostRepository,
	userRepo repositories.UserRepository,
	followRepo repositories.FollowRepository,
	likeRepo repositories.LikeRepository,
	publicFeed *realtime.Registry,
	followingFeed *realtime.Registry,
) *FeedHandler {
	return &FeedHandler{
		postRepository:   postRepo,
		userRepository:   userRepo,
		followRepository: followRepo,
		likeRepository:   likeRepo,
		publicFeed:       publicFeed,
		followingFeed:    followingFeed,
	}
}

// RegisterFeedRoutes registers feed-related routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/feed", h.GetFeed)
	g.GET("/feed/following", h.GetFollowingFeed)
	g.GET("/feed/subscribe/following", h.SubscribeFollowingFeed)
}

// RegisterPublicFeedRoutes registers routes that do not require authentication
func (h *FeedHandler) RegisterPublicFeedRoutes(g *echo.Group) {
	g.GET("/feed/subscribe/public", h.SubscribePublicFeed)
}

// SubscribePublicFeed opens a live stream of every new post. Anyone may
// subscribe; each connection gets its own synthetic subscriber key so
// multiple tabs never replace each other.
func (h *FeedHandler) SubscribePublicFeed(c echo.Context) error {
	key := "anon-" + uuid.NewString()
	return serveStream(c, h.publicFeed, key)
}

// SubscribeFollowingFeed opens a live stream of posts from users the
// authenticated subscriber follows. Keyed by user ID, so a reconnect
// replaces the previous subscription.
func (h *FeedHandler) SubscribeFollowingFeed(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return serveStream(c, h.followingFeed, realtime.UserKey(currentUserID))
}

// EnrichedPost is a post with author info and user-specific flags
type EnrichedPost struct {
	models.Post
	Author  models.UserCompact `json:"author"`
	IsLiked bool               `json:"is_liked"`
}

// GetFeed returns enriched public feed posts, newest first
func (h *FeedHandler) GetFeed(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	page, limit := feedPagination(c)
	skip := int64((page - 1) * limit)

	posts, err := h.postRepository.GetAllPosts(c.Request().Context(), skip, int64(limit))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	totalItems, err := h.postRepository.CountPosts(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return h.feedResponse(c, posts, currentUserID, page, limit, totalItems)
}

// GetFollowingFeed returns enriched posts authored by users the caller
// follows, newest first
func (h *FeedHandler) GetFollowingFeed(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	page, limit := feedPagination(c)
	skip := int64((page - 1) * limit)

	followingIDs, err := h.followRepository.GetFollowingIDs(currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if len(followingIDs) == 0 {
		return h.feedResponse(c, nil, currentUserID, page, limit, 0)
	}

	authorKeys := make([]string, len(followingIDs))
	for i, id := range followingIDs {
		authorKeys[i] = realtime.UserKey(id)
	}

	posts, err := h.postRepository.GetPostsByUserIDs(c.Request().Context(), authorKeys, skip, int64(limit))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	totalItems, err := h.postRepository.CountPostsByUserIDs(c.Request().Context(), authorKeys)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return h.feedResponse(c, posts, currentUserID, page, limit, totalItems)
}

// feedResponse enriches the posts with author and like data and writes the
// paginated envelope.
func (h *FeedHandler) feedResponse(c echo.Context, posts []models.Post, currentUserID uint, page, limit int, totalItems int64) error {
	// Collect unique author IDs from posts
	authorIDs := make(map[string]bool)
	postIDs := make([]string, len(posts))
	for i, p := range posts {
		authorIDs[p.UserID] = true
		postIDs[i] = p.ID.Hex()
	}

	// Build author map by decimal user ID
	userMap := make(map[string]models.UserCompact)
	for uid := range authorIDs {
		id, parseErr := strconv.ParseUint(uid, 10, 32)
		if parseErr != nil {
			continue
		}
		user, err := h.userRepository.GetUserByID(uint(id))
		if err == nil {
			userMap[uid] = user.ToCompact()
		}
	}

	// Check liked status for current user
	likedMap := make(map[string]bool)
	if currentUserID > 0 {
		for _, pid := range postIDs {
			liked, _ := h.likeRepository.HasUserLikedPost(pid, currentUserID)
			likedMap[pid] = liked
		}
	}

	// Build enriched posts
	enrichedPosts := make([]EnrichedPost, len(posts))
	for i, p := range posts {
		pid := p.ID.Hex()
		enrichedPosts[i] = EnrichedPost{
			Post:    p,
			Author:  userMap[p.UserID],
			IsLiked: likedMap[pid],
		}
	}

	totalPages := int(math.Ceil(float64(totalItems) / float64(limit)))

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"posts": enrichedPosts,
		},
		"meta": echo.Map{
			"currentPage":     page,
			"totalPages":      totalPages,
			"totalItems":      totalItems,
			"itemsPerPage":    limit,
			"hasNextPage":     page < totalPages,
			"hasPreviousPage": page > 1,
		},
	})
}

func feedPagination(c echo.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 10
	}
	return page, limit
}
