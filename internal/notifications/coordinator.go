package notifications

import (
	"errors"
	"log/slog"
	"time"

	"github.com/anonto42/micro-blog/backend/internal/events"
	"github.com/anonto42/micro-blog/backend/internal/models"
	"github.com/anonto42/micro-blog/backend/internal/realtime"
	"github.com/anonto42/micro-blog/backend/internal/repositories"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no notification exists for the given id.
	ErrNotFound = errors.New("notification not found")
	// ErrUnauthorized is returned when the caller is not the notification's
	// recipient; the record is left untouched.
	ErrUnauthorized = errors.New("caller is not the notification recipient")
)

// View is the client-facing notification shape, shared by the query API and
// the real-time push so a reconnecting client sees the same record it was
// pushed.
type View struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	ActorID       uint      `json:"actorId"`
	ActorUsername string    `json:"actorUsername"`
	PostID        string    `json:"postId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	IsRead        bool      `json:"isRead"`
}

// ToView converts a persisted notification into its wire representation.
func ToView(n models.Notification) View {
	return View{
		ID:            n.ID,
		Type:          n.Type,
		ActorID:       n.ActorID,
		ActorUsername: n.ActorUsername,
		PostID:        n.PostID,
		CreatedAt:     n.CreatedAt,
		IsRead:        n.IsRead,
	}
}

// Coordinator persists a durable notification record per qualifying domain
// event, pushes it to the recipient's live notification stream, and owns the
// read/unread state machine.
type Coordinator struct {
	repo     repositories.NotificationRepository
	registry *realtime.Registry
	logger   *slog.Logger
}

// NewCoordinator creates a Coordinator over the notification-feed registry.
func NewCoordinator(repo repositories.NotificationRepository, registry *realtime.Registry, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		repo:     repo,
		registry: registry,
		logger:   logger,
	}
}

// RegisterHandlers subscribes the coordinator to every notification-producing
// event. Called once at startup.
func (s *Coordinator) RegisterHandlers(bus *events.Bus) {
	bus.Subscribe(events.LikedName, s.handleLiked)
	bus.Subscribe(events.UnlikedName, s.handleUnliked)
	bus.Subscribe(events.FollowedName, s.handleFollowed)
	bus.Subscribe(events.UnfollowedName, s.handleUnfollowed)
}

func (s *Coordinator) handleLiked(ev events.Event) {
	if e, ok := ev.(events.Liked); ok {
		s.record(models.NotificationLike, e.Actor, e.Post.AuthorID, e.Post.ID)
	}
}

func (s *Coordinator) handleUnliked(ev events.Event) {
	if e, ok := ev.(events.Unliked); ok {
		s.record(models.NotificationUnlike, e.Actor, e.Post.AuthorID, e.Post.ID)
	}
}

func (s *Coordinator) handleFollowed(ev events.Event) {
	if e, ok := ev.(events.Followed); ok {
		s.record(models.NotificationFollow, e.Follower, e.FolloweeID, "")
	}
}

func (s *Coordinator) handleUnfollowed(ev events.Event) {
	if e, ok := ev.(events.Unfollowed); ok {
		s.record(models.NotificationUnfollow, e.Follower, e.FolloweeID, "")
	}
}

// record persists the notification and then pushes it to the recipient.
// Persistence comes first so a client reconnecting right after the push can
// already read the record through the query path; if the record cannot be
// persisted, no push happens.
func (s *Coordinator) record(notifType string, actor models.UserCompact, recipientID uint, postID string) {
	if actor.ID == recipientID {
		return // no self-notifications
	}

	notification := &models.Notification{
		ID:            uuid.NewString(),
		Type:          notifType,
		ActorID:       actor.ID,
		ActorUsername: actor.Username,
		RecipientID:   recipientID,
		PostID:        postID,
		CreatedAt:     time.Now(),
	}
	if err := s.repo.CreateNotification(notification); err != nil {
		s.logger.Error("persisting notification failed",
			"type", notifType, "recipient_id", recipientID, "error", err)
		return
	}

	s.registry.DeliverTo(realtime.UserKey(recipientID), realtime.Message{
		Event: realtime.EventNotification,
		Data:  ToView(*notification),
	})
}

// MarkAsRead moves one notification to read. Only the recipient may do so;
// the transition is one-way and idempotent.
func (s *Coordinator) MarkAsRead(id string, callerID uint) error {
	notification, err := s.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if notification.RecipientID != callerID {
		return ErrUnauthorized
	}
	if notification.IsRead {
		return nil
	}
	return s.repo.MarkAsRead(id)
}

// MarkAllAsRead moves every unread notification of the caller to read as a
// single batch. Already-read records are unaffected.
func (s *Coordinator) MarkAllAsRead(callerID uint) error {
	return s.repo.MarkAllAsRead(callerID)
}

// List returns the caller's notifications, newest first, with the total count
// for pagination.
func (s *Coordinator) List(callerID uint, page, limit int) ([]View, int64, error) {
	notifications, total, err := s.repo.GetByRecipientID(callerID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	return toViews(notifications), total, nil
}

// ListUnread returns the caller's unread notifications, newest first.
func (s *Coordinator) ListUnread(callerID uint) ([]View, error) {
	notifications, err := s.repo.GetUnreadByRecipientID(callerID)
	if err != nil {
		return nil, err
	}
	return toViews(notifications), nil
}

// UnreadCount returns the number of unread notifications for the caller.
func (s *Coordinator) UnreadCount(callerID uint) (int64, error) {
	return s.repo.GetUnreadCount(callerID)
}

func toViews(notifications []models.Notification) []View {
	views := make([]View, len(notifications))
	for i, n := range notifications {
		views[i] = ToView(n)
	}
	return views
}
