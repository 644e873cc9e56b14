package realtime

import (
	"log/slog"

	"github.com/anonto42/micro-blog/backend/internal/events"
	"github.com/anonto42/micro-blog/backend/internal/models"
)

// FollowerResolver returns the follower set of a user. It is queried at
// delivery time for every event; the result is a snapshot valid only for
// the current fan-out attempt and is never cached.
type FollowerResolver interface {
	GetFollowers(userID uint) ([]models.User, error)
}

// FeedPusher fans a created post out to every open public-feed connection
// and to each of the author's followers with an open follower-feed
// connection. Delivery is best-effort and never blocks waiting for a
// recipient to come online.
type FeedPusher struct {
	public    *Registry
	following *Registry
	followers FollowerResolver
	logger    *slog.Logger
}

// NewFeedPusher creates a FeedPusher over the two feed registries.
func NewFeedPusher(public, following *Registry, followers FollowerResolver, logger *slog.Logger) *FeedPusher {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedPusher{
		public:    public,
		following: following,
		followers: followers,
		logger:    logger,
	}
}

// RegisterHandlers subscribes the pusher to the events it reacts to.
func (p *FeedPusher) RegisterHandlers(bus *events.Bus) {
	bus.Subscribe(events.PostCreatedName, p.handlePostCreated)
}

func (p *FeedPusher) handlePostCreated(ev events.Event) {
	e, ok := ev.(events.PostCreated)
	if !ok {
		return
	}

	payload := NewPostPayload{
		Type: EventNewPost,
		Post: PostPayload{
			ID:        e.Post.ID,
			Content:   e.Post.Content,
			Author:    ActorPayload(e.Author),
			Timestamp: e.Post.CreatedAt,
		},
	}

	res := p.public.Broadcast(Message{Event: EventNewPost, Data: payload})
	p.logger.Debug("public feed broadcast",
		"post_id", e.Post.ID, "delivered", res.Delivered, "pruned", len(res.Pruned))

	followers, err := p.followers.GetFollowers(e.Author.ID)
	if err != nil {
		p.logger.Error("resolving followers failed", "author_id", e.Author.ID, "error", err)
		return
	}
	// Absent follower connections are expected and silent.
	for _, follower := range followers {
		p.following.DeliverTo(UserKey(follower.ID), Message{Event: EventFollowingFeed, Data: payload})
	}
}
