package events

import (
	"time"

	"github.com/anonto42/micro-blog/backend/internal/models"
)

// Event names used for handler registration and dispatch.
const (
	PostCreatedName = "post.created"
	LikedName       = "post.liked"
	UnlikedName     = "post.unliked"
	FollowedName    = "user.followed"
	UnfollowedName  = "user.unfollowed"
)

// Event is a domain event published on the Bus. Events are immutable and
// carry enough denormalized data that consumers never need a second lookup
// to build a delivery payload.
type Event interface {
	Name() string
}

// PostRef is the denormalized post snapshot carried by post-related events.
type PostRef struct {
	ID        string
	Content   string
	AuthorID  uint
	CreatedAt time.Time
}

// PostCreated is published after a new post has been persisted.
type PostCreated struct {
	Post   PostRef
	Author models.UserCompact
}

func (PostCreated) Name() string { return PostCreatedName }

// Liked is published after a like has been persisted.
type Liked struct {
	Actor models.UserCompact
	Post  PostRef
}

func (Liked) Name() string { return LikedName }

// Unliked is published after a like has been removed.
type Unliked struct {
	Actor models.UserCompact
	Post  PostRef
}

func (Unliked) Name() string { return UnlikedName }

// Followed is published after a follow relationship has been persisted.
type Followed struct {
	Follower   models.UserCompact
	FolloweeID uint
}

func (Followed) Name() string { return FollowedName }

// Unfollowed is published after a follow relationship has been removed.
type Unfollowed struct {
	Follower   models.UserCompact
	FolloweeID uint
}

func (Unfollowed) Name() string { return UnfollowedName }
