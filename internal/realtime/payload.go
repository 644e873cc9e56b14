package realtime

import "time"

// Wire event names.
const (
	EventNewPost       = "NEW_POST"
	EventFollowingFeed = "following-feed"
	EventNotification  = "notification"
	EventPing          = "ping"
)

// ActorPayload is the compact user shape embedded in every wire payload.
type ActorPayload struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// PostPayload is the denormalized post carried by feed pushes.
type PostPayload struct {
	ID        string       `json:"id"`
	Content   string       `json:"content"`
	Author    ActorPayload `json:"author"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewPostPayload is sent on the public and follower feed channels when a
// post is created.
type NewPostPayload struct {
	Type string      `json:"type"` // always NEW_POST
	Post PostPayload `json:"post"`
}

// PingPayload is the no-op heartbeat body.
type PingPayload struct {
	Status string `json:"status"`
}
