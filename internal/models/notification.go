package models

import "time"

// Notification types double as the real-time payload discriminators.
const (
	NotificationFollow   = "FOLLOW"
	NotificationUnfollow = "UNFOLLOW"
	NotificationLike     = "LIKE"
	NotificationUnlike   = "UNLIKE"
)

// Notification is a durable per-recipient record derived from a domain event (PostgreSQL)
type Notification struct {
	ID            string    `json:"id" gorm:"primaryKey;size:36"`
	Type          string    `json:"type" gorm:"size:16;index"`
	ActorID       uint      `json:"actor_id" gorm:"index"`
	ActorUsername string    `json:"actor_username" gorm:"size:30"`
	RecipientID   uint      `json:"recipient_id" gorm:"index"`
	PostID        string    `json:"post_id,omitempty"` // empty for follow/unfollow
	IsRead        bool      `json:"is_read" gorm:"default:false;index"`
	CreatedAt     time.Time `json:"created_at" gorm:"index"`
}
