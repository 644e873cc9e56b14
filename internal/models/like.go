package models

import "time"

// Like represents a like on a post
type Like struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	PostID    string    `json:"post_id" gorm:"index;uniqueIndex:idx_post_user"` // MongoDB ObjectID of the liked post, as string
	UserID    uint      `json:"user_id" gorm:"index;uniqueIndex:idx_post_user"` // ID of the user who liked the post
	CreatedAt time.Time `json:"created_at"`
}
