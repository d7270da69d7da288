package models

import "time"

// Notification types
const (
	NotificationFollow = "follow"
	NotificationLike   = "like"
)

// Notification represents a user notification (PostgreSQL). User and post
// ids are MongoDB ObjectID hex strings.
type Notification struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	Type            string    `json:"type" gorm:"size:30;index"` // follow, like
	ActorID         string    `json:"actor_id" gorm:"size:24;index"`
	RecipientID     string    `json:"recipient_id" gorm:"size:24;index"`
	TargetID        string    `json:"target_id" gorm:"size:24"` // post ID or user ID
	TargetType      string    `json:"target_type" gorm:"size:20"` // post, user
	PreviewImageURL string    `json:"preview_image_url"`
	Message         string    `json:"message"`
	IsRead          bool      `json:"is_read" gorm:"default:false;index"`
	CreatedAt       time.Time `json:"created_at" gorm:"index"`
}
