package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post represents a social media post stored in MongoDB
type Post struct {
	ID        primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Caption   string               `json:"caption" bson:"caption"`
	ImageURL  string               `json:"image_url" bson:"image_url"`
	ImageKey  string               `json:"-" bson:"image_key,omitempty"`
	Location  string               `json:"location" bson:"location"`
	Tags      []string             `json:"tags" bson:"tags"`
	Creator   primitive.ObjectID   `json:"creator" bson:"creator"`
	Likes     []primitive.ObjectID `json:"likes" bson:"likes"`
	CreatedAt time.Time            `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time            `json:"updated_at" bson:"updated_at"`
}

// PostView is a post with its creator and likers resolved to public users.
// Creator is nil when the creator document no longer resolves.
type PostView struct {
	ID        primitive.ObjectID `json:"id"`
	Caption   string             `json:"caption"`
	ImageURL  string             `json:"image_url"`
	Location  string             `json:"location"`
	Tags      []string           `json:"tags"`
	Creator   *User              `json:"creator"`
	Likes     []User             `json:"likes"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// PostPage is one window of the post listing
type PostPage struct {
	Posts   []PostView `json:"posts"`
	HasMore bool       `json:"hasMore"`
	Page    int        `json:"page"`
	Limit   int        `json:"limit"`
	Total   int64      `json:"total"`
}

// CreatePostRequest defines the multipart form fields for a new post
type CreatePostRequest struct {
	Caption  string   `form:"caption" validate:"required,min=1,max=2200"`
	Location string   `form:"location" validate:"max=100"`
	Tags     []string `form:"tags" validate:"omitempty,max=30,dive,max=50"`
}

// UpdatePostRequest defines the multipart form fields for updating a post.
// Empty fields keep their stored value.
type UpdatePostRequest struct {
	Caption  string   `form:"caption" validate:"omitempty,max=2200"`
	Location string   `form:"location" validate:"max=100"`
	Tags     []string `form:"tags" validate:"omitempty,max=30,dive,max=50"`
}

// PostUpdate is the set of stored fields an update touches
type PostUpdate struct {
	Caption  *string
	Location *string
	Tags     []string
}
