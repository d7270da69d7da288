package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a member of the network stored in the users collection
type User struct {
	ID        primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Name      string               `json:"name" bson:"name"`
	Username  string               `json:"username" bson:"username"`
	Bio       string               `json:"bio" bson:"bio"`
	ImageURL  string               `json:"image_url" bson:"image_url"`
	ImageKey  string               `json:"-" bson:"image_key,omitempty"` // Blob id on the media host, empty for external avatars
	Email     string               `json:"email" bson:"email"`
	Password  string               `json:"-" bson:"password"` // Store hashed password, ignore for JSON serialization
	Posts     []primitive.ObjectID `json:"posts" bson:"posts"`
	Saves     []primitive.ObjectID `json:"saves" bson:"saves"`
	Following []primitive.ObjectID `json:"following" bson:"following"`
	Followers []primitive.ObjectID `json:"followers" bson:"followers"`
	CreatedAt time.Time            `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time            `json:"updated_at" bson:"updated_at"`
}

// UserProfile is a user with their authored and saved posts resolved
type UserProfile struct {
	User
	Posts []Post `json:"posts"`
	Saves []Post `json:"saves"`
}

// SignupRequest enumerates every field accepted at signup; anything else in
// the body is ignored.
type SignupRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=50"`
	Username string `json:"username" validate:"omitempty,min=2,max=30"`
	Bio      string `json:"bio" validate:"omitempty,max=280"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// FirebaseLoginRequest defines the request body for Firebase login
type FirebaseLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// UpdateUserRequest holds the patchable profile fields. Nil means unchanged.
type UpdateUserRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=50"`
	Username *string `json:"username,omitempty" validate:"omitempty,min=2,max=30"`
	Bio      *string `json:"bio,omitempty" validate:"omitempty,max=280"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
}

// IsEmpty reports whether the request changes nothing
func (r UpdateUserRequest) IsEmpty() bool {
	return r.Name == nil && r.Username == nil && r.Bio == nil && r.Email == nil
}

// FollowRequest names the user to follow
type FollowRequest struct {
	UserID string `json:"userIdToFollow" validate:"required,len=24,hexadecimal"`
}

// UnfollowRequest names the user to unfollow
type UnfollowRequest struct {
	UserID string `json:"userIdToUnfollow" validate:"required,len=24,hexadecimal"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}
