package models

// ChatMember is a user as registered with the chat provider
type ChatMember struct {
	ID    string `json:"id" validate:"required,len=24,hexadecimal"`
	Name  string `json:"name" validate:"max=100"`
	Image string `json:"image" validate:"omitempty,url"`
}

// OpenMessageRequest asks for the direct channel between the caller and the
// creator of a post. The caller side comes from the token.
type OpenMessageRequest struct {
	Creator ChatMember `json:"creator" validate:"required"`
}
