// Package services holds the operations that span more than one document or
// collaborator: relationship changes, post lifecycle, accounts and chat.
package services

import (
	"context"

	"github.com/anonto42/snapgram/backend/internal/media"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxPageLimit = 50

	// searchLimit caps the number of search results
	searchLimit = 10
)

// ImageResolver uploads, replaces and releases entity images on the media host
type ImageResolver interface {
	Upload(ctx context.Context, folder string, up *media.Upload) (media.Image, error)
	Replace(ctx context.Context, current media.Image, folder string, up *media.Upload, commit func(media.Image) error) (media.Image, error)
	Release(ctx context.Context, img media.Image)
}

// TokenIssuer signs bearer tokens for logged-in users
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// NormalizePage applies the listing defaults and bounds
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}
