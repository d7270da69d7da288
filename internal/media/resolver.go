package media

import (
	"context"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/anonto42/snapgram/backend/internal/apperrors"
	"github.com/anonto42/snapgram/backend/pkg/logging"
	"github.com/google/uuid"
)

// Folders that uploads are grouped under
const (
	FolderPosts    = "posts"
	FolderProfiles = "profiles"
)

// Image is a stored image reference. Key is empty for images that do not live
// on the media host, such as generated avatars.
type Image struct {
	URL string
	Key string
}

// Upload is an image received from a client
type Upload struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Resolver maps entity image references to blobs on the media host and keeps
// the two in step when images are added, replaced or released.
type Resolver struct {
	store  BlobStore
	host   string
	logger *slog.Logger
}

// NewResolver creates a resolver. publicURL is the prefix of every URL the
// store hands out; only URLs on its host are considered ours.
func NewResolver(store BlobStore, publicURL string, logger *slog.Logger) (*Resolver, error) {
	u, err := url.Parse(publicURL)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		store:  store,
		host:   strings.ToLower(u.Host),
		logger: logging.WithComponent(logger, "media"),
	}, nil
}

// DeriveBlobID recovers the blob key from an image URL: the last two path
// segments joined with "/", extension stripped. It reports false for empty
// URLs and URLs that are not on the media host.
func (r *Resolver) DeriveBlobID(rawURL string) (string, bool) {
	if rawURL == "" {
		return "", false
	}
	u, err := url.Parse(rawURL)
	if err != nil || !strings.EqualFold(u.Host, r.host) {
		return "", false
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 {
		return "", false
	}
	folder, file := segments[len(segments)-2], segments[len(segments)-1]
	file = strings.TrimSuffix(file, path.Ext(file))
	if folder == "" || file == "" {
		return "", false
	}
	return folder + "/" + file, true
}

func (r *Resolver) blobKey(img Image) (string, bool) {
	if img.Key != "" {
		return img.Key, true
	}
	return r.DeriveBlobID(img.URL)
}

// Upload stores up under folder with a fresh key.
func (r *Resolver) Upload(ctx context.Context, folder string, up *Upload) (Image, error) {
	if up == nil || len(up.Data) == 0 {
		return Image{}, apperrors.NewValidationError("file", "image is empty")
	}
	key := folder + "/" + uuid.NewString()
	if err := r.store.Upload(ctx, key, up.Data, up.ContentType); err != nil {
		return Image{}, apperrors.NewExternalServiceError("media", err)
	}
	return Image{URL: r.store.URL(key), Key: key}, nil
}

// Replace swaps current for a new upload. A nil upload leaves current in
// place. The new blob is uploaded first, then commit records it on the
// entity, and only then is the old blob released. When commit fails the new
// blob is released and current stays in effect.
func (r *Resolver) Replace(ctx context.Context, current Image, folder string, up *Upload, commit func(Image) error) (Image, error) {
	if up == nil {
		return current, nil
	}
	next, err := r.Upload(ctx, folder, up)
	if err != nil {
		return current, err
	}
	if err := commit(next); err != nil {
		r.Release(ctx, next)
		return current, err
	}
	r.Release(ctx, current)
	return next, nil
}

// Release deletes the blob behind img. Failures are logged and otherwise
// ignored; a leaked blob never fails the owning operation.
func (r *Resolver) Release(ctx context.Context, img Image) {
	key, ok := r.blobKey(img)
	if !ok {
		return
	}
	if err := r.store.Remove(ctx, key); err != nil {
		logging.FromContext(ctx, r.logger).Warn("blob delete failed", "key", key, "error", err)
	}
}
