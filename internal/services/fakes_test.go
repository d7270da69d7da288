package services

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/snapgram/backend/internal/apperrors"
	"github.com/anonto42/snapgram/backend/internal/media"
	"github.com/anonto42/snapgram/backend/internal/models"
	"github.com/anonto42/snapgram/backend/internal/repositories"
	"github.com/anonto42/snapgram/backend/pkg/logging"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeUsers is an in-memory UserRepository. Membership changes are atomic
// under its lock, like single-document updates in the store.
type fakeUsers struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User

	// failRelation makes AddRelation/RemoveRelation fail for a user and field
	failRelation func(id primitive.ObjectID, field repositories.RelationField) error
	failPull     error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[primitive.ObjectID]*models.User{}}
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Posts = append([]primitive.ObjectID{}, u.Posts...)
	c.Saves = append([]primitive.ObjectID{}, u.Saves...)
	c.Following = append([]primitive.ObjectID{}, u.Following...)
	c.Followers = append([]primitive.ObjectID{}, u.Followers...)
	c.Password = ""
	return &c
}

func (f *fakeUsers) field(u *models.User, field repositories.RelationField) *[]primitive.ObjectID {
	switch field {
	case repositories.FieldPosts:
		return &u.Posts
	case repositories.FieldSaves:
		return &u.Saves
	case repositories.FieldFollowing:
		return &u.Following
	default:
		return &u.Followers
	}
}

func (f *fakeUsers) CreateUser(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperrors.ErrEmailTaken
		}
	}
	user.ID = primitive.NewObjectID()
	user.CreatedAt = time.Now()
	stored := *user
	stored.Posts, stored.Saves = []primitive.ObjectID{}, []primitive.ObjectID{}
	stored.Following, stored.Followers = []primitive.ObjectID{}, []primitive.ObjectID{}
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUsers) GetUserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("user", id.Hex())
	}
	return cloneUser(u), nil
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			c := cloneUser(u)
			c.Password = u.Password
			return c, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (f *fakeUsers) GetUsersByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := []models.User{}
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			users = append(users, *cloneUser(u))
		}
	}
	return users, nil
}

func (f *fakeUsers) GetUsers(_ context.Context, exclude *primitive.ObjectID) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := []models.User{}
	for id, u := range f.users {
		if exclude != nil && id == *exclude {
			continue
		}
		users = append(users, *cloneUser(u))
	}
	return users, nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, id primitive.ObjectID, req models.UpdateUserRequest) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("user", id.Hex())
	}
	if req.Email != nil {
		for other, o := range f.users {
			if other != id && o.Email == *req.Email {
				return nil, apperrors.ErrEmailTaken
			}
		}
		u.Email = *req.Email
	}
	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.Username != nil {
		u.Username = *req.Username
	}
	if req.Bio != nil {
		u.Bio = *req.Bio
	}
	return cloneUser(u), nil
}

func (f *fakeUsers) SetImage(_ context.Context, id primitive.ObjectID, url, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperrors.NewNotFoundError("user", id.Hex())
	}
	u.ImageURL, u.ImageKey = url, key
	return nil
}

func (f *fakeUsers) AddRelation(_ context.Context, id primitive.ObjectID, field repositories.RelationField, value primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRelation != nil {
		if err := f.failRelation(id, field); err != nil {
			return false, err
		}
	}
	u, ok := f.users[id]
	if !ok {
		return false, apperrors.NewNotFoundError("user", id.Hex())
	}
	arr := f.field(u, field)
	if containsID(*arr, value) {
		return false, nil
	}
	*arr = append(*arr, value)
	return true, nil
}

func (f *fakeUsers) RemoveRelation(_ context.Context, id primitive.ObjectID, field repositories.RelationField, value primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRelation != nil {
		if err := f.failRelation(id, field); err != nil {
			return false, err
		}
	}
	u, ok := f.users[id]
	if !ok {
		return false, apperrors.NewNotFoundError("user", id.Hex())
	}
	arr := f.field(u, field)
	if !containsID(*arr, value) {
		return false, nil
	}
	*arr = removeID(*arr, value)
	return true, nil
}

func (f *fakeUsers) ToggleRelation(_ context.Context, id primitive.ObjectID, field repositories.RelationField, value primitive.ObjectID) (*models.User, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, false, apperrors.NewNotFoundError("user", id.Hex())
	}
	arr := f.field(u, field)
	if containsID(*arr, value) {
		*arr = removeID(*arr, value)
		return cloneUser(u), false, nil
	}
	*arr = append(*arr, value)
	return cloneUser(u), true, nil
}

func (f *fakeUsers) PullPostEverywhere(_ context.Context, postID primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPull != nil {
		return 0, f.failPull
	}
	var n int64
	for _, u := range f.users {
		if containsID(u.Posts, postID) || containsID(u.Saves, postID) {
			u.Posts = removeID(u.Posts, postID)
			u.Saves = removeID(u.Saves, postID)
			n++
		}
	}
	return n, nil
}

// fakePosts is an in-memory PostRepository ordered by insertion
type fakePosts struct {
	mu    sync.Mutex
	posts map[primitive.ObjectID]*models.Post
	order []primitive.ObjectID

	failCreate error
	failDelete error
}

func newFakePosts() *fakePosts {
	return &fakePosts{posts: map[primitive.ObjectID]*models.Post{}}
}

func clonePost(p *models.Post) *models.Post {
	c := *p
	c.Likes = append([]primitive.ObjectID{}, p.Likes...)
	c.Tags = append([]string{}, p.Tags...)
	return &c
}

func (f *fakePosts) CreatePost(_ context.Context, post *models.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return f.failCreate
	}
	post.ID = primitive.NewObjectID()
	post.CreatedAt = time.Now()
	if post.Likes == nil {
		post.Likes = []primitive.ObjectID{}
	}
	f.posts[post.ID] = clonePost(post)
	f.order = append(f.order, post.ID)
	return nil
}

func (f *fakePosts) GetPostByID(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("post", id.Hex())
	}
	return clonePost(p), nil
}

func (f *fakePosts) GetPostsByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	posts := []models.Post{}
	for _, id := range ids {
		if p, ok := f.posts[id]; ok {
			posts = append(posts, *clonePost(p))
		}
	}
	return posts, nil
}

func (f *fakePosts) live() []*models.Post {
	var out []*models.Post
	for _, id := range f.order {
		if p, ok := f.posts[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakePosts) ListPosts(_ context.Context, skip, limit int64) ([]models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	posts := []models.Post{}
	live := f.live()
	for i := skip; i < int64(len(live)) && i < skip+limit; i++ {
		posts = append(posts, *clonePost(live[i]))
	}
	return posts, nil
}

func (f *fakePosts) CountPosts(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.posts)), nil
}

func (f *fakePosts) SearchPosts(_ context.Context, term string, limit int64) ([]models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	term = strings.ToLower(term)
	match := func(s string) bool { return strings.Contains(strings.ToLower(s), term) }
	posts := []models.Post{}
	for _, p := range f.live() {
		if int64(len(posts)) == limit {
			break
		}
		hit := match(p.Caption) || match(p.Location)
		for _, tag := range p.Tags {
			hit = hit || match(tag)
		}
		if hit {
			posts = append(posts, *clonePost(p))
		}
	}
	return posts, nil
}

func (f *fakePosts) UpdatePost(_ context.Context, id primitive.ObjectID, update models.PostUpdate) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("post", id.Hex())
	}
	if update.Caption != nil {
		p.Caption = *update.Caption
	}
	if update.Location != nil {
		p.Location = *update.Location
	}
	if update.Tags != nil {
		p.Tags = update.Tags
	}
	return clonePost(p), nil
}

func (f *fakePosts) SetImage(_ context.Context, id primitive.ObjectID, url, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return apperrors.NewNotFoundError("post", id.Hex())
	}
	p.ImageURL, p.ImageKey = url, key
	return nil
}

func (f *fakePosts) DeletePost(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete != nil {
		return f.failDelete
	}
	if _, ok := f.posts[id]; !ok {
		return apperrors.NewNotFoundError("post", id.Hex())
	}
	delete(f.posts, id)
	return nil
}

func (f *fakePosts) ToggleLike(_ context.Context, postID, userID primitive.ObjectID) (*models.Post, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[postID]
	if !ok {
		return nil, false, apperrors.NewNotFoundError("post", postID.Hex())
	}
	if containsID(p.Likes, userID) {
		p.Likes = removeID(p.Likes, userID)
		return clonePost(p), false, nil
	}
	p.Likes = append(p.Likes, userID)
	return clonePost(p), true, nil
}

// fakeNotifications records notifications in memory
type fakeNotifications struct {
	mu         sync.Mutex
	items      []models.Notification
	nextID     uint
	failCreate error
}

func (f *fakeNotifications) CreateNotification(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return f.failCreate
	}
	f.nextID++
	n.ID = f.nextID
	n.CreatedAt = time.Now()
	f.items = append(f.items, *n)
	return nil
}

func (f *fakeNotifications) forRecipient(recipientID string) []*models.Notification {
	var out []*models.Notification
	for i := range f.items {
		if f.items[i].RecipientID == recipientID {
			out = append(out, &f.items[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (f *fakeNotifications) GetByRecipientID(_ context.Context, recipientID string, page, limit int) ([]models.Notification, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.forRecipient(recipientID)
	items := []models.Notification{}
	for i := (page - 1) * limit; i < len(all) && i < page*limit; i++ {
		items = append(items, *all[i])
	}
	return items, int64(len(all)), nil
}

func (f *fakeNotifications) GetUnreadCount(_ context.Context, recipientID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, item := range f.forRecipient(recipientID) {
		if !item.IsRead {
			n++
		}
	}
	return n, nil
}

func (f *fakeNotifications) MarkAsRead(_ context.Context, recipientID string, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.forRecipient(recipientID) {
		if item.ID == id {
			item.IsRead = true
			return nil
		}
	}
	return apperrors.NewNotFoundError("notification", "")
}

func (f *fakeNotifications) MarkAllAsRead(_ context.Context, recipientID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, item := range f.forRecipient(recipientID) {
		if !item.IsRead {
			item.IsRead = true
			n++
		}
	}
	return n, nil
}

// memBlobs is an in-memory media host
type memBlobs struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	uploadErr error
}

func (m *memBlobs) Upload(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return m.uploadErr
	}
	m.blobs[key] = data
	return nil
}

func (m *memBlobs) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func (m *memBlobs) URL(key string) string {
	return "http://media.test/snapgram/" + key
}

func (m *memBlobs) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[key]
	return ok
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// testEnv wires every service over the fakes
type testEnv struct {
	users         *fakeUsers
	posts         *fakePosts
	notifications *fakeNotifications
	blobs         *memBlobs
	logs          *bytes.Buffer

	relationships *RelationshipService
	postService   *PostService
	notifier      *NotificationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		users:         newFakeUsers(),
		posts:         newFakePosts(),
		notifications: &fakeNotifications{},
		blobs:         &memBlobs{blobs: map[string][]byte{}},
		logs:          &bytes.Buffer{},
	}
	logger := logging.New(logging.Options{Writer: &syncWriter{buf: env.logs}})
	resolver, err := media.NewResolver(env.blobs, "http://media.test/snapgram", logger)
	require.NoError(t, err)

	env.notifier = NewNotificationService(env.notifications, env.users, logger)
	env.relationships = NewRelationshipService(env.users, env.posts, resolver, env.notifier, logger)
	env.postService = NewPostService(env.posts, env.users, resolver, logger)
	return env
}

func (e *testEnv) addUser(t *testing.T, name string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com"}
	require.NoError(t, e.users.CreateUser(context.Background(), u))
	stored, err := e.users.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	return stored
}

func (e *testEnv) addPost(t *testing.T, creator *models.User, caption string) *models.Post {
	t.Helper()
	res, err := e.postService.Create(context.Background(), creator, models.CreatePostRequest{Caption: caption}, nil)
	require.NoError(t, err)
	return res.Post
}

func (e *testEnv) user(t *testing.T, id primitive.ObjectID) *models.User {
	t.Helper()
	u, err := e.users.GetUserByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

type syncWriter struct {
	mu  sync.Mutex
	buf *bytes.Buffer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}
