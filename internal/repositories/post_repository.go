package repositories

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/anonto42/snapgram/backend/internal/apperrors"
	"github.com/anonto42/snapgram/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	GetPostsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Post, error)
	ListPosts(ctx context.Context, skip, limit int64) ([]models.Post, error)
	CountPosts(ctx context.Context) (int64, error)
	SearchPosts(ctx context.Context, term string, limit int64) ([]models.Post, error)
	UpdatePost(ctx context.Context, id primitive.ObjectID, update models.PostUpdate) (*models.Post, error)
	SetImage(ctx context.Context, id primitive.ObjectID, url, key string) error
	DeletePost(ctx context.Context, id primitive.ObjectID) error
	// ToggleLike flips userID in the post's likes and reports whether it was added.
	ToggleLike(ctx context.Context, postID, userID primitive.ObjectID) (*models.Post, bool, error)
}

// MongoPostRepository implements PostRepository for MongoDB
type MongoPostRepository struct {
	collection *mongo.Collection
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{collection: db.Collection("posts")}
}

// EnsureIndexes indexes posts by creator
func (r *MongoPostRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "creator", Value: 1}},
	})
	return err
}

// CreatePost creates a new post in MongoDB
func (r *MongoPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	post.ID = primitive.NewObjectID()
	post.CreatedAt = time.Now()
	post.UpdatedAt = post.CreatedAt
	post.Likes = objectIDsOrEmpty(post.Likes)
	if post.Tags == nil {
		post.Tags = []string{}
	}
	_, err := r.collection.InsertOne(ctx, post)
	return err
}

// GetPostByID retrieves a post by ID from MongoDB
func (r *MongoPostRepository) GetPostByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	var post models.Post
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NewNotFoundError("post", id.Hex())
		}
		return nil, err
	}
	return &post, nil
}

// GetPostsByIDs returns the posts that still exist, in the order of ids.
// Ids whose post is gone are dropped.
func (r *MongoPostRepository) GetPostsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Post, error) {
	posts := []models.Post{}
	if len(ids) == 0 {
		return posts, nil
	}
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var found []models.Post
	if err = cursor.All(ctx, &found); err != nil {
		return nil, err
	}

	byID := make(map[primitive.ObjectID]models.Post, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

// ListPosts returns one window of posts in insertion order
func (r *MongoPostRepository) ListPosts(ctx context.Context, skip, limit int64) ([]models.Post, error) {
	findOptions := options.Find().SetSkip(skip).SetLimit(limit).SetSort(bson.D{{Key: "_id", Value: 1}})
	return r.find(ctx, bson.D{}, findOptions)
}

// CountPosts counts every post. It is a separate read from ListPosts and may
// disagree with it under concurrent writes.
func (r *MongoPostRepository) CountPosts(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.D{})
}

// SearchPosts matches term as a case-insensitive literal substring of the
// caption, the location or any tag. An empty term matches everything.
func (r *MongoPostRepository) SearchPosts(ctx context.Context, term string, limit int64) ([]models.Post, error) {
	filter := bson.M{}
	if term != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
		filter = bson.M{"$or": bson.A{
			bson.M{"caption": rx},
			bson.M{"location": rx},
			bson.M{"tags": rx},
		}}
	}
	return r.find(ctx, filter, options.Find().SetLimit(limit))
}

func (r *MongoPostRepository) find(ctx context.Context, filter interface{}, opts *options.FindOptions) ([]models.Post, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// UpdatePost sets the given fields and returns the updated post
func (r *MongoPostRepository) UpdatePost(ctx context.Context, id primitive.ObjectID, update models.PostUpdate) (*models.Post, error) {
	set := bson.M{"updated_at": time.Now()}
	if update.Caption != nil {
		set["caption"] = *update.Caption
	}
	if update.Location != nil {
		set["location"] = *update.Location
	}
	if update.Tags != nil {
		set["tags"] = update.Tags
	}

	var post models.Post
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NewNotFoundError("post", id.Hex())
		}
		return nil, err
	}
	return &post, nil
}

// SetImage points the post at a new image URL and blob key
func (r *MongoPostRepository) SetImage(ctx context.Context, id primitive.ObjectID, url, key string) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"image_url": url, "image_key": key, "updated_at": time.Now()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.NewNotFoundError("post", id.Hex())
	}
	return nil
}

// DeletePost deletes a post by ID from MongoDB
func (r *MongoPostRepository) DeletePost(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperrors.NewNotFoundError("post", id.Hex())
	}
	return nil
}

func (r *MongoPostRepository) ToggleLike(ctx context.Context, postID, userID primitive.ObjectID) (*models.Post, bool, error) {
	var post models.Post
	liked, err := toggleMember(ctx, r.collection, postID, "likes", userID, &post)
	if err != nil {
		if errors.Is(err, errNoDocument) {
			return nil, false, apperrors.NewNotFoundError("post", postID.Hex())
		}
		return nil, false, err
	}
	return &post, liked, nil
}
