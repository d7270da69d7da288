package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/snapgram/backend/internal/apperrors"
	"github.com/anonto42/snapgram/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RelationField names one of the id arrays on a user document
type RelationField string

const (
	FieldPosts     RelationField = "posts"
	FieldSaves     RelationField = "saves"
	FieldFollowing RelationField = "following"
	FieldFollowers RelationField = "followers"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	GetUsers(ctx context.Context, exclude *primitive.ObjectID) ([]models.User, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, req models.UpdateUserRequest) (*models.User, error)
	SetImage(ctx context.Context, id primitive.ObjectID, url, key string) error
	// AddRelation set-adds value to field; it reports whether the array changed.
	AddRelation(ctx context.Context, id primitive.ObjectID, field RelationField, value primitive.ObjectID) (bool, error)
	// RemoveRelation pulls value from field; it reports whether the array changed.
	RemoveRelation(ctx context.Context, id primitive.ObjectID, field RelationField, value primitive.ObjectID) (bool, error)
	// ToggleRelation flips membership of value in field and reports whether it was added.
	ToggleRelation(ctx context.Context, id primitive.ObjectID, field RelationField, value primitive.ObjectID) (*models.User, bool, error)
	// PullPostEverywhere removes postID from every user's saves and posts.
	PullPostEverywhere(ctx context.Context, postID primitive.ObjectID) (int64, error)
}

// MongoUserRepository implements UserRepository for MongoDB
type MongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoUserRepository creates a new MongoUserRepository
func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{collection: db.Collection("users")}
}

// EnsureIndexes creates the unique email index
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// publicProjection strips the password hash from every read
var publicProjection = bson.M{"password": 0}

// CreateUser inserts a new user with empty relationship arrays
func (r *MongoUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	user.ID = primitive.NewObjectID()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	user.Posts = objectIDsOrEmpty(user.Posts)
	user.Saves = objectIDsOrEmpty(user.Saves)
	user.Following = objectIDsOrEmpty(user.Following)
	user.Followers = objectIDsOrEmpty(user.Followers)

	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.ErrEmailTaken
		}
		return err
	}
	return nil
}

// GetUserByID retrieves a user by ID, without the password hash
func (r *MongoUserRepository) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(publicProjection)).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NewNotFoundError("user", id.Hex())
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email, including the password hash for login
func (r *MongoUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUsersByIDs returns the users that still exist among ids; missing ids are dropped
func (r *MongoUserRepository) GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetProjection(publicProjection))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUsers lists every user, optionally leaving one out
func (r *MongoUserRepository) GetUsers(ctx context.Context, exclude *primitive.ObjectID) ([]models.User, error) {
	filter := bson.M{}
	if exclude != nil {
		filter["_id"] = bson.M{"$ne": *exclude}
	}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetProjection(publicProjection))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateProfile sets the non-nil fields of req and returns the updated user
func (r *MongoUserRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, req models.UpdateUserRequest) (*models.User, error) {
	set := bson.M{"updated_at": time.Now()}
	if req.Name != nil {
		set["name"] = *req.Name
	}
	if req.Username != nil {
		set["username"] = *req.Username
	}
	if req.Bio != nil {
		set["bio"] = *req.Bio
	}
	if req.Email != nil {
		set["email"] = *req.Email
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After).SetProjection(publicProjection)
	var user models.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NewNotFoundError("user", id.Hex())
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperrors.ErrEmailTaken
		}
		return nil, err
	}
	return &user, nil
}

// SetImage points the user at a new image URL and blob key
func (r *MongoUserRepository) SetImage(ctx context.Context, id primitive.ObjectID, url, key string) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"image_url": url, "image_key": key, "updated_at": time.Now()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.NewNotFoundError("user", id.Hex())
	}
	return nil
}

// AddRelation pushes value into field unless it is already there
func (r *MongoUserRepository) AddRelation(ctx context.Context, id primitive.ObjectID, field RelationField, value primitive.ObjectID) (bool, error) {
	filter := bson.M{"_id": id, string(field): bson.M{"$ne": value}}
	return r.updateRelation(ctx, id, filter, bson.M{"$push": bson.M{string(field): value}})
}

// RemoveRelation pulls value from field when it is there
func (r *MongoUserRepository) RemoveRelation(ctx context.Context, id primitive.ObjectID, field RelationField, value primitive.ObjectID) (bool, error) {
	filter := bson.M{"_id": id, string(field): value}
	return r.updateRelation(ctx, id, filter, bson.M{"$pull": bson.M{string(field): value}})
}

// updateRelation applies a membership change guarded by filter. The guard
// makes the change report exactly whether the array moved, which the saga
// steps use to decide whether to compensate.
func (r *MongoUserRepository) updateRelation(ctx context.Context, id primitive.ObjectID, filter, update bson.M) (bool, error) {
	update["$set"] = bson.M{"updated_at": time.Now()}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("update relations of user %s: %w", id.Hex(), err)
	}
	if res.ModifiedCount > 0 {
		return true, nil
	}

	// Nothing matched: either the array was already in the wanted state or
	// the user does not exist.
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	if count == 0 {
		return false, apperrors.NewNotFoundError("user", id.Hex())
	}
	return false, nil
}

// ToggleRelation flips value in field and returns the updated user
func (r *MongoUserRepository) ToggleRelation(ctx context.Context, id primitive.ObjectID, field RelationField, value primitive.ObjectID) (*models.User, bool, error) {
	var user models.User
	added, err := toggleMember(ctx, r.collection, id, string(field), value, &user)
	if err != nil {
		if errors.Is(err, errNoDocument) {
			return nil, false, apperrors.NewNotFoundError("user", id.Hex())
		}
		return nil, false, err
	}
	user.Password = ""
	return &user, added, nil
}

// PullPostEverywhere removes postID from saves and posts of every user in one
// multi-document update
func (r *MongoUserRepository) PullPostEverywhere(ctx context.Context, postID primitive.ObjectID) (int64, error) {
	res, err := r.collection.UpdateMany(ctx,
		bson.M{"$or": bson.A{bson.M{"saves": postID}, bson.M{"posts": postID}}},
		bson.M{"$pull": bson.M{"saves": postID, "posts": postID}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
