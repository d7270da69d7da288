package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/anonto42/snapgram/backend/internal/apperrors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// maxToggleAttempts bounds the add/remove loop when concurrent toggles keep
// flipping the member between our two conditional updates.
const maxToggleAttempts = 3

// errNoDocument is returned by toggleMember when the document does not exist
var errNoDocument = errors.New("document not found")

// toggleMember flips membership of member in the array field of document id
// using two conditional single-document updates. Each update is atomic in the
// store, so concurrent toggles serialize: n toggles flip membership n times.
// out receives the document after the winning update.
func toggleMember(ctx context.Context, coll *mongo.Collection, id primitive.ObjectID, field string, member primitive.ObjectID, out interface{}) (bool, error) {
	after := options.FindOneAndUpdate().SetReturnDocument(options.After)

	for attempt := 0; attempt < maxToggleAttempts; attempt++ {
		now := time.Now()

		err := coll.FindOneAndUpdate(ctx,
			bson.M{"_id": id, field: bson.M{"$ne": member}},
			bson.M{"$push": bson.M{field: member}, "$set": bson.M{"updated_at": now}},
			after,
		).Decode(out)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return false, err
		}

		err = coll.FindOneAndUpdate(ctx,
			bson.M{"_id": id, field: member},
			bson.M{"$pull": bson.M{field: member}, "$set": bson.M{"updated_at": now}},
			after,
		).Decode(out)
		if err == nil {
			return false, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return false, err
		}

		// Neither condition matched: the document is gone, or a concurrent
		// toggle flipped the member between our two updates.
		count, err := coll.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return false, err
		}
		if count == 0 {
			return false, errNoDocument
		}
	}
	return false, apperrors.ErrToggleContended
}

// objectIDsOrEmpty keeps arrays stored as [] rather than null so $push and
// $addToSet never hit a null field.
func objectIDsOrEmpty(ids []primitive.ObjectID) []primitive.ObjectID {
	if ids == nil {
		return []primitive.ObjectID{}
	}
	return ids
}
