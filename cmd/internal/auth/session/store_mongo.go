package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCollection is the collection name for per-user nonces.
const MongoCollection = "nonce"

// namespaceNotFound is the server code for listIndexes on a missing collection.
const namespaceNotFound = 26

// MongoNonceStore implements NonceStore over a MongoDB collection.
//
// Nonces are written as Decimal128 so comparisons are numeric over the full
// uint64 range. Documents written by older deployments as decimal strings are
// still readable. The client is owned by the caller.
type MongoNonceStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoNonceStore constructs a NonceStore over db.nonce.
func NewMongoNonceStore(db *mongo.Database) (*MongoNonceStore, error) {
	if db == nil {
		return nil, errors.New("session: nil mongo database")
	}
	return &MongoNonceStore{
		coll: db.Collection(MongoCollection),
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// EnsureIndexes creates the unique user_id index that SetIfGreater relies on.
func (s *MongoNonceStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetName("user_id_unique").SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo ensure indexes: %w", err)
	}
	return nil
}

// CheckIndexes verifies that the unique user_id index exists. Run it instead of
// EnsureIndexes when indexes are managed outside the process: without the
// index SetIfGreater can insert a second document per user.
func (s *MongoNonceStore) CheckIndexes(ctx context.Context) error {
	ok, err := hasUniqueIndex(ctx, s.coll, "user_id")
	if err != nil {
		return fmt.Errorf("mongo check indexes: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w on %s.user_id", ErrMissingIndex, s.coll.Name())
	}
	return nil
}

// hasUniqueIndex reports whether coll has a unique single-field index on field.
// A collection that does not exist yet has no indexes.
func hasUniqueIndex(ctx context.Context, coll *mongo.Collection, field string) (bool, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		var ce mongo.CommandError
		if errors.As(err, &ce) && ce.Code == namespaceNotFound {
			return false, nil
		}
		return false, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var idx struct {
			Key    bson.D `bson:"key"`
			Unique bool   `bson:"unique"`
		}
		if err := cur.Decode(&idx); err != nil {
			return false, err
		}
		if idx.Unique && len(idx.Key) == 1 && idx.Key[0].Key == field {
			return true, nil
		}
	}
	return false, cur.Err()
}

// Get returns the stored nonce or 0.
func (s *MongoNonceStore) Get(ctx context.Context, userID string) (uint64, error) {
	var doc struct {
		Nonce bson.RawValue `bson:"nonce"`
	}
	err := s.coll.FindOne(ctx, bson.D{{Key: "user_id", Value: userID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return nonceFromBSON(doc.Nonce)
}

// SetIfGreater upserts with a filter that only matches a smaller stored nonce.
// When the stored nonce is not smaller the upsert collides with the unique
// user_id index, which is reported as "not written".
func (s *MongoNonceStore) SetIfGreater(ctx context.Context, userID string, nonce uint64) (bool, error) {
	if nonce == 0 {
		return false, nil
	}
	dec, err := primitive.ParseDecimal128(strconv.FormatUint(nonce, 10))
	if err != nil {
		return false, err
	}

	res, err := s.coll.UpdateOne(ctx,
		bson.D{
			{Key: "user_id", Value: userID},
			{Key: "nonce", Value: bson.D{{Key: "$lt", Value: dec}}},
		},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "nonce", Value: dec},
			{Key: "updated_at", Value: s.now()},
		}}},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		return s.upgradeLegacy(ctx, userID, nonce, dec)
	}
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1 || res.UpsertedCount == 1, nil
}

// upgradeLegacy handles documents whose nonce is still a decimal string, which
// never match the numeric $lt filter. It compares in process and swaps with a
// filter on the exact old value, so a concurrent writer makes it a no-op.
func (s *MongoNonceStore) upgradeLegacy(ctx context.Context, userID string, nonce uint64, dec primitive.Decimal128) (bool, error) {
	var doc struct {
		Nonce bson.RawValue `bson:"nonce"`
	}
	err := s.coll.FindOne(ctx, bson.D{{Key: "user_id", Value: userID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if doc.Nonce.Type != bsontype.String {
		return false, nil
	}

	old := doc.Nonce.StringValue()
	stored, err := strconv.ParseUint(old, 10, 64)
	if err != nil {
		return false, fmt.Errorf("session: legacy nonce: %w", err)
	}
	if nonce <= stored {
		return false, nil
	}

	res, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "user_id", Value: userID}, {Key: "nonce", Value: old}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "nonce", Value: dec},
			{Key: "updated_at", Value: s.now()},
		}}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func nonceFromBSON(v bson.RawValue) (uint64, error) {
	switch v.Type {
	case bsontype.Decimal128:
		return strconv.ParseUint(v.Decimal128().String(), 10, 64)
	case bsontype.String:
		return strconv.ParseUint(v.StringValue(), 10, 64)
	case bsontype.Int64:
		return uint64(v.Int64()), nil
	case bsontype.Int32:
		return uint64(v.Int32()), nil
	case 0, bsontype.Null:
		return 0, nil
	default:
		return 0, fmt.Errorf("session: unexpected nonce type %s", v.Type)
	}
}
