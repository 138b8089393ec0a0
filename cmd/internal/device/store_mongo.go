package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCollection is the collection name for device records.
const MongoCollection = "device"

// namespaceNotFound is the server code for listIndexes on a missing collection.
const namespaceNotFound = 26

// MongoRegistry is a Registry backed by a MongoDB collection with a unique
// index on device_id. The client is owned by the caller.
type MongoRegistry struct {
	coll *mongo.Collection
}

type mongoDevice struct {
	DeviceID   string    `bson:"device_id"`
	DeviceName string    `bson:"device_name"`
	MAC        string    `bson:"mac"`
	Online     bool      `bson:"online"`
	AddTime    time.Time `bson:"add_time"`
	UpdateTime time.Time `bson:"update_time"`
}

// NewMongoRegistry constructs a Registry over db.device.
func NewMongoRegistry(db *mongo.Database) (*MongoRegistry, error) {
	if db == nil {
		return nil, errors.New("device: nil mongo database")
	}
	return &MongoRegistry{coll: db.Collection(MongoCollection)}, nil
}

// EnsureIndexes creates the unique device_id index that makes Insert atomic.
func (r *MongoRegistry) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "device_id", Value: 1}},
		Options: options.Index().SetName("device_id_unique").SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo ensure indexes: %w", err)
	}
	return nil
}

// CheckIndexes verifies that the unique device_id index exists. Run it instead of
// EnsureIndexes when indexes are managed outside the process: without the
// index Insert cannot detect a taken id.
func (r *MongoRegistry) CheckIndexes(ctx context.Context) error {
	ok, err := hasUniqueIndex(ctx, r.coll, "device_id")
	if err != nil {
		return fmt.Errorf("mongo check indexes: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w on %s.device_id", ErrMissingIndex, r.coll.Name())
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

// Exists reports whether id is registered.
func (r *MongoRegistry) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{{Key: "device_id", Value: id}}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Insert stores rec; a duplicate key on device_id maps to ErrDeviceExists.
func (r *MongoRegistry) Insert(ctx context.Context, rec Record) error {
	_, err := r.coll.InsertOne(ctx, mongoDevice{
		DeviceID:   rec.DeviceID,
		DeviceName: rec.DeviceName,
		MAC:        rec.MAC,
		Online:     rec.Online,
		AddTime:    rec.AddTime.UTC(),
		UpdateTime: rec.UpdateTime.UTC(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return ErrDeviceExists
	}
	return err
}

// Get loads a record by id.
func (r *MongoRegistry) Get(ctx context.Context, id string) (Record, error) {
	var doc mongoDevice
	err := r.coll.FindOne(ctx, bson.D{{Key: "device_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, ErrDeviceNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return Record{
		DeviceID:   doc.DeviceID,
		DeviceName: doc.DeviceName,
		MAC:        doc.MAC,
		Online:     doc.Online,
		AddTime:    doc.AddTime.UTC(),
		UpdateTime: doc.UpdateTime.UTC(),
	}, nil
}
