package store

import (
	"context"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/stacksolve/pkg/io"
)

// MongoConfig configures a MongoDB backend.
type MongoConfig struct {
	URI        string
	Database   string // default "stacksolve"
	Collection string // default "specs"
}

// MongoBackend stores node records as documents keyed by hash, so a site
// can share one installed-spec database between machines.
type MongoBackend struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoBackend connects to MongoDB and verifies the connection.
func NewMongoBackend(ctx context.Context, cfg MongoConfig) (*MongoBackend, error) {
	if cfg.Database == "" {
		cfg.Database = "stacksolve"
	}
	if cfg.Collection == "" {
		cfg.Collection = "specs"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoBackend{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

func (b *MongoBackend) Put(ctx context.Context, records []io.Record) error {
	if len(records) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, len(records))
	for i, r := range records {
		models[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": r.Hash}).
			SetReplacement(r).
			SetUpsert(true)
	}
	if _, err := b.coll.BulkWrite(ctx, models); err != nil {
		return fmt.Errorf("write specs: %w", err)
	}
	return nil
}

func (b *MongoBackend) Match(ctx context.Context, prefix string) ([]io.Record, error) {
	filter := bson.M{}
	if prefix != "" {
		filter["_id"] = bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}
	}
	cur, err := b.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find specs: %w", err)
	}
	var out []io.Record
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode specs: %w", err)
	}
	return out, nil
}

func (b *MongoBackend) Delete(ctx context.Context, hash string) error {
	if _, err := b.coll.DeleteOne(ctx, bson.M{"_id": hash}); err != nil {
		return fmt.Errorf("delete %s: %w", hash, err)
	}
	return nil
}

func (b *MongoBackend) Close() error {
	return b.client.Disconnect(context.Background())
}

var _ Backend = (*MongoBackend)(nil)
