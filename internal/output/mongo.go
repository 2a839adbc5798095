package output

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kumma49/kuaishou-topn-downloader/internal/model"
)

const recordsCollection = "records"

// MongoSink appends result records to a capped-free collection. Records are
// never updated or deleted.
type MongoSink struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoSink(mongoURL, dbName string) (*MongoSink, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURL))
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	coll := client.Database(dbName).Collection(recordsCollection)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "page_url", Value: 1}}},
		{Keys: bson.D{{Key: "resolved_at", Value: -1}}},
	}
	// Indexes might already exist
	_, _ = coll.Indexes().CreateMany(ctx, indexes)

	return &MongoSink{client: client, coll: coll}, nil
}

func (s *MongoSink) Append(ctx context.Context, rec model.ResultRecord) error {
	_, err := s.coll.InsertOne(ctx, rec)
	return err
}

func (s *MongoSink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
