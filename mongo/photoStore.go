package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"photoGeotagger/model"
)

// PhotoDocument is the stored form of a record, with a GeoJSON point for
// radius queries.
type PhotoDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	RunID     string             `bson:"runId"`
	Provider  string             `bson:"provider"`
	Record    model.PhotoRecord  `bson:"record"`
	Location  *model.GeoPoint    `bson:"location"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// PhotoStore mirrors geotagged records into a MongoDB collection.
type PhotoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	log        logrus.FieldLogger
}

// Connect opens the client, pings it and makes sure the 2dsphere index on
// location exists.
func Connect(ctx context.Context, uri, databaseName, collectionName string, log logrus.FieldLogger) (*PhotoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	coll := client.Database(databaseName).Collection(collectionName)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "location", Value: "2dsphere"}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create location index: %w", err)
	}

	log.WithField("collection", databaseName+"."+collectionName).Info("connected to MongoDB")
	return &PhotoStore{client: client, collection: coll, log: log}, nil
}

func (s *PhotoStore) Close() error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Disconnect(context.Background()); err != nil {
		return err
	}
	s.log.Debug("disconnected from MongoDB")
	return nil
}

// SaveRecord replaces any earlier document for the same image.
func (s *PhotoStore) SaveRecord(ctx context.Context, runID, provider string, rec model.PhotoRecord) error {
	doc := PhotoDocument{
		RunID:     runID,
		Provider:  provider,
		Record:    rec,
		Location:  model.NewGeoPoint(rec.Lat, rec.Lon),
		CreatedAt: time.Now().UTC(),
	}
	filter := bson.D{{Key: "record.img", Value: rec.Img}}
	_, err := s.collection.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save %s: %w", rec.Title, err)
	}
	return nil
}

// Near lists records within maxMeters of the point, closest first.
func (s *PhotoStore) Near(ctx context.Context, lat, lon float64, maxMeters int) ([]PhotoDocument, error) {
	filter := bson.D{
		{Key: "location", Value: bson.D{
			{Key: "$near", Value: bson.D{
				{Key: "$geometry", Value: model.NewGeoPoint(lat, lon)},
				{Key: "$maxDistance", Value: maxMeters},
			}},
		}},
	}
	cur, err := s.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var docs []PhotoDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}
