package db

import (
	"context"
	"fmt"
	"math"
	"time"

	"gunshot-detection/models"
	"gunshot-detection/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoClient struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoClient(uri string) (*MongoClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("error connecting to MongoDB: %s", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("error pinging MongoDB: %s", err)
	}

	dbName := utils.GetEnv("MONGO_DB_NAME", "gunshot-detection")
	return &MongoClient{client: client, db: client.Database(dbName)}, nil
}

func (m *MongoClient) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *MongoClient) detections() *mongo.Collection {
	return m.db.Collection("detections")
}

func (m *MongoClient) StoreDetection(detection *models.Detection) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if detection.ID == 0 {
		detection.ID = time.Now().UnixNano()
	}
	_, err := m.detections().InsertOne(ctx, detection)
	if err != nil {
		return fmt.Errorf("error storing detection: %s", err)
	}
	return nil
}

func (m *MongoClient) TotalDetections() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	count, err := m.detections().CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("error counting detections: %s", err)
	}
	return int(count), nil
}

func (m *MongoClient) GetAllDetections() ([]models.Detection, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	cursor, err := m.detections().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying detections: %s", err)
	}
	defer cursor.Close(ctx)

	var detections []models.Detection
	if err := cursor.All(ctx, &detections); err != nil {
		return nil, fmt.Errorf("error decoding detections: %s", err)
	}
	return detections, nil
}

func (m *MongoClient) GetDetectionsByLocation(lat, lng, radiusKm float64) ([]models.Detection, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	latDelta := radiusKm / 111.0
	lngDelta := radiusKm / (111.0 * math.Cos(lat*math.Pi/180.0))

	filter := bson.M{
		"latitude":  bson.M{"$gte": lat - latDelta, "$lte": lat + latDelta},
		"longitude": bson.M{"$gte": lng - lngDelta, "$lte": lng + lngDelta},
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	cursor, err := m.detections().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying detections by location: %s", err)
	}
	defer cursor.Close(ctx)

	var detections []models.Detection
	if err := cursor.All(ctx, &detections); err != nil {
		return nil, fmt.Errorf("error decoding detections: %s", err)
	}
	return detections, nil
}
