package db

import (
	"fmt"

	"gunshot-detection/models"
	"gunshot-detection/utils"
)

// Client is the storage backend for detection records.
type Client interface {
	StoreDetection(detection *models.Detection) error
	GetAllDetections() ([]models.Detection, error)
	GetDetectionsByLocation(lat, lng, radiusKm float64) ([]models.Detection, error)
	TotalDetections() (int, error)
	Close() error
}

// NewDBClient selects a backend from the DB_TYPE environment variable.
// SQLite is the default; MongoDB is used for shared deployments.
func NewDBClient() (Client, error) {
	dbType := utils.GetEnv("DB_TYPE", "sqlite")
	switch dbType {
	case "sqlite":
		return NewSQLiteClient(utils.GetEnv("SQLITE_DB_PATH", "storage/detections.db"))
	case "mongo":
		return NewMongoClient(utils.GetEnv("MONGO_URI", "mongodb://localhost:27017"))
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}
