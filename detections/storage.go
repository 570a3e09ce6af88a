// Package detections persists gunshot detection records. A database
// backend is preferred when configured; otherwise records land in a local
// JSON file so a standalone deployment still keeps history.
package detections

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gunshot-detection/db"
	"gunshot-detection/models"
	"gunshot-detection/utils"
)

var (
	detectionsFile = "detections.json"
	mu             sync.RWMutex
	client         db.Client
)

// SetClient routes persistence through a database backend. Passing nil
// reverts to the JSON file store.
func SetClient(c db.Client) {
	mu.Lock()
	defer mu.Unlock()
	client = c
}

// SaveDetection stores a detection, stamping ID and timestamp when unset.
func SaveDetection(detection *models.Detection) error {
	mu.Lock()
	defer mu.Unlock()

	if detection.ID == 0 {
		detection.ID = time.Now().UnixNano()
	}
	if detection.Timestamp.IsZero() {
		detection.Timestamp = time.Now()
	}

	if client != nil {
		return client.StoreDetection(detection)
	}
	return saveToFile(detection)
}

// LoadDetections returns all stored detections, newest first when backed
// by a database.
func LoadDetections() ([]models.Detection, error) {
	mu.RLock()
	defer mu.RUnlock()

	if client != nil {
		return client.GetAllDetections()
	}
	return loadFromFile()
}

// LoadDetectionsNear returns detections within radiusKm of a location.
// The file store has no spatial index, so it filters in memory.
func LoadDetectionsNear(lat, lng, radiusKm float64) ([]models.Detection, error) {
	mu.RLock()
	defer mu.RUnlock()

	if client != nil {
		return client.GetDetectionsByLocation(lat, lng, radiusKm)
	}

	all, err := loadFromFile()
	if err != nil {
		return nil, err
	}
	latDelta := radiusKm / 111.0
	var near []models.Detection
	for _, d := range all {
		if d.Latitude == nil || d.Longitude == nil {
			continue
		}
		if abs(*d.Latitude-lat) < latDelta && abs(*d.Longitude-lng) < latDelta {
			near = append(near, d)
		}
	}
	return near, nil
}

func loadFromFile() ([]models.Detection, error) {
	filePath := storagePath()
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return []models.Detection{}, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading detections file: %v", err)
	}
	if len(data) == 0 {
		return []models.Detection{}, nil
	}

	var detections []models.Detection
	if err := json.Unmarshal(data, &detections); err != nil {
		return nil, fmt.Errorf("error unmarshaling detections: %v", err)
	}
	return detections, nil
}

func saveToFile(detection *models.Detection) error {
	detections, err := loadFromFile()
	if err != nil {
		return err
	}
	detections = append(detections, *detection)

	filePath := storagePath()
	if dir := filepath.Dir(filePath); dir != "." && dir != "" {
		if err := utils.CreateFolder(dir); err != nil {
			return fmt.Errorf("error creating directory: %v", err)
		}
	}

	data, err := json.MarshalIndent(detections, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling detections: %v", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("error writing detections file: %v", err)
	}
	return nil
}

func storagePath() string {
	return filepath.Join(utils.GetEnv("GUNSHOT_STORAGE_DIR", "storage"), detectionsFile)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
