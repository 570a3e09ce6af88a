package db

import (
	"database/sql"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"gunshot-detection/models"
	"gunshot-detection/utils"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

type SQLiteClient struct {
	db *sql.DB
}

func NewSQLiteClient(dataSourceName string) (*SQLiteClient, error) {
	// Extract the file path before query parameters
	dbPath := dataSourceName
	if idx := strings.Index(dataSourceName, "?"); idx != -1 {
		dbPath = dataSourceName[:idx]
	}

	dbDir := filepath.Dir(dbPath)
	if dbDir != "." && dbDir != "" {
		if err := utils.CreateFolder(dbDir); err != nil {
			return nil, fmt.Errorf("error creating database directory: %s", err)
		}
	}

	// Add busy timeout param to DSN (milliseconds)
	if !strings.Contains(dataSourceName, "_busy_timeout") {
		if strings.Contains(dataSourceName, "?") {
			dataSourceName += "&_busy_timeout=5000"
		} else {
			dataSourceName += "?_busy_timeout=5000"
		}
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("error connecting to SQLite: %s", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("error creating tables: %s", err)
	}

	return &SQLiteClient{db: db}, nil
}

func createTables(db *sql.DB) error {
	createDetectionsTable := `
    CREATE TABLE IF NOT EXISTS detections (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        latitude REAL,
        longitude REAL,
        is_gunshot INTEGER NOT NULL DEFAULT 0,
        event_count INTEGER NOT NULL DEFAULT 0,
        gunshot_count INTEGER NOT NULL DEFAULT 0,
        firearm TEXT,
        caliber TEXT,
        confidence REAL NOT NULL DEFAULT 0,
        snr_db REAL,
        latency_ms REAL NOT NULL DEFAULT 0,
        records TEXT NOT NULL,
        recording_path TEXT
    );
    CREATE INDEX IF NOT EXISTS idx_detections_timestamp ON detections(timestamp);
    CREATE INDEX IF NOT EXISTS idx_detections_location ON detections(latitude, longitude);
    `

	_, err := db.Exec(createDetectionsTable)
	if err != nil {
		return fmt.Errorf("error creating detections table: %s", err)
	}
	return nil
}

func (db *SQLiteClient) Close() error {
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

func (db *SQLiteClient) StoreDetection(detection *models.Detection) error {
	isGunshotInt := 0
	if detection.IsGunshot {
		isGunshotInt = 1
	}

	_, err := db.db.Exec(`
		INSERT INTO detections (
			timestamp, latitude, longitude, is_gunshot, event_count,
			gunshot_count, firearm, caliber, confidence, snr_db,
			latency_ms, records, recording_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		detection.Timestamp,
		detection.Latitude,
		detection.Longitude,
		isGunshotInt,
		detection.EventCount,
		detection.GunshotCount,
		detection.Firearm,
		detection.Caliber,
		detection.Confidence,
		detection.SNRDb,
		detection.LatencyMs,
		string(detection.Records),
		detection.RecordingPath,
	)
	if err != nil {
		return fmt.Errorf("error storing detection: %s", err)
	}
	return nil
}

func (db *SQLiteClient) TotalDetections() (int, error) {
	var count int
	err := db.db.QueryRow("SELECT COUNT(*) FROM detections").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting detections: %s", err)
	}
	return count, nil
}

func (db *SQLiteClient) GetAllDetections() ([]models.Detection, error) {
	rows, err := db.db.Query(`
		SELECT id, timestamp, latitude, longitude, is_gunshot, event_count,
		       gunshot_count, firearm, caliber, confidence, snr_db, latency_ms,
		       records, recording_path
		FROM detections
		ORDER BY timestamp DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("error querying detections: %s", err)
	}
	defer rows.Close()

	return scanDetections(rows)
}

// GetDetectionsByLocation retrieves detections within a radius of a
// location, using a degree-box approximation of the Haversine distance.
func (db *SQLiteClient) GetDetectionsByLocation(lat, lng, radiusKm float64) ([]models.Detection, error) {
	rows, err := db.db.Query(`
		SELECT id, timestamp, latitude, longitude, is_gunshot, event_count,
		       gunshot_count, firearm, caliber, confidence, snr_db, latency_ms,
		       records, recording_path
		FROM detections
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		  AND ABS(latitude - ?) < ? AND ABS(longitude - ?) < ?
		ORDER BY timestamp DESC
	`, lat, radiusKm/111.0, lng, radiusKm/(111.0*math.Cos(lat*math.Pi/180.0)))
	if err != nil {
		return nil, fmt.Errorf("error querying detections by location: %s", err)
	}
	defer rows.Close()

	return scanDetections(rows)
}

func scanDetections(rows *sql.Rows) ([]models.Detection, error) {
	var detections []models.Detection
	for rows.Next() {
		var d models.Detection
		var isGunshotInt int
		var recordsJSON string
		var firearm, caliber, recordingPath sql.NullString

		err := rows.Scan(
			&d.ID,
			&d.Timestamp,
			&d.Latitude,
			&d.Longitude,
			&isGunshotInt,
			&d.EventCount,
			&d.GunshotCount,
			&firearm,
			&caliber,
			&d.Confidence,
			&d.SNRDb,
			&d.LatencyMs,
			&recordsJSON,
			&recordingPath,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning detection: %s", err)
		}

		d.IsGunshot = isGunshotInt == 1
		d.Records = []byte(recordsJSON)
		d.Firearm = firearm.String
		d.Caliber = caliber.String
		d.RecordingPath = recordingPath.String

		detections = append(detections, d)
	}
	return detections, rows.Err()
}
