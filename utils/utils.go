package utils

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"os"
)

// GetEnv returns the value of an environment variable or the fallback when
// the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// CreateFolder creates a directory (and parents) if it does not exist.
func CreateFolder(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", path, err)
	}
	return nil
}

// GenerateUniqueID returns a random 32-bit identifier for recordings and
// stored detections.
func GenerateUniqueID() uint32 {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failing is unrecoverable for the process anyway
		panic(fmt.Sprintf("unable to read random source: %v", err))
	}
	return binary.BigEndian.Uint32(buf[:])
}
