package processor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/LilVoxy/ministry_analytics/ETL/models"
)

// ErrNoSnapshot is returned when no snapshot has been written yet
var ErrNoSnapshot = errors.New("no sheet snapshot available")

// snapshotMagic prefixes every snapshot file; the trailing byte is the format version
var snapshotMagic = []byte("MSNP\x01")

// EncodeSheet serializes a raw sheet:
// 1. JSON encoding of the rows and their origin
// 2. snappy compression (CompressSnapshot)
func EncodeSheet(sheet *models.RawSheet) ([]byte, error) {
	if sheet == nil {
		return nil, fmt.Errorf("nil sheet")
	}
	payload, err := json.Marshal(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sheet: %w", err)
	}
	return append(append([]byte{}, snapshotMagic...), CompressSnapshot(payload)...), nil
}

// DecodeSheet reverses EncodeSheet
func DecodeSheet(data []byte) (*models.RawSheet, error) {
	if !bytes.HasPrefix(data, snapshotMagic) {
		return nil, fmt.Errorf("not a sheet snapshot")
	}
	payload, err := DecompressSnapshot(data[len(snapshotMagic):])
	if err != nil {
		return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
	}
	var sheet models.RawSheet
	if err := json.Unmarshal(payload, &sheet); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &sheet, nil
}

// SnapshotStore keeps the last fetched sheet on disk
type SnapshotStore struct {
	path string
}

// NewSnapshotStore creates a store writing to path
func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

// Path returns the snapshot file location
func (s *SnapshotStore) Path() string {
	return s.path
}

// Save replaces the snapshot atomically
func (s *SnapshotStore) Save(sheet *models.RawSheet) error {
	data, err := EncodeSheet(sheet)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot; ErrNoSnapshot when the file does not exist
func (s *SnapshotStore) Load() (*models.RawSheet, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return DecodeSheet(data)
}
