package extractors

import (
	"context"
	"errors"
	"fmt"

	"github.com/LilVoxy/ministry_analytics/ETL/models"
	"github.com/LilVoxy/ministry_analytics/ETL/utils"
	"github.com/LilVoxy/ministry_analytics/processor"
)

// SnapshotSource saves every successful fetch of the wrapped source and,
// when fallback is enabled, serves the last snapshot if the fetch fails
type SnapshotSource struct {
	inner    Source
	store    *processor.SnapshotStore
	fallback bool
	logger   *utils.ETLLogger
}

// NewSnapshotSource wraps inner with snapshot persistence
func NewSnapshotSource(inner Source, store *processor.SnapshotStore, fallback bool, logger *utils.ETLLogger) *SnapshotSource {
	return &SnapshotSource{inner: inner, store: store, fallback: fallback, logger: logger}
}

// Name implements Source
func (s *SnapshotSource) Name() string {
	return s.inner.Name()
}

// Fetch implements Source
func (s *SnapshotSource) Fetch(ctx context.Context) (*models.RawSheet, error) {
	sheet, err := s.inner.Fetch(ctx)
	if err != nil {
		if !s.fallback {
			return nil, err
		}
		cached, loadErr := s.store.Load()
		if loadErr != nil {
			return nil, fmt.Errorf("%w (snapshot fallback: %v)", err, loadErr)
		}
		s.logger.Warn("Fetch from %s failed, using snapshot from %s: %v", s.inner.Name(), cached.FetchedAt.Format("2006-01-02 15:04"), err)
		cached.Source = "snapshot"
		return cached, nil
	}

	if err := s.store.Save(sheet); err != nil {
		s.logger.Warn("Failed to write snapshot %s: %v", s.store.Path(), err)
	}
	return sheet, nil
}

// SnapshotReader serves only the stored snapshot, for offline replays
type SnapshotReader struct {
	store *processor.SnapshotStore
}

// NewSnapshotReader creates a SnapshotReader
func NewSnapshotReader(store *processor.SnapshotStore) *SnapshotReader {
	return &SnapshotReader{store: store}
}

// Name implements Source
func (r *SnapshotReader) Name() string {
	return "snapshot"
}

// Fetch implements Source
func (r *SnapshotReader) Fetch(ctx context.Context) (*models.RawSheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sheet, err := r.store.Load()
	if errors.Is(err, processor.ErrNoSnapshot) {
		return nil, fmt.Errorf("%w at %s", err, r.store.Path())
	}
	if err != nil {
		return nil, err
	}
	sheet.Source = r.Name()
	return sheet, nil
}
