// Package conversions keeps the history of executed asset conversions.
package conversions

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/gowal"
	"go.uber.org/zap"
)

const (
	defaultDir   = "./wal/conversions"
	segmentLimit = 1000
	maxSegments  = 100
	keyPrefix    = "conversion_"
)

// WALStore append-only conversion history.
type WALStore struct {
	wal     *gowal.Wal
	mu      sync.RWMutex
	records []domain.ConversionRecord
}

// NewWALStore opens the history under dir and loads existing records.
func NewWALStore(dir string, logger *zap.Logger) (*WALStore, error) {
	if dir == "" {
		dir = defaultDir
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "conv_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init conversion history WAL")
	}

	s := &WALStore{wal: wal}
	for msg := range wal.Iterator() {
		if !strings.HasPrefix(msg.Key, keyPrefix) {
			continue
		}
		var record domain.ConversionRecord
		if err := json.Unmarshal(msg.Value, &record); err != nil {
			logger.Error("failed to decode conversion record", zap.String("key", msg.Key), zap.Error(err))
			continue
		}
		s.records = append(s.records, record)
	}

	return s, nil
}

// Save appends the record, assigning an ID when it has none.
func (s *WALStore) Save(record domain.ConversionRecord) (domain.ConversionRecord, error) {
	if s == nil || s.wal == nil {
		return domain.ConversionRecord{}, errors.New("conversion history store is not initialized")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return domain.ConversionRecord{}, errors.Wrap(err, "marshal conversion record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.wal.Write(s.wal.CurrentIndex()+1, keyPrefix+record.ID, payload); err != nil {
		return domain.ConversionRecord{}, errors.Wrap(err, "write conversion record")
	}
	s.records = append(s.records, record)

	return record, nil
}

// List returns up to limit records, newest first. limit <= 0 returns everything.
func (s *WALStore) List(limit int) ([]domain.ConversionRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("conversion history store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.records)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]domain.ConversionRecord, 0, n)
	for i := len(s.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.records[i])
	}

	return out, nil
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("conversion history store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
