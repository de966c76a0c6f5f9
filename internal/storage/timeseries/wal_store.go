// Package timeseries persists portfolio snapshots and cash flows in an append-only WAL.
package timeseries

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/gowal"
	"go.uber.org/zap"
)

const (
	defaultDir        = "./wal/timeseries"
	segmentLimit      = 1000
	maxSegments       = 1000
	snapshotKeyPrefix = "snapshot_"
	cashFlowKeyPrefix = "cashflow_"
)

// WALStore keeps snapshots and cash flows in a WAL and serves queries from an
// in-memory index rebuilt on open. Both sequences stay ordered by timestamp.
// Snapshot records are numbered in write order starting at 1.
type WALStore struct {
	wal       *gowal.Wal
	mu        sync.RWMutex
	seq       uint64
	snapshots []domain.SnapshotRecord
	cashFlows []domain.CashFlow
	logger    *zap.Logger
}

// NewWALStore opens (or creates) the store under dir and replays existing entries.
func NewWALStore(dir string, logger *zap.Logger) (*WALStore, error) {
	if dir == "" {
		dir = defaultDir
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "ts_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init timeseries WAL")
	}

	s := &WALStore{wal: wal, logger: logger}
	s.replay()

	return s, nil
}

func (s *WALStore) replay() {
	for msg := range s.wal.Iterator() {
		switch {
		case strings.HasPrefix(msg.Key, snapshotKeyPrefix):
			var snapshot domain.Snapshot
			if err := json.Unmarshal(msg.Value, &snapshot); err != nil {
				s.logger.Error("failed to decode snapshot", zap.String("key", msg.Key), zap.Error(err))
				continue
			}
			s.seq++
			s.snapshots = append(s.snapshots, domain.SnapshotRecord{Index: s.seq, Snapshot: snapshot})
		case strings.HasPrefix(msg.Key, cashFlowKeyPrefix):
			var cf domain.CashFlow
			if err := json.Unmarshal(msg.Value, &cf); err != nil {
				s.logger.Error("failed to decode cash flow", zap.String("key", msg.Key), zap.Error(err))
				continue
			}
			s.cashFlows = append(s.cashFlows, cf)
		}
	}

	// entries may have been appended with back-dated timestamps
	sort.SliceStable(s.snapshots, func(i, j int) bool {
		return s.snapshots[i].Snapshot.Timestamp.Before(s.snapshots[j].Snapshot.Timestamp)
	})
	sort.SliceStable(s.cashFlows, func(i, j int) bool {
		return s.cashFlows[i].Timestamp.Before(s.cashFlows[j].Timestamp)
	})

	s.logger.Info("timeseries store loaded",
		zap.Int("snapshots", len(s.snapshots)),
		zap.Int("cash_flows", len(s.cashFlows)))
}

// AppendSnapshot writes the snapshot and returns its record.
func (s *WALStore) AppendSnapshot(snapshot domain.Snapshot) (domain.SnapshotRecord, error) {
	if s == nil || s.wal == nil {
		return domain.SnapshotRecord{}, errors.New("timeseries store is not initialized")
	}
	if snapshot.Timestamp.IsZero() {
		return domain.SnapshotRecord{}, errors.New("snapshot timestamp is required")
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return domain.SnapshotRecord{}, errors.Wrap(err, "marshal snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.wal.CurrentIndex() + 1
	key := fmt.Sprintf("%s%d", snapshotKeyPrefix, snapshot.Timestamp.UnixNano())
	if err := s.wal.Write(idx, key, payload); err != nil {
		return domain.SnapshotRecord{}, errors.Wrap(err, "write snapshot")
	}

	s.seq++
	record := domain.SnapshotRecord{Index: s.seq, Snapshot: snapshot}
	s.snapshots = insertSnapshot(s.snapshots, record)

	return record, nil
}

// AppendCashFlow writes the cash flow.
func (s *WALStore) AppendCashFlow(cf domain.CashFlow) error {
	if s == nil || s.wal == nil {
		return errors.New("timeseries store is not initialized")
	}
	if cf.Timestamp.IsZero() {
		return errors.New("cash flow timestamp is required")
	}

	payload, err := json.Marshal(cf)
	if err != nil {
		return errors.Wrap(err, "marshal cash flow")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.wal.CurrentIndex() + 1
	key := fmt.Sprintf("%s%d", cashFlowKeyPrefix, cf.Timestamp.UnixNano())
	if err := s.wal.Write(idx, key, payload); err != nil {
		return errors.Wrap(err, "write cash flow")
	}

	pos := sort.Search(len(s.cashFlows), func(i int) bool {
		return s.cashFlows[i].Timestamp.After(cf.Timestamp)
	})
	s.cashFlows = append(s.cashFlows, domain.CashFlow{})
	copy(s.cashFlows[pos+1:], s.cashFlows[pos:])
	s.cashFlows[pos] = cf

	return nil
}

// Snapshots returns snapshots with start <= ts <= end, ordered by time.
// Zero bounds are open-ended.
func (s *WALStore) Snapshots(start, end time.Time) ([]domain.Snapshot, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("timeseries store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Snapshot, 0, len(s.snapshots))
	for _, r := range s.snapshots {
		if domain.InWindow(r.Snapshot.Timestamp, start, end) {
			out = append(out, r.Snapshot)
		}
	}

	return out, nil
}

// CashFlows returns cash flows with start <= ts <= end, ordered by time.
func (s *WALStore) CashFlows(start, end time.Time) ([]domain.CashFlow, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("timeseries store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.CashFlow, 0, len(s.cashFlows))
	for _, cf := range s.cashFlows {
		if domain.InWindow(cf.Timestamp, start, end) {
			out = append(out, cf)
		}
	}

	return out, nil
}

// FirstSnapshot returns the earliest snapshot or nil when the store is empty.
func (s *WALStore) FirstSnapshot() (*domain.Snapshot, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("timeseries store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.snapshots) == 0 {
		return nil, nil
	}
	first := s.snapshots[0].Snapshot

	return &first, nil
}

// LastSnapshot returns the latest snapshot or nil when the store is empty.
func (s *WALStore) LastSnapshot() (*domain.Snapshot, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("timeseries store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.snapshots) == 0 {
		return nil, nil
	}
	last := s.snapshots[len(s.snapshots)-1].Snapshot

	return &last, nil
}

// SnapshotsAfter returns snapshots numbered after index, in write order.
func (s *WALStore) SnapshotsAfter(index uint64) ([]domain.SnapshotRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("timeseries store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]domain.SnapshotRecord, 0)
	for _, r := range s.snapshots {
		if r.Index > index {
			records = append(records, r)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Index < records[j].Index })

	return records, nil
}

// CurrentIndex returns the number of the latest snapshot written.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.seq
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("timeseries store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}

func insertSnapshot(records []domain.SnapshotRecord, r domain.SnapshotRecord) []domain.SnapshotRecord {
	pos := sort.Search(len(records), func(i int) bool {
		return records[i].Snapshot.Timestamp.After(r.Snapshot.Timestamp)
	})
	records = append(records, domain.SnapshotRecord{})
	copy(records[pos+1:], records[pos:])
	records[pos] = r

	return records
}
