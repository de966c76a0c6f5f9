// Package settings persists rebalancing allocation targets.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
)

const defaultPath = "./wal/settings/allocation.json"

// Store keeps allocation targets in a JSON file written atomically.
type Store struct {
	mu   sync.Mutex
	path string
}

type allocationFile struct {
	UpdatedAt time.Time         `json:"updated_at"`
	Targets   map[string]string `json:"targets"`
}

// NewStore creates the store, making sure the parent directory exists.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create settings dir")
	}

	return &Store{path: path}, nil
}

// Load returns the saved targets, or nil when nothing was saved yet.
func (s *Store) Load() (domain.AllocationTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "read allocation settings")
	}
	if len(payload) == 0 {
		return nil, nil
	}

	var file allocationFile
	if err := json.Unmarshal(payload, &file); err != nil {
		return nil, errors.Wrap(err, "decode allocation settings")
	}

	targets := make(domain.AllocationTarget, len(file.Targets))
	for asset, raw := range file.Targets {
		pct, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "decode target for %s", asset)
		}
		targets[asset] = pct
	}

	return targets, nil
}

// Save validates and writes the targets via a temp file.
func (s *Store) Save(targets domain.AllocationTarget) error {
	targets = targets.Normalize()
	if err := targets.Validate(); err != nil {
		return err
	}

	file := allocationFile{
		UpdatedAt: time.Now().UTC(),
		Targets:   make(map[string]string, len(targets)),
	}
	for asset, pct := range targets {
		file.Targets[asset] = pct.String()
	}

	payload, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode allocation settings")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write allocation settings temp file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist allocation settings")
	}

	return nil
}
