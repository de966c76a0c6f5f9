// Package simstate persists the paper-trading wallet so restarts keep balances.
package simstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const defaultStateDir = "./wal/simulate"

// Store reads and writes simulator state as a JSON file.
type Store struct {
	path string
}

func getStateDir(dir string) string {
	if dir != "" {
		return dir
	}
	if stateDir := os.Getenv("FOLIO_SIMULATE_STATE_DIR"); stateDir != "" {
		return stateDir
	}

	return defaultStateDir
}

// NewStore creates a state store named after scope under dir.
func NewStore(dir, scope string) (*Store, error) {
	stateDir := getStateDir(dir)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create simulate state dir")
	}

	name := sanitizeScope(scope)
	if name == "" {
		name = "wallet"
	}

	return &Store{path: filepath.Join(stateDir, fmt.Sprintf("%s.json", name))}, nil
}

// State persisted simulator data.
type State struct {
	Wallet    map[string]string `json:"wallet"`
	Orders    int64             `json:"orders"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewState converts an in-memory wallet into its stored form.
func NewState(wallet map[string]decimal.Decimal, orders int64, ts time.Time) State {
	stored := make(map[string]string, len(wallet))
	for asset, amount := range wallet {
		stored[asset] = amount.String()
	}

	return State{Wallet: stored, Orders: orders, UpdatedAt: ts}
}

// WalletAmounts decodes the stored wallet.
func (s *State) WalletAmounts() (map[string]decimal.Decimal, error) {
	wallet := make(map[string]decimal.Decimal, len(s.Wallet))
	for asset, raw := range s.Wallet {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "decode wallet amount for %s", asset)
		}
		wallet[asset] = amount
	}

	return wallet, nil
}

// Load reads simulator state from disk. Missing state yields nil.
func (s *Store) Load() (*State, error) {
	if s == nil || s.path == "" {
		return nil, nil
	}

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "read simulate state")
	}

	if len(payload) == 0 {
		return nil, nil
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, errors.Wrap(err, "decode simulate state")
	}

	return &state, nil
}

// Save writes simulator state to disk atomically via temp file.
func (s *Store) Save(state State) error {
	if s == nil || s.path == "" {
		return nil
	}

	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode simulate state")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write simulate state temp file")
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist simulate state")
	}

	return nil
}

func sanitizeScope(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return ""
	}

	var b strings.Builder

	prevUnderscore := false

	for _, r := range value {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)

			prevUnderscore = false

			continue
		}

		if !prevUnderscore {
			b.WriteByte('_')

			prevUnderscore = true
		}
	}

	return strings.Trim(b.String(), "_")
}
