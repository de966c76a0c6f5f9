package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/internal/events"
)

type streamedSnapshot struct {
	Index         uint64 `json:"index"`
	Timestamp     string `json:"ts"`
	TotalValueUSD string `json:"total_value_usd"`
	TWRPercent    string `json:"twr_percent,omitempty"`
	PnL           string `json:"pnl,omitempty"`
}

// handleSnapshotStream replays snapshots after ?after= (default 0) and then
// streams new ones along with balance, cash flow and rebalance events.
// New snapshots are picked up by polling the store, and a snapshot event from
// the broadcaster triggers an immediate poll.
func (s *Server) handleSnapshotStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	var lastIndex uint64
	if raw := r.URL.Query().Get("after"); raw != "" {
		idx, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "after must be a snapshot index")
			return
		}
		lastIndex = idx
	}

	sub := s.engine.Events().Subscribe()
	defer s.engine.Events().Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(s.pollInterval)
	defer pollTicker.Stop()

	sendSnapshots := func() error {
		records, err := s.engine.SnapshotsAfter(r.Context(), lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			out := streamedSnapshot{
				Index:         record.Index,
				Timestamp:     record.Snapshot.Timestamp.Format(time.RFC3339),
				TotalValueUSD: record.Snapshot.TotalValueUSD.StringFixed(2),
			}
			if record.Snapshot.TWR != nil {
				out.TWRPercent = record.Snapshot.TWR.String()
			}
			if record.Snapshot.PnL != nil {
				out.PnL = record.Snapshot.PnL.StringFixed(2)
			}
			if err := writeEvent(w, "snapshot", out); err != nil {
				return err
			}
			flusher.Flush()
			lastIndex = record.Index
		}

		return nil
	}

	if err := sendSnapshots(); err != nil {
		s.logger.Error("snapshot stream initial load", zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendSnapshots(); err != nil {
				s.logger.Warn("snapshot stream poll", zap.Error(err))
			}
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if err := s.forwardEvent(w, ev, sendSnapshots); err != nil {
				s.logger.Warn("snapshot stream event", zap.String("kind", string(ev.Kind)), zap.Error(err))
				continue
			}
			flusher.Flush()
		}
	}
}

func (s *Server) forwardEvent(w http.ResponseWriter, ev events.Event, sendSnapshots func() error) error {
	switch ev.Kind {
	case events.SnapshotAppended:
		return sendSnapshots()
	case events.BalancesRefreshed:
		return writeEvent(w, "balances", balancesResponse{Balances: ev.Balances, TotalValueUSD: ev.Balances.Total()})
	case events.CashFlowRecorded:
		return writeEvent(w, "cashflow", ev.CashFlow)
	case events.RebalanceExecuted:
		return writeEvent(w, "rebalance", ev.Report)
	default:
		return nil
	}
}

func writeEvent(w http.ResponseWriter, name string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)

	return err
}
