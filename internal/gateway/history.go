package gateway

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/edgecycle/internal/node"
	"github.com/flemzord/edgecycle/internal/store"
)

const (
	defaultLimit = 20
	maxLimit     = 500
)

func parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return min(n, maxLimit), true
}

// handleCycles returns an http.HandlerFunc for GET /api/cycles.
func (g *Gateway) handleCycles() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.history == nil {
			writeError(w, http.StatusNotFound, "run history is disabled")
			return
		}
		limit, ok := parseLimit(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}

		cycles, err := g.history.RecentCycles(r.Context(), limit)
		if err != nil {
			g.logger.Error("list cycles failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to read history")
			return
		}
		if cycles == nil {
			cycles = []store.CycleRecord{}
		}
		writeJSON(w, http.StatusOK, cycles)
	}
}

// AccountResponse is the JSON response for GET /api/accounts/{address}.
type AccountResponse struct {
	Address string                `json:"address"`
	State   *node.WalletState     `json:"state,omitempty"`
	History []store.AccountRecord `json:"history"`
}

// handleAccount returns an http.HandlerFunc for GET /api/accounts/{address}.
func (g *Gateway) handleAccount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address := chi.URLParam(r, "address")
		limit, ok := parseLimit(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}

		resp := AccountResponse{Address: address, History: []store.AccountRecord{}}
		if g.state != nil {
			if ws, ok := g.state.Wallet(address); ok {
				resp.State = &ws
			}
		}
		if g.history != nil {
			hist, err := g.history.AccountHistory(r.Context(), address, limit)
			if err != nil {
				g.logger.Error("account history failed", "address", address, "error", err)
				writeError(w, http.StatusInternalServerError, "failed to read history")
				return
			}
			if hist != nil {
				resp.History = hist
			}
		}

		if resp.State == nil && len(resp.History) == 0 {
			writeError(w, http.StatusNotFound, "unknown wallet")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
