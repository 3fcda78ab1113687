package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/flemzord/edgecycle/internal/scheduler"
)

// CycleSummary is the JSON view of a cycle.
type CycleSummary struct {
	ID         string    `json:"id"`
	Number     int       `json:"number"`
	Accounts   int       `json:"accounts"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

func summarize(r scheduler.CycleReport) CycleSummary {
	return CycleSummary{
		ID:         r.ID,
		Number:     r.Number,
		Accounts:   len(r.Results),
		Succeeded:  r.Succeeded(),
		Failed:     r.Failed(),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime      int64         `json:"uptime_seconds"`
	Accounts    int           `json:"accounts"`
	Cycles      int           `json:"cycles"`
	InCycle     bool          `json:"in_cycle"`
	NextCycleAt time.Time     `json:"next_cycle_at,omitzero"`
	LastCycle   *CycleSummary `json:"last_cycle,omitempty"`
	Subscribers int           `json:"subscribers"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime:      int64(time.Since(g.startedAt).Seconds()),
			Subscribers: g.hub.Subscribers(),
		}

		if g.scheduler != nil {
			st := g.scheduler.Status()
			resp.Accounts = g.scheduler.Accounts()
			resp.Cycles = st.Cycles
			resp.InCycle = st.InCycle
			resp.NextCycleAt = st.NextCycleAt
			if st.Last != nil {
				sum := summarize(*st.Last)
				resp.LastCycle = &sum
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
