package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/flemzord/edgecycle/internal/scheduler"
)

// Event types pushed to /ws/events subscribers.
const (
	EventCycleStarted    = "cycle_started"
	EventAccountFinished = "account_finished"
	EventCycleFinished   = "cycle_finished"
)

const (
	subscriberBuffer = 32
	writeTimeout     = 5 * time.Second
)

// Event is one message on the event stream.
type Event struct {
	Type    string        `json:"type"`
	Time    time.Time     `json:"time"`
	Cycle   CycleSummary  `json:"cycle"`
	Account *AccountEvent `json:"account,omitempty"`
}

// AccountEvent describes one finished account.
type AccountEvent struct {
	Index      int      `json:"index"`
	Address    string   `json:"address"`
	Proxy      string   `json:"proxy"`
	Running    bool     `json:"running"`
	Steps      []string `json:"steps"`
	Points     int64    `json:"points"`
	FailedStep string   `json:"failed_step,omitempty"`
	Error      string   `json:"error,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

func (h *Hub) accountEvent(r scheduler.AccountResult) *AccountEvent {
	ev := &AccountEvent{
		Index:      r.Index,
		Address:    r.Address,
		Proxy:      r.Proxy.Redacted(),
		Running:    r.Running,
		Steps:      make([]string, len(r.Steps)),
		Points:     r.Points,
		FailedStep: string(scheduler.FailedStep(r.Err)),
		DurationMS: r.Duration().Milliseconds(),
	}
	for i, s := range r.Steps {
		ev.Steps[i] = string(s)
	}
	if r.Err != nil {
		ev.Error = h.redact(r.Err.Error())
	}
	return ev
}

type subscriber struct {
	send chan []byte
}

// Hub fans scheduler events out to websocket subscribers. Slow
// subscribers miss events rather than block the scheduler.
type Hub struct {
	logger *slog.Logger
	now    func() time.Time
	redact func(string) string

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

var _ scheduler.Observer = (*Hub)(nil)

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		now:    time.Now,
		redact: func(s string) string { return s },
		subs:   make(map[*subscriber]struct{}),
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) add(s *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subs[s] = struct{}{}
	return true
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.send)
	}
}

// Broadcast queues ev for every subscriber.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("event marshal failed", "type", ev.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.send <- data:
		default:
			h.logger.Debug("subscriber too slow, event dropped", "type", ev.Type)
		}
	}
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subs {
		delete(h.subs, s)
		close(s.send)
	}
}

// ServeHTTP upgrades the request and streams events until the client
// disconnects or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The stream outlives the server's read and write timeouts.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}

	sub := &subscriber{send: make(chan []byte, subscriberBuffer)}
	if !h.add(sub) {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.remove(sub)

	// Clients never send; CloseRead handles control frames and cancels
	// ctx when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case data, ok := <-sub.send:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				h.logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}

func cycleSummary(id string, number, accounts int, started time.Time) CycleSummary {
	return CycleSummary{ID: id, Number: number, Accounts: accounts, StartedAt: started}
}

// CycleStarted implements scheduler.Observer.
func (h *Hub) CycleStarted(_ context.Context, info scheduler.CycleInfo) {
	h.Broadcast(Event{
		Type:  EventCycleStarted,
		Time:  h.now(),
		Cycle: cycleSummary(info.ID, info.Number, info.Accounts, info.StartedAt),
	})
}

// AccountFinished implements scheduler.Observer.
func (h *Hub) AccountFinished(_ context.Context, info scheduler.CycleInfo, r scheduler.AccountResult) {
	h.Broadcast(Event{
		Type:    EventAccountFinished,
		Time:    h.now(),
		Cycle:   cycleSummary(info.ID, info.Number, info.Accounts, info.StartedAt),
		Account: h.accountEvent(r),
	})
}

// CycleFinished implements scheduler.Observer.
func (h *Hub) CycleFinished(_ context.Context, report scheduler.CycleReport) {
	h.Broadcast(Event{
		Type:  EventCycleFinished,
		Time:  h.now(),
		Cycle: summarize(report),
	})
}
