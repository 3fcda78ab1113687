package node

import (
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"
)

// WalletState is the locally persisted record for one wallet.
type WalletState struct {
	Registered      bool      `json:"registered,omitempty"`
	CompletedTasks  []string  `json:"completed_tasks,omitempty"`
	Points          int64     `json:"points"`
	LastConnectedAt time.Time `json:"last_connected_at,omitzero"`
	LastStoppedAt   time.Time `json:"last_stopped_at,omitzero"`
	LastClaimedAt   time.Time `json:"last_claimed_at,omitzero"`
}

// LocalState is the run-wide state shared by every session. All methods are
// safe for concurrent use. Addresses are compared case-insensitively.
type LocalState struct {
	mu      sync.Mutex
	wallets map[string]*WalletState
	version uint64
	saved   uint64
}

// NewLocalState creates an empty state.
func NewLocalState() *LocalState {
	return &LocalState{wallets: make(map[string]*WalletState)}
}

func key(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// entry returns the wallet record, creating it. Caller holds mu.
func (s *LocalState) entry(address string) *WalletState {
	if s.wallets == nil {
		s.wallets = make(map[string]*WalletState)
	}
	k := key(address)
	w, ok := s.wallets[k]
	if !ok {
		w = &WalletState{}
		s.wallets[k] = w
	}
	return w
}

func (s *LocalState) update(address string, fn func(w *WalletState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.entry(address))
	s.version++
}

// Wallet returns a copy of the wallet record.
func (s *LocalState) Wallet(address string) (WalletState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[key(address)]
	if !ok {
		return WalletState{}, false
	}
	cp := *w
	cp.CompletedTasks = slices.Clone(w.CompletedTasks)
	return cp, true
}

// Len returns the number of wallets with a record.
func (s *LocalState) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.wallets)
}

// TaskDone reports whether taskID was completed for address.
func (s *LocalState) TaskDone(address, taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[key(address)]
	return ok && slices.Contains(w.CompletedTasks, taskID)
}

// MarkTaskDone records taskID as completed for address.
func (s *LocalState) MarkTaskDone(address, taskID string) {
	s.update(address, func(w *WalletState) {
		if !slices.Contains(w.CompletedTasks, taskID) {
			w.CompletedTasks = append(w.CompletedTasks, taskID)
		}
	})
}

// Registered reports whether the wallet was registered with a referral code.
func (s *LocalState) Registered(address string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[key(address)]
	return ok && w.Registered
}

// MarkRegistered records a successful registration.
func (s *LocalState) MarkRegistered(address string) {
	s.update(address, func(w *WalletState) { w.Registered = true })
}

// RecordPoints stores the latest reward balance.
func (s *LocalState) RecordPoints(address string, points int64) {
	s.update(address, func(w *WalletState) { w.Points = points })
}

// RecordConnected stores the time of the last successful connect.
func (s *LocalState) RecordConnected(address string, at time.Time) {
	s.update(address, func(w *WalletState) { w.LastConnectedAt = at.UTC() })
}

// RecordStopped stores the time of the last successful stop.
func (s *LocalState) RecordStopped(address string, at time.Time) {
	s.update(address, func(w *WalletState) { w.LastStoppedAt = at.UTC() })
}

// RecordClaimed stores the time of the last successful reward claim.
func (s *LocalState) RecordClaimed(address string, at time.Time) {
	s.update(address, func(w *WalletState) { w.LastClaimedAt = at.UTC() })
}

// Dirty reports whether the state changed since the last MarkSaved.
func (s *LocalState) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version != s.saved
}

// Export serializes the state and returns the version it reflects.
func (s *LocalState) Export() ([]byte, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.MarshalIndent(s.wallets, "", "  ")
	if err != nil {
		return nil, 0, err
	}
	return data, s.version, nil
}

// MarkSaved records that version was persisted. Changes made after Export
// keep the state dirty.
func (s *LocalState) MarkSaved(version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if version > s.saved {
		s.saved = version
	}
}

// MarshalJSON implements json.Marshaler.
func (s *LocalState) MarshalJSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.Marshal(s.wallets)
}

// UnmarshalJSON implements json.Unmarshaler. The loaded state is clean.
func (s *LocalState) UnmarshalJSON(data []byte) error {
	wallets := make(map[string]*WalletState)
	if err := json.Unmarshal(data, &wallets); err != nil {
		return err
	}
	normalized := make(map[string]*WalletState, len(wallets))
	for addr, w := range wallets {
		if w == nil {
			w = &WalletState{}
		}
		normalized[key(addr)] = w
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets = normalized
	s.saved = s.version
	return nil
}
