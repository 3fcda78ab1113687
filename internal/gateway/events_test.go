package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/flemzord/edgecycle/internal/scheduler"
	"github.com/flemzord/edgecycle/internal/security"
)

func dialEvents(t *testing.T, g *Gateway) (*websocket.Conn, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(g.buildRouter())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events"
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Bearer " + testToken}},
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })

	waitFor(t, func() bool { return g.hub.Subscribers() == 1 })
	return conn, srv
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if typ != websocket.MessageText {
		t.Fatalf("message type = %v, want text", typ)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return ev
}

func TestEvents_StreamsObserverCallbacks(t *testing.T) {
	t.Parallel()

	g := newTestGateway(testToken)
	conn, _ := dialEvents(t, g)

	info := scheduler.CycleInfo{ID: "c-1", Number: 1, Accounts: 1, StartedAt: time.Now()}
	ctx := context.Background()

	g.hub.CycleStarted(ctx, info)
	g.hub.AccountFinished(ctx, info, scheduler.AccountResult{
		Index:   0,
		Address: "0xabc",
		Steps:   []scheduler.Step{scheduler.StepCheckStatus},
		Err:     &scheduler.StepError{Step: scheduler.StepConnect, Err: errors.New("refused")},
	})
	g.hub.CycleFinished(ctx, scheduler.CycleReport{ID: "c-1", Number: 1, Results: []scheduler.AccountResult{{}}})

	ev := readEvent(t, conn)
	if ev.Type != EventCycleStarted || ev.Cycle.ID != "c-1" {
		t.Errorf("first event = %+v", ev)
	}

	ev = readEvent(t, conn)
	if ev.Type != EventAccountFinished || ev.Account == nil {
		t.Fatalf("second event = %+v", ev)
	}
	if ev.Account.FailedStep != string(scheduler.StepConnect) || ev.Account.Address != "0xabc" {
		t.Errorf("account = %+v", ev.Account)
	}
	if len(ev.Account.Steps) != 1 || ev.Account.Steps[0] != "check_status" {
		t.Errorf("steps = %v", ev.Account.Steps)
	}

	ev = readEvent(t, conn)
	if ev.Type != EventCycleFinished || ev.Cycle.Succeeded != 1 {
		t.Errorf("third event = %+v", ev)
	}
}

func TestEvents_AccountErrorIsRedacted(t *testing.T) {
	t.Parallel()

	const secret = "s3cr3t-wallet-key"
	redactor := security.NewRedactor()
	redactor.AddLiteral(secret)

	tests := []struct {
		name   string
		opts   []Option
		masked bool
	}{
		{"with redactor", []Option{WithRedact(redactor.Redact)}, true},
		{"nil redactor", []Option{WithRedact(nil)}, false},
		{"no options", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := New(Config{Bind: "127.0.0.1:0"}, tt.opts...)
			ev := g.hub.accountEvent(scheduler.AccountResult{
				Address: "0xabc",
				Err: &scheduler.StepError{
					Step: scheduler.StepConnect,
					Err:  errors.New("sign failed for " + secret),
				},
			})
			if got := strings.Contains(ev.Error, secret); got == tt.masked {
				t.Errorf("Error = %q, masked = %v, want %v", ev.Error, !got, tt.masked)
			}
			if tt.masked && !strings.Contains(ev.Error, security.RedactPlaceholder) {
				t.Errorf("Error = %q, want placeholder", ev.Error)
			}
			if ev.FailedStep != string(scheduler.StepConnect) {
				t.Errorf("FailedStep = %q", ev.FailedStep)
			}
		})
	}
}

func TestEvents_CloseDisconnects(t *testing.T) {
	t.Parallel()

	g := newTestGateway(testToken)
	conn, _ := dialEvents(t, g)

	g.hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	if got := websocket.CloseStatus(err); got != websocket.StatusGoingAway {
		t.Errorf("close status = %v (err %v), want going away", got, err)
	}
	waitFor(t, func() bool { return g.hub.Subscribers() == 0 })
}

func TestEvents_Unauthorized(t *testing.T) {
	t.Parallel()

	g := newTestGateway(testToken)
	srv := httptest.NewServer(g.buildRouter())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events"
	_, resp, err := websocket.Dial(ctx, url, nil)
	if err == nil {
		t.Fatal("expected dial to fail without token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %v, want 401", resp)
	}
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	t.Parallel()

	h := NewHub(discard)
	sub := &subscriber{send: make(chan []byte, 1)}
	if !h.add(sub) {
		t.Fatal("add failed")
	}

	done := make(chan struct{})
	go func() {
		for range 10 {
			h.Broadcast(Event{Type: EventCycleStarted})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked on a full subscriber")
	}
	if len(sub.send) != 1 {
		t.Errorf("queued = %d, want 1", len(sub.send))
	}

	h.Close()
	if h.add(&subscriber{send: make(chan []byte, 1)}) {
		t.Error("add after Close should fail")
	}
}
