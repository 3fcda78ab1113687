package cron

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// simpleJob is a minimal Job for scheduler tests.
type simpleJob struct {
	name     string
	schedule string
	runFunc  func(ctx context.Context) error
	calls    atomic.Int32
}

func (j *simpleJob) Name() string     { return j.name }
func (j *simpleJob) Schedule() string { return j.schedule }
func (j *simpleJob) Run(ctx context.Context) error {
	j.calls.Add(1)
	if j.runFunc != nil {
		return j.runFunc(ctx)
	}
	return nil
}

var discard = slog.New(slog.DiscardHandler)

func TestScheduler_RegisterJob_DuplicateName(t *testing.T) {
	t.Parallel()

	s := NewScheduler(discard)
	if err := s.RegisterJob(&simpleJob{name: "test", schedule: "* * * * *"}); err != nil {
		t.Fatalf("first registration should succeed: %v", err)
	}
	if err := s.RegisterJob(&simpleJob{name: "test", schedule: "* * * * *"}); err == nil {
		t.Fatal("duplicate registration should fail")
	}
	if got := s.Jobs(); len(got) != 1 || got[0] != "test" {
		t.Errorf("Jobs() = %v", got)
	}
}

func TestScheduler_Start_InvalidSchedule(t *testing.T) {
	t.Parallel()

	s := NewScheduler(discard)
	_ = s.RegisterJob(&simpleJob{name: "bad", schedule: "invalid"})

	if err := s.Start(); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	s := NewScheduler(discard)
	_ = s.RegisterJob(&simpleJob{name: "noop", schedule: "@every 1h"})

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestScheduler_EveryDescriptorRuns(t *testing.T) {
	t.Parallel()

	job := &simpleJob{name: "fast", schedule: "@every 1s"}
	s := NewScheduler(discard)
	_ = s.RegisterJob(job)

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for job.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	_ = s.Stop(context.Background())

	if job.calls.Load() == 0 {
		t.Fatal("job never ran")
	}
}

func TestScheduler_NilLogger(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil)
	if s.logger == nil {
		t.Fatal("logger should default to slog.Default()")
	}
}

func TestScheduler_RunJob(t *testing.T) {
	t.Parallel()

	job := &simpleJob{name: "flush"}
	s := NewScheduler(discard)
	_ = s.RegisterJob(job)

	if err := s.RunJob(context.Background(), "flush"); err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if job.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", job.calls.Load())
	}
	if err := s.RunJob(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown job")
	}
}

func TestScheduler_NoParallelExecution(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{})
	job := &simpleJob{
		name: "slow",
		runFunc: func(context.Context) error {
			close(started)
			<-release
			return nil
		},
	}
	s := NewScheduler(discard)
	_ = s.RegisterJob(job)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.RunJob(context.Background(), "slow")
	}()
	<-started

	if err := s.RunJob(context.Background(), "slow"); !errors.Is(err, ErrJobRunning) {
		t.Errorf("overlapping run: err = %v, want ErrJobRunning", err)
	}

	close(release)
	wg.Wait()

	if job.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", job.calls.Load())
	}
}

func TestScheduler_JobError(t *testing.T) {
	t.Parallel()

	boom := errors.New("job failed")
	s := NewScheduler(discard)
	_ = s.RegisterJob(&simpleJob{
		name:    "failing",
		runFunc: func(context.Context) error { return boom },
	})

	if err := s.RunJob(context.Background(), "failing"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	t.Parallel()

	s := NewScheduler(discard)
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func FuzzParseSchedule(f *testing.F) {
	f.Add("*/5 * * * *")
	f.Add("0 3 * * *")
	f.Add("@every 5m")
	f.Add("@daily")
	f.Add("invalid")
	f.Add("")
	f.Add("60 * * * *")

	f.Fuzz(func(_ *testing.T, expr string) {
		_ = ParseSchedule(expr)
	})
}
