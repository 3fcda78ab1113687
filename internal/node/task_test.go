package node

import (
	"errors"
	"testing"
)

func TestTask_RenderMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		task Task
		want string
	}{
		{
			name: "custom template",
			task: Task{ID: "x", Message: "I have followed {address} at {timestamp}"},
			want: "I have followed 0xabc at 1700000000000",
		},
		{
			name: "default template",
			task: Task{ID: "proof"},
			want: "I am completing task proof for 0xabc at 1700000000000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.task.RenderMessage("0xabc", 1700000000000); got != tt.want {
				t.Errorf("RenderMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTask_Validate(t *testing.T) {
	t.Parallel()

	if err := (Task{ID: "a", Path: "/task/a"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (Task{Path: "task"}).Validate(); err == nil {
		t.Error("expected error for missing id and relative path")
	}
}

func TestTask_Name(t *testing.T) {
	t.Parallel()

	if (Task{ID: "a"}).Name() != "a" {
		t.Error("Name should fall back to ID")
	}
	if (Task{ID: "a", Title: "Follow"}).Name() != "Follow" {
		t.Error("Name should prefer Title")
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want bool
	}{
		{ErrRateLimited, true},
		{ErrUnavailable, true},
		{errors.Join(errors.New("ctx"), ErrUnavailable), true},
		{ErrUnauthorized, false},
		{ErrNotFound, false},
		{errors.New("other"), false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
