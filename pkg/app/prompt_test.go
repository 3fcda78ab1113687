package app

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/flemzord/edgecycle/internal/config"
)

func TestParseAnswer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"y", true},
		{"Y", true},
		{" y\n", true},
		{"yes", false},
		{"n", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ParseAnswer(tt.in); got != tt.want {
			t.Errorf("ParseAnswer(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseProxyMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    ProxyMode
		wantErr bool
	}{
		{"", ProxyAsk, false},
		{"ask", ProxyAsk, false},
		{"YES", ProxyYes, false},
		{"no", ProxyNo, false},
		{"maybe", "", true},
	}
	for _, tt := range tests {
		got, err := ParseProxyMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseProxyMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseProxyMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveUseProxy(t *testing.T) {
	t.Parallel()

	yes, no := true, false
	askYes := PrompterFunc(func(context.Context) (bool, error) { return true, nil })

	tests := []struct {
		name     string
		mode     ProxyMode
		cfgValue *bool
		prompter Prompter
		want     bool
		wantErr  error
	}{
		{"flag yes beats config", ProxyYes, &no, nil, true, nil},
		{"flag no beats config", ProxyNo, &yes, askYes, false, nil},
		{"config answers", ProxyAsk, &yes, nil, true, nil},
		{"prompt answers", ProxyAsk, nil, askYes, true, nil},
		{"nothing to ask with", ProxyAsk, nil, nil, false, ErrNoPrompt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.Default()
			cfg.UseProxy = tt.cfgValue

			got, err := resolveUseProxy(context.Background(), tt.mode, cfg, tt.prompter)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("useProxy = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReadAnswer(t *testing.T) {
	t.Parallel()

	var out strings.Builder
	got, err := readAnswer(context.Background(), strings.NewReader("Y\n"), &out)
	if err != nil {
		t.Fatalf("readAnswer: %v", err)
	}
	if !got {
		t.Error("expected yes")
	}
	if !strings.Contains(out.String(), "(y/n)") {
		t.Errorf("prompt = %q", out.String())
	}

	got, err = readAnswer(context.Background(), strings.NewReader("n"), io.Discard)
	if err != nil || got {
		t.Errorf("readAnswer(n) = %v, %v", got, err)
	}
}

func TestReadAnswer_Cancelled(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := readAnswer(ctx, pr, io.Discard); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
