package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/flemzord/edgecycle/internal/config"
)

// ProxyMode is the value of the --proxy flag.
type ProxyMode string

// Proxy modes.
const (
	ProxyAsk ProxyMode = "ask"
	ProxyYes ProxyMode = "yes"
	ProxyNo  ProxyMode = "no"
)

// ErrNoPrompt is returned when the proxy question must be asked but no
// prompter is available (service mode).
var ErrNoPrompt = errors.New("app: use_proxy is not configured and no terminal is available to ask")

// ParseProxyMode validates a --proxy flag value.
func ParseProxyMode(s string) (ProxyMode, error) {
	switch m := ProxyMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ProxyAsk, ProxyYes, ProxyNo:
		return m, nil
	case "":
		return ProxyAsk, nil
	default:
		return "", fmt.Errorf("app: invalid proxy mode %q (want yes, no or ask)", s)
	}
}

// Prompter asks the operator whether to route accounts through proxies.
type Prompter interface {
	ConfirmProxy(ctx context.Context) (bool, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context) (bool, error)

// ConfirmProxy implements Prompter.
func (f PrompterFunc) ConfirmProxy(ctx context.Context) (bool, error) { return f(ctx) }

// ParseAnswer interprets a typed answer: only "y" means yes.
func ParseAnswer(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "y")
}

// TerminalPrompter shows a huh confirm on a terminal and falls back to
// reading one "y/n" line when stdin is piped.
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer
}

// ConfirmProxy implements Prompter.
func (p TerminalPrompter) ConfirmProxy(ctx context.Context) (bool, error) {
	in, out := p.In, p.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}

	if !isatty.IsTerminal(in.Fd()) && !isatty.IsCygwinTerminal(in.Fd()) {
		return readAnswer(ctx, in, out)
	}

	var use bool
	err := huh.NewConfirm().
		Title("Use proxy?").
		Description("Each wallet is routed through the proxy at the same position in the proxy file.").
		Affirmative("Yes").
		Negative("No").
		Value(&use).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, context.Canceled
	}
	return use, err
}

func readAnswer(ctx context.Context, in io.Reader, out io.Writer) (bool, error) {
	_, _ = fmt.Fprint(out, "Use Proxy or Not (y/n): ")

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(in).ReadString('\n')
		if errors.Is(err, io.EOF) && line != "" {
			err = nil
		}
		ch <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return false, fmt.Errorf("app: read answer: %w", r.err)
		}
		return ParseAnswer(r.line), nil
	}
}

// resolveUseProxy decides proxy usage: an explicit flag wins, then the
// config file, then the prompter.
func resolveUseProxy(ctx context.Context, mode ProxyMode, cfg *config.Config, p Prompter) (bool, error) {
	switch mode {
	case ProxyYes:
		return true, nil
	case ProxyNo:
		return false, nil
	}
	if cfg.UseProxy != nil {
		return *cfg.UseProxy, nil
	}
	if p == nil {
		return false, ErrNoPrompt
	}
	return p.ConfirmProxy(ctx)
}
