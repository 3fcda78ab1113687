package layeredge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/flemzord/edgecycle/internal/node"
)

// Signed message templates.
const (
	activationMessage   = "Node activation request for %s at %d"
	deactivationMessage = "Node deactivation request for %s at %d"
	claimMessage        = "I am claiming my daily node point for %s at %d"
)

// Session is a node.Session bound to one wallet and one proxy.
type Session struct {
	factory  *Factory
	signer   *signer
	client   *http.Client
	referral string
	state    *node.LocalState
	tasks    []node.Task
	logger   *slog.Logger
}

// signedAction is the body of every signed request.
type signedAction struct {
	WalletAddress string `json:"walletAddress,omitempty"`
	Sign          string `json:"sign"`
	Timestamp     int64  `json:"timestamp"`
}

type nodeStatus struct {
	StartTimestamp *int64 `json:"startTimestamp"`
}

type walletDetails struct {
	NodePoints int64 `json:"nodePoints"`
}

// Address implements node.Session.
func (s *Session) Address() string {
	return s.signer.address
}

func (s *Session) timestamp() int64 {
	return s.factory.now().UnixMilli()
}

func (s *Session) nodePath(action string) string {
	return "/light-node/node-action/" + url.PathEscape(s.signer.address) + "/" + action
}

// CheckStatus implements node.Session. An unknown wallet is registered
// with the referral code and reported as not running.
func (s *Session) CheckStatus(ctx context.Context) (bool, error) {
	var resp envelope[nodeStatus]
	err := s.do(ctx, http.MethodGet, "/light-node/node-status/"+url.PathEscape(s.signer.address), nil, &resp)
	if errors.Is(err, node.ErrNotFound) {
		s.logger.Info("wallet unknown to the service, registering")
		if err := s.register(ctx); err != nil {
			return false, err
		}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("layeredge: node status: %w", err)
	}

	running := resp.Data.StartTimestamp != nil
	s.logger.Debug("node status", "running", running)
	return running, nil
}

func (s *Session) register(ctx context.Context) error {
	if s.referral == "" {
		return fmt.Errorf("layeredge: wallet %s is not registered and no referral code is configured", s.signer.address)
	}
	body := map[string]string{"walletAddress": s.signer.address}
	err := s.do(ctx, http.MethodPost, "/referral/register-wallet/"+url.PathEscape(s.referral), body, nil)
	if err != nil && !errors.Is(err, node.ErrConflict) {
		return fmt.Errorf("layeredge: register wallet: %w", err)
	}
	s.state.MarkRegistered(s.signer.address)
	s.logger.Info("wallet registered")
	return nil
}

func (s *Session) signed(template string, withAddress bool) signedAction {
	ts := s.timestamp()
	a := signedAction{
		Sign:      s.signer.sign(fmt.Sprintf(template, s.signer.address, ts)),
		Timestamp: ts,
	}
	if withAddress {
		a.WalletAddress = s.signer.address
	}
	return a
}

// Stop implements node.Session. Accumulated points are claimed after the
// node is halted; a refused claim is logged and does not fail Stop.
func (s *Session) Stop(ctx context.Context) error {
	if err := s.do(ctx, http.MethodPost, s.nodePath("stop"), s.signed(deactivationMessage, false), nil); err != nil {
		return fmt.Errorf("layeredge: stop node: %w", err)
	}
	s.state.RecordStopped(s.signer.address, s.factory.now())
	s.logger.Info("node stopped")

	if err := s.do(ctx, http.MethodPost, "/light-node/claim-node-points", s.signed(claimMessage, true), nil); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("claim refused", "error", err)
		return nil
	}
	s.state.RecordClaimed(s.signer.address, s.factory.now())
	s.logger.Info("node points claimed")
	return nil
}

// Connect implements node.Session.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.do(ctx, http.MethodPost, s.nodePath("start"), s.signed(activationMessage, false), nil); err != nil {
		return fmt.Errorf("layeredge: start node: %w", err)
	}
	s.state.RecordConnected(s.signer.address, s.factory.now())
	s.logger.Info("node connected")
	return nil
}

// CheckPoints implements node.Session.
func (s *Session) CheckPoints(ctx context.Context) (int64, error) {
	var resp envelope[walletDetails]
	err := s.do(ctx, http.MethodGet, "/referral/wallet-details/"+url.PathEscape(s.signer.address), nil, &resp)
	if err != nil {
		return 0, fmt.Errorf("layeredge: wallet details: %w", err)
	}
	points := resp.Data.NodePoints
	s.state.RecordPoints(s.signer.address, points)
	s.logger.Info("node points", "points", points)
	return points, nil
}

// HandleTasks implements node.Session. Every pending task is attempted;
// failures are returned together once all tasks were tried.
func (s *Session) HandleTasks(ctx context.Context) error {
	var errs []error
	for _, t := range s.tasks {
		if s.state.TaskDone(s.signer.address, t.ID) {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		ts := s.timestamp()
		body := signedAction{
			WalletAddress: s.signer.address,
			Sign:          s.signer.sign(t.RenderMessage(s.signer.address, ts)),
			Timestamp:     ts,
		}
		err := s.do(ctx, http.MethodPost, t.Path, body, nil)
		switch {
		case err == nil:
			s.logger.Info("task completed", "task", t.Name())
		case errors.Is(err, node.ErrConflict):
			s.logger.Info("task already completed", "task", t.Name())
		default:
			s.logger.Warn("task failed", "task", t.Name(), "error", err)
			errs = append(errs, fmt.Errorf("task %s: %w", strconv.Quote(t.ID), err))
			continue
		}
		s.state.MarkTaskDone(s.signer.address, t.ID)
	}
	return errors.Join(errs...)
}
