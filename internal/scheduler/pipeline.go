package scheduler

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/edgecycle/internal/node"
)

// Step names a stage of the node lifecycle pipeline.
type Step string

// Pipeline steps, in execution order. StepSession is the construction of
// the session itself.
const (
	StepSession     Step = "session"
	StepCheckStatus Step = "check_status"
	StepStop        Step = "stop"
	StepConnect     Step = "connect"
	StepCheckPoints Step = "check_points"
	StepHandleTasks Step = "handle_tasks"
)

// pipelineResult is what one pass through the pipeline produced.
type pipelineResult struct {
	steps   []Step
	running bool
	points  int64
}

// runPipeline drives sess through status, optional stop, connect, points
// and tasks. The first failing step aborts the remaining ones.
func runPipeline(ctx context.Context, sess node.Session, logger *slog.Logger) (pipelineResult, error) {
	var res pipelineResult
	span := trace.SpanFromContext(ctx)

	step := func(s Step, fn func() error) error {
		span.AddEvent(string(s))
		if err := fn(); err != nil {
			return &StepError{Step: s, Err: err}
		}
		res.steps = append(res.steps, s)
		return nil
	}

	logger.Info("checking node status")
	if err := step(StepCheckStatus, func() error {
		var err error
		res.running, err = sess.CheckStatus(ctx)
		return err
	}); err != nil {
		return res, err
	}
	span.SetAttributes(attribute.Bool("node.running", res.running))

	if res.running {
		logger.Info("node is running, claiming points and stopping")
		if err := step(StepStop, func() error { return sess.Stop(ctx) }); err != nil {
			return res, err
		}
	}

	logger.Info("reconnecting node")
	if err := step(StepConnect, func() error { return sess.Connect(ctx) }); err != nil {
		return res, err
	}

	logger.Info("checking node points")
	if err := step(StepCheckPoints, func() error {
		var err error
		res.points, err = sess.CheckPoints(ctx)
		return err
	}); err != nil {
		return res, err
	}

	logger.Info("checking tasks")
	if err := step(StepHandleTasks, func() error { return sess.HandleTasks(ctx) }); err != nil {
		return res, err
	}
	return res, nil
}
