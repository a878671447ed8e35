package buildsys

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"buildwrap/internal/logx"
)

// Outcome is the result of a Task run. Exactly one of Result (success) or Err
// (failure) is meaningful; on failure Result is the zero value.
type Outcome struct {
	RunID  string
	Result Result
	Err    error
}

// Failed reports whether the run failed.
func (o Outcome) Failed() bool { return o.Err != nil }

// Task runs one execution of a System and surrounds it with lifecycle events.
// The zero Task is ready to use.
type Task struct {
	// InstallFirst installs the system before running when it is not yet
	// installed. Without it, running an uninstalled system fails with
	// ErrNotInstalled.
	InstallFirst bool

	// NewRunID generates the run identifier shared by the run's events.
	// Defaults to a random UUID.
	NewRunID func() string

	Log logrus.FieldLogger
}

// Run broadcasts Started, executes args on sys and broadcasts exactly one of
// Complete or Failure. Errors never escape Run: they are broadcast and carried
// in the returned Outcome.
func (t *Task) Run(ctx context.Context, sys *System, args ...string) Outcome {
	runID := t.runID()
	log := t.logger().WithFields(logrus.Fields{"tool": sys.Name(), "run_id": runID})

	if t.InstallFirst && sys.State() == Uninstalled {
		if inst := sys.Install(ctx); inst.Degraded() {
			log.WithError(inst.Err).Debug("install before run failed")
			return Outcome{RunID: runID, Err: inst.Err}
		}
	}

	t.broadcast(log, sys, Event{Kind: KindStarted, RunID: runID})

	res, err := sys.Execute(ctx, args...)
	if err != nil {
		log.WithError(err).Debug("build failed")
		t.broadcast(log, sys, Event{Kind: KindFailure, RunID: runID, Err: err})
		return Outcome{RunID: runID, Err: err}
	}

	log.WithField("duration", res.Duration).Debug("build complete")
	t.broadcast(log, sys, Event{Kind: KindComplete, RunID: runID, Result: res})
	return Outcome{RunID: runID, Result: res}
}

// Schedule runs the task on a new goroutine and delivers its Outcome on the
// returned channel, which is closed afterwards.
func (t *Task) Schedule(ctx context.Context, sys *System, args ...string) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		out <- t.Run(ctx, sys, args...)
	}()
	return out
}

// Run is shorthand for a zero Task's Run.
func Run(ctx context.Context, sys *System, args ...string) Outcome {
	return (&Task{}).Run(ctx, sys, args...)
}

func (t *Task) broadcast(log logrus.FieldLogger, sys *System, e Event) {
	if err := sys.Broadcast(e); err != nil {
		log.WithError(err).WithField("event", e.Kind.String()).Warn("build listener failed")
	}
}

func (t *Task) runID() string {
	if t.NewRunID != nil {
		return t.NewRunID()
	}
	return uuid.NewString()
}

func (t *Task) logger() logrus.FieldLogger {
	if t.Log != nil {
		return t.Log
	}
	return logx.Discard()
}
