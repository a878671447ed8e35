package buildsys

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func installedSystem(t *testing.T, tool *fakeTool) (*System, *Recorder) {
	t.Helper()
	sys, _ := newConfigured(t, tool)
	if inst := sys.Install(context.Background()); inst.Degraded() {
		t.Fatalf("install: %v", inst.Err)
	}
	rec := &Recorder{}
	sys.Subscribe(rec)
	return sys, rec
}

func TestRunSuccess(t *testing.T) {
	tool := &fakeTool{dist: "/dist", result: Result{Output: "ok"}}
	sys, rec := installedSystem(t, tool)

	out := Run(context.Background(), sys, "build")

	if out.Failed() {
		t.Fatalf("unexpected failure: %v", out.Err)
	}
	if out.Result.Output != "ok" || !reflect.DeepEqual(out.Result.Args, []string{"build"}) {
		t.Fatalf("unexpected result %+v", out.Result)
	}
	if got := rec.Kinds(); !reflect.DeepEqual(got, []Kind{KindStarted, KindComplete}) {
		t.Fatalf("expected [started complete], got %v", got)
	}
	events := rec.Events()
	if events[1].Result.Output != "ok" {
		t.Fatalf("expected complete event to carry result, got %+v", events[1])
	}
	if events[0].RunID == "" || events[0].RunID != events[1].RunID || events[0].RunID != out.RunID {
		t.Fatalf("expected a shared run id, got %q %q %q", events[0].RunID, events[1].RunID, out.RunID)
	}
}

func TestRunFailureIsSwallowed(t *testing.T) {
	tool := &fakeTool{dist: "/dist", execErr: errors.New("timeout")}
	sys, rec := installedSystem(t, tool)

	out := Run(context.Background(), sys, "build")

	if !out.Failed() {
		t.Fatal("expected failed outcome")
	}
	if !reflect.DeepEqual(out.Result, Result{}) {
		t.Fatalf("expected neutral result, got %+v", out.Result)
	}
	if got := rec.Kinds(); !reflect.DeepEqual(got, []Kind{KindStarted, KindFailure}) {
		t.Fatalf("expected [started failure], got %v", got)
	}
	failure := rec.Events()[1]
	if failure.Err == nil || !errors.Is(failure.Err, tool.execErr) {
		t.Fatalf("expected failure event to carry timeout, got %v", failure.Err)
	}
	var ee *ExecutionError
	if !errors.As(out.Err, &ee) {
		t.Fatalf("expected ExecutionError in outcome, got %v", out.Err)
	}
}

func TestRunUninstalledFails(t *testing.T) {
	tool := &fakeTool{dist: "/dist"}
	sys, _ := newConfigured(t, tool)
	rec := &Recorder{}
	sys.Subscribe(rec)

	out := Run(context.Background(), sys, "build")
	if !errors.Is(out.Err, ErrNotInstalled) {
		t.Fatalf("expected ErrNotInstalled, got %v", out.Err)
	}
	if got := rec.Kinds(); !reflect.DeepEqual(got, []Kind{KindStarted, KindFailure}) {
		t.Fatalf("expected [started failure], got %v", got)
	}
	if tool.installs != 0 {
		t.Fatal("a zero Task must not install")
	}
}

func TestRunInstallFirst(t *testing.T) {
	tool := &fakeTool{dist: "/dist"}
	sys, _ := newConfigured(t, tool)
	rec := &Recorder{}
	sys.Subscribe(rec)

	task := &Task{InstallFirst: true, NewRunID: func() string { return "run-1" }}
	out := task.Run(context.Background(), sys, "build")
	if out.Failed() || out.RunID != "run-1" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if tool.installs != 1 {
		t.Fatalf("expected one install, got %d", tool.installs)
	}
	if got := rec.Kinds(); !reflect.DeepEqual(got, []Kind{KindStarted, KindComplete}) {
		t.Fatalf("expected [started complete], got %v", got)
	}
}

func TestRunInstallFirstDegraded(t *testing.T) {
	tool := &fakeTool{installErr: errors.New("offline")}
	sys, _ := newConfigured(t, tool)
	rec := &Recorder{}
	sys.Subscribe(rec)

	out := (&Task{InstallFirst: true}).Run(context.Background(), sys, "build")
	var ie *InstallationError
	if !errors.As(out.Err, &ie) {
		t.Fatalf("expected InstallationError, got %v", out.Err)
	}
	if got := rec.Kinds(); !reflect.DeepEqual(got, []Kind{KindFailure}) {
		t.Fatalf("expected only the install failure, got %v", got)
	}
}

func TestScheduleDeliversOutcome(t *testing.T) {
	tool := &fakeTool{dist: "/dist", result: Result{Output: "done"}}
	sys, rec := installedSystem(t, tool)

	ch := (&Task{}).Schedule(context.Background(), sys, "assemble")
	out, ok := <-ch
	if !ok || out.Failed() || out.Result.Output != "done" {
		t.Fatalf("unexpected scheduled outcome %+v (ok=%v)", out, ok)
	}
	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after the outcome")
	}
	if got := rec.Kinds(); !reflect.DeepEqual(got, []Kind{KindStarted, KindComplete}) {
		t.Fatalf("expected [started complete], got %v", got)
	}
}

func TestListenerUnsubscribingDuringRun(t *testing.T) {
	tool := &fakeTool{dist: "/dist"}
	sys, rec := installedSystem(t, tool)
	var once *ListenerFuncs
	once = &ListenerFuncs{Started: func(Event) { sys.Unsubscribe(once) }}
	sys.Unsubscribe(rec)
	sys.Subscribe(once)
	sys.Subscribe(rec)

	Run(context.Background(), sys, "build")
	if got := rec.Kinds(); !reflect.DeepEqual(got, []Kind{KindStarted, KindComplete}) {
		t.Fatalf("expected [started complete], got %v", got)
	}
}

func TestKindStrings(t *testing.T) {
	for k, want := range map[Kind]string{KindStarted: "started", KindComplete: "complete", KindFailure: "failure", Kind(7): "unknown"} {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
