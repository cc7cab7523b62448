package daemon_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"racefeed/internal/adapter"
	"racefeed/internal/daemon"
	"racefeed/internal/queue"
	"racefeed/internal/stage"
	"racefeed/internal/testsupport"
	"racefeed/internal/workflow"
)

type idleProcessor struct{}

func (idleProcessor) Platform() string { return "trackshack" }

func (idleProcessor) Process(context.Context, *queue.ScrapedEvent, time.Time) (adapter.Summary, error) {
	return adapter.Summary{}, nil
}

func (idleProcessor) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("trackshack")
}

func newDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManagerWithNotifier(cfg, store, nil, nil)
	mgr.Register(idleProcessor{})
	d, err := daemon.New(cfg, store, nil, mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestDaemonStartStop(t *testing.T) {
	d := newDaemon(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running || !status.Workflow.Running {
		t.Fatalf("expected daemon and scheduler running, got %+v", status)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running || status.Workflow.Running {
		t.Fatalf("expected daemon stopped, got %+v", status)
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	build := func() *daemon.Daemon {
		mgr := workflow.NewManagerWithNotifier(cfg, store, nil, nil)
		mgr.Register(idleProcessor{})
		d, err := daemon.New(cfg, store, nil, mgr)
		if err != nil {
			t.Fatalf("daemon.New: %v", err)
		}
		t.Cleanup(func() { d.Close() })
		return d
	}
	first, second := build(), build()

	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(context.Background()); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	first.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("expected lock to be free after Stop: %v", err)
	}
}
