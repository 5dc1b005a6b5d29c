package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riverqueue/river"
)

type stubRelay struct {
	published int
	err       error
	calls     int
}

func (s *stubRelay) RunOnce(context.Context) (int, error) {
	s.calls++
	return s.published, s.err
}

func TestRelayOutboxWorkerRunsOneCycle(t *testing.T) {
	relay := &stubRelay{published: 3}
	worker := &RelayOutboxWorker{Relay: relay}
	if err := worker.Work(context.Background(), &river.Job[RelayOutboxArgs]{}); err != nil {
		t.Fatalf("work failed: %v", err)
	}
	if relay.calls != 1 {
		t.Fatalf("expected one relay cycle, got %d", relay.calls)
	}
}

func TestRelayOutboxWorkerSurfacesFailure(t *testing.T) {
	boom := errors.New("broker down")
	worker := &RelayOutboxWorker{Relay: &stubRelay{err: boom}}
	if err := worker.Work(context.Background(), &river.Job[RelayOutboxArgs]{}); !errors.Is(err, boom) {
		t.Fatalf("expected relay error, got %v", err)
	}
}

func TestRelayOutboxArgs(t *testing.T) {
	args := RelayOutboxArgs{}
	if args.Kind() != "relay_poll_outbox" {
		t.Fatalf("unexpected kind %q", args.Kind())
	}
	if args.InsertOpts().MaxAttempts != 1 {
		t.Fatalf("relay jobs must not retry")
	}
	if (&RelayOutboxWorker{}).Timeout(nil) != 30*time.Second {
		t.Fatalf("unexpected timeout")
	}
	if PeriodicRelay(time.Second) == nil {
		t.Fatalf("expected periodic job")
	}
}
