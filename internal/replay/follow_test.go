package replay

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Iron-Ham/dossier/internal/research"
	"github.com/Iron-Ham/dossier/internal/wire"
)

func TestFollow(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewFileRecorder(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Close()

	if err := rec.Begin("live", "ws://svc", t0, wire.StartParams{Topic: "t", PlanMode: wire.PlanQuick}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	states := make(chan research.RunState, 16)
	errc := make(chan error, 1)
	go func() {
		errc <- Follow(ctx, rec.Path("live"), nil, nil, func(s research.RunState) { states <- s })
	}()

	first := <-states
	if first.RunID != "live" || first.Status != research.StatusRunning {
		t.Fatalf("initial state = %s/%s", first.RunID, first.Status)
	}

	if err := rec.Record("live", t0.Add(time.Second), []byte(`{"type":"log","content":"tick"}`)); err != nil {
		t.Fatal(err)
	}
	waitForLog(t, states, "tick")

	if err := rec.Record("live", t0.Add(2*time.Second), []byte(`{"type":"result","report":"r"}`)); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Follow() error = %v", err)
		}
	case <-ctx.Done():
		t.Fatal("Follow did not return after the result")
	}
}

func waitForLog(t *testing.T, states <-chan research.RunState, line string) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case s := <-states:
			for _, l := range s.Logs {
				if l == line {
					return
				}
			}
		case <-timeout:
			t.Fatalf("never saw log %q", line)
		}
	}
}

func TestFollow_FinishedRecordingReturnsImmediately(t *testing.T) {
	path := filepath.Join(t.TempDir(), "done.jsonl")
	content := `{"received_at":"2026-03-01T09:00:00Z","frame":{"type":"result","report":"r"}}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	calls := 0
	err := Follow(context.Background(), path, nil, nil, func(s research.RunState) {
		calls++
		if s.Status != research.StatusCompleted {
			t.Errorf("status = %s", s.Status)
		}
	})
	if err != nil || calls != 1 {
		t.Errorf("Follow() = %v after %d calls", err, calls)
	}
}

func TestFollow_StopsOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pending.jsonl")
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		errc <- Follow(ctx, path, nil, nil, func(research.RunState) {})
	}()
	cancel()

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Follow() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Follow ignored cancellation")
	}
}

func TestTail_PartialLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.jsonl")
	line := `{"received_at":"2026-03-01T09:00:00Z","frame":{"type":"log","content":"a"}}`
	if err := os.WriteFile(path, []byte(line[:20]), 0644); err != nil {
		t.Fatal(err)
	}

	tl := &tail{path: path}
	if recs, err := tl.next(); err != nil || len(recs) != 0 {
		t.Fatalf("partial read = %d, %v", len(recs), err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(line[20:] + "\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	recs, err := tl.next()
	if err != nil || len(recs) != 1 {
		t.Fatalf("completed read = %d, %v", len(recs), err)
	}
	if string(recs[0].Bytes()) != `{"type":"log","content":"a"}` {
		t.Errorf("frame = %s", recs[0].Bytes())
	}
}
