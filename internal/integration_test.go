// Package internal contains integration tests that verify the packages work
// together: the connection manager feeding the store, the event bus fanning
// state out to the summary bridge and the line printer.
package internal

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/dossier/internal/event"
	"github.com/Iron-Ham/dossier/internal/research"
	"github.com/Iron-Ham/dossier/internal/stream"
	"github.com/Iron-Ham/dossier/internal/summary"
	"github.com/Iron-Ham/dossier/internal/testutil"
	"github.com/Iron-Ham/dossier/internal/tui"
	"github.com/Iron-Ham/dossier/internal/wire"
)

var runFrames = []string{
	`{"type":"progress","stage":"planning","status":"planning_started"}`,
	`{"type":"progress","stage":"planning","status":"decompose_completed","sub_topics":[{"id":"b1","label":"Bleaching"}]}`,
	`{"type":"progress","stage":"researching","status":"researching_started","total_blocks":1}`,
	`{"type":"log","content":"searching the knowledge base"}`,
	`{"type":"progress","stage":"reporting","status":"reporting_started"}`,
	`{"type":"result","report":"# Reefs\n\nFindings.","metadata":{"report_word_count":2}}`,
}

// TestRunPipelineIntegration runs a full run through the manager and checks
// what every subscriber saw.
func TestRunPipelineIntegration(t *testing.T) {
	bus := event.NewBus()
	store := research.NewStore(nil)

	var mu sync.Mutex
	var topics []string
	var summaries []event.SummaryChangedEvent
	stopped := make(chan string, 1)

	bus.SubscribeAll(func(e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		topics = append(topics, e.EventType())
		switch ev := e.(type) {
		case event.SummaryChangedEvent:
			summaries = append(summaries, ev)
		case event.RunStoppedEvent:
			stopped <- ev.Reason
		}
	})

	bridge := summary.NewBridge(bus, nil)
	defer bridge.Close()

	var out bytes.Buffer
	detach := tui.NewPrinter(&out).Attach(bus)
	defer detach()

	mgr := stream.NewManager(testutil.NewService(t, runFrames...).URL(), store, stream.WithBus(bus))
	defer mgr.Close()

	runID, err := mgr.StartRun(context.Background(), wire.StartParams{Topic: "reefs", PlanMode: wire.PlanQuick})
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}

	select {
	case reason := <-stopped:
		if reason != stream.StopTerminal {
			t.Errorf("stop reason = %q, want %q", reason, stream.StopTerminal)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}

	final := store.Snapshot()
	if final.Status != research.StatusCompleted || final.Stage != research.StageCompleted {
		t.Errorf("final status/stage = %s/%s, want completed/completed", final.Status, final.Stage)
	}

	got := bridge.Snapshot()
	want := summary.Summary{RunID: runID, Status: research.StatusCompleted, Topic: "reefs", Report: "# Reefs\n\nFindings."}
	if got != want {
		t.Errorf("bridge.Snapshot() = %+v, want %+v", got, want)
	}

	mu.Lock()
	defer mu.Unlock()

	// Stage changes do not touch the summary: one for the new run, one for
	// the report.
	if len(summaries) != 2 {
		t.Fatalf("summary.changed published %d times, want 2", len(summaries))
	}
	if summaries[0].Status != research.StatusRunning || summaries[1].Status != research.StatusCompleted {
		t.Errorf("summary statuses = %s, %s", summaries[0].Status, summaries[1].Status)
	}

	if topics[len(topics)-1] != event.TopicRunStopped {
		t.Errorf("last event = %q, want %q", topics[len(topics)-1], event.TopicRunStopped)
	}
	for _, want := range []string{event.TopicRunStarted, event.TopicStateChanged} {
		found := false
		for _, tp := range topics {
			found = found || tp == want
		}
		if !found {
			t.Errorf("no %q event published", want)
		}
	}

	for _, want := range []string{"== reefs (quick)", "-- planning", "-- researching", "searching the knowledge base", "-- reporting", "-- completed", "# Reefs"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("printer output missing %q:\n%s", want, out.String())
		}
	}
}

// TestEventBusConcurrentPublish tests that the event bus handles concurrent
// publishing from multiple goroutines safely.
func TestEventBusConcurrentPublish(t *testing.T) {
	bus := event.NewBus()

	var receivedCount int
	var mu sync.Mutex

	bus.SubscribeAll(func(e event.Event) {
		mu.Lock()
		receivedCount++
		mu.Unlock()
	})

	const numGoroutines = 10
	const eventsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for range numGoroutines {
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(event.NewStateChangedEvent(research.Idle()))
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if want := numGoroutines * eventsPerGoroutine; receivedCount != want {
		t.Errorf("Expected %d events, got %d", want, receivedCount)
	}
}
