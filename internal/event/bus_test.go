package event

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Iron-Ham/dossier/internal/logging"
	"github.com/Iron-Ham/dossier/internal/research"
)

func TestBus_SubscribeAndPublish(t *testing.T) {
	bus := NewBus()

	var received []Event
	id := bus.Subscribe(TopicStateChanged, func(e Event) {
		received = append(received, e)
	})
	if id == "" {
		t.Error("Subscribe should return a non-empty ID")
	}
	if bus.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", bus.SubscriptionCount())
	}

	state := research.Idle()
	state.RunID = "r1"
	bus.Publish(NewStateChangedEvent(state))
	bus.Publish(NewRunStartedEvent("r1", "ws://x", "topic"))

	if len(received) != 1 {
		t.Fatalf("received %d events, want 1", len(received))
	}
	got, ok := received[0].(StateChangedEvent)
	if !ok || got.State.RunID != "r1" {
		t.Errorf("received %#v", received[0])
	}
}

func TestBus_DeliveryOrder(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.SubscribeAll(func(e Event) { order = append(order, "all") })
	bus.Subscribe(TopicRunStopped, func(e Event) { order = append(order, "first") })
	bus.Subscribe(TopicRunStopped, func(e Event) { order = append(order, "second") })

	bus.Publish(NewRunStoppedEvent("r1", "terminal"))

	want := []string{"first", "second", "all"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	calls := 0
	a := bus.Subscribe(TopicDecodeFailed, func(e Event) { calls++ })
	b := bus.Subscribe(TopicDecodeFailed, func(e Event) { calls += 10 })

	if !bus.Unsubscribe(a) {
		t.Fatal("Unsubscribe should find the subscription")
	}
	if bus.Unsubscribe(a) {
		t.Error("second Unsubscribe should return false")
	}
	if bus.Unsubscribe("missing") {
		t.Error("Unsubscribe of unknown id should return false")
	}

	bus.Publish(NewDecodeFailedEvent("r1", errors.New("bad frame")))
	if calls != 10 {
		t.Errorf("calls = %d, want only the remaining handler", calls)
	}
	if a == b {
		t.Error("subscription ids should be unique")
	}
}

func TestBus_PanicIsolation(t *testing.T) {
	var buf bytes.Buffer
	bus := NewBus(WithLogger(logging.NewWriterLogger(&buf, logging.LevelError)))

	second := false
	bus.Subscribe(TopicSummaryChanged, func(e Event) { panic("boom") })
	bus.Subscribe(TopicSummaryChanged, func(e Event) { second = true })

	bus.Publish(NewSummaryChangedEvent("r1", research.StatusRunning, "t", ""))

	if !second {
		t.Error("handler after a panicking one should still run")
	}
	if !strings.Contains(buf.String(), "event handler panicked") || !strings.Contains(buf.String(), "summary.changed") {
		t.Errorf("panic not logged: %s", buf.String())
	}
}

func TestBus_Clear(t *testing.T) {
	bus := NewBus()
	bus.Subscribe(TopicRunStarted, func(Event) {})
	bus.SubscribeAll(func(Event) {})
	bus.Clear()
	if bus.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d after Clear", bus.SubscriptionCount())
	}
}

func TestBus_ConcurrentUse(t *testing.T) {
	bus := NewBus()
	var mu sync.Mutex
	count := 0
	bus.Subscribe(TopicStateChanged, func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bus.Publish(NewStateChangedEvent(research.Idle()))
				id := bus.Subscribe("noise", func(Event) {})
				bus.Unsubscribe(id)
			}
		}()
	}
	wg.Wait()

	if count != 400 {
		t.Errorf("count = %d, want 400", count)
	}
}

func TestEventTimestamps(t *testing.T) {
	events := []Event{
		NewRunStartedEvent("r", "u", "t"),
		NewRunStoppedEvent("r", "stopped"),
		NewStateChangedEvent(research.Idle()),
		NewDecodeFailedEvent("r", nil),
		NewSummaryChangedEvent("r", research.StatusIdle, "", ""),
	}
	topics := []string{TopicRunStarted, TopicRunStopped, TopicStateChanged, TopicDecodeFailed, TopicSummaryChanged}
	for i, e := range events {
		if e.EventType() != topics[i] {
			t.Errorf("event %d type = %q, want %q", i, e.EventType(), topics[i])
		}
		if e.Timestamp().IsZero() {
			t.Errorf("event %d has zero timestamp", i)
		}
	}
}
