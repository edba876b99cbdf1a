// Package event provides a synchronous pub-sub bus that carries run
// notifications from the connection manager to the parts of dossier that
// render or summarize a run.
//
// # Main Types
//
//   - [Event]: Interface that all events implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub dispatcher, safe for concurrent use
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Topics
//
// Run lifecycle:
//   - [RunStartedEvent] (run.started): the start message was sent
//   - [RunStoppedEvent] (run.stopped): the reader of a run exited
//
// State:
//   - [StateChangedEvent] (state.changed): one inbound event was applied
//   - [DecodeFailedEvent] (decode.failed): an inbound frame was dropped
//   - [SummaryChangedEvent] (summary.changed): the run summary changed
//
// Handlers run on the publisher's goroutine. A panicking handler is logged
// and does not stop delivery to the others.
//
// # Basic Usage
//
//	bus := event.NewBus(event.WithLogger(logger))
//
//	id := bus.Subscribe(event.TopicSummaryChanged, func(e event.Event) {
//	    s := e.(event.SummaryChangedEvent)
//	    fmt.Println(s.Status, s.Topic)
//	})
//	defer bus.Unsubscribe(id)
package event
