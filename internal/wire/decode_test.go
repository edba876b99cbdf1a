package wire

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Iron-Ham/dossier/internal/errors"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDecoder() *Decoder {
	return NewDecoder(WithClock(func() time.Time { return fixedNow }))
}

func ptr[T any](v T) *T { return &v }

func TestDecode_Failures(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		wantErr error
	}{
		{"empty", "", errors.ErrMalformedEnvelope},
		{"not json", "hello", errors.ErrMalformedEnvelope},
		{"array", `[1,2]`, errors.ErrMalformedEnvelope},
		{"truncated", `{"type":"log"`, errors.ErrMalformedEnvelope},
		{"missing type", `{"content":"x"}`, errors.ErrMissingType},
		{"empty type", `{"type":""}`, errors.ErrMissingType},
		{"non-string type", `{"type":5}`, errors.ErrInvalidField},
		{"bad iteration", `{"type":"progress","iteration":"three"}`, errors.ErrInvalidField},
		{"fractional iteration", `{"type":"progress","iteration":2.5}`, errors.ErrInvalidField},
		{"huge iteration", `{"type":"progress","iteration":1e20}`, errors.ErrInvalidField},
		{"bad timestamp", `{"type":"log","timestamp":"yesterday"}`, errors.ErrInvalidField},
		{"bad log content", `{"type":"log","content":{"text":"x"}}`, errors.ErrInvalidField},
	}

	d := newTestDecoder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := d.Decode([]byte(tt.frame))
			if err == nil {
				t.Fatalf("Decode(%q) = %#v, want error", tt.frame, ev)
			}
			if ev != nil {
				t.Errorf("event should be nil on failure, got %#v", ev)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error %v does not match %v", err, tt.wantErr)
			}
			var de *errors.DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("error %T is not a DecodeError", err)
			}
			if de.Frame != tt.frame {
				t.Errorf("Frame = %q, want %q", de.Frame, tt.frame)
			}
		})
	}
}

func TestDecode_InvalidFieldContext(t *testing.T) {
	_, err := newTestDecoder().Decode([]byte(`{"type":"progress","max_iterations":true}`))
	var de *errors.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("want DecodeError, got %v", err)
	}
	if de.EventType != "progress" || de.Field != "max_iterations" {
		t.Errorf("context = %q/%q, want progress/max_iterations", de.EventType, de.Field)
	}
}

func TestDecode_Log(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  string
	}{
		{"flat content", `{"type":"log","content":"hello"}`, "hello"},
		{"nested content", `{"type":"log","content":{"content":"nested"}}`, "nested"},
		{"message alias", `{"type":"log","message":"via message"}`, "via message"},
		{"null content falls through", `{"type":"log","content":null,"message":"m"}`, "m"},
		{"no content", `{"type":"log"}`, ""},
	}

	d := newTestDecoder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := d.Decode([]byte(tt.frame))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			log, ok := ev.(LogEvent)
			if !ok {
				t.Fatalf("event = %T, want LogEvent", ev)
			}
			if log.Content != tt.want {
				t.Errorf("Content = %q, want %q", log.Content, tt.want)
			}
			if !log.At().Equal(fixedNow) {
				t.Errorf("At() = %v, want decoder clock", log.At())
			}
		})
	}
}

func TestDecode_Timestamp(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  time.Time
	}{
		{"rfc3339", `{"type":"log","timestamp":"2026-01-02T03:04:05Z"}`, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"unix seconds", `{"type":"log","timestamp":1767323045}`, time.Unix(1767323045, 0).UTC()},
		{"unix millis", `{"type":"log","timestamp":1767323045123}`, time.UnixMilli(1767323045123).UTC()},
	}
	d := newTestDecoder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := d.Decode([]byte(tt.frame))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !ev.At().Equal(tt.want) {
				t.Errorf("At() = %v, want %v", ev.At(), tt.want)
			}
		})
	}
}

func TestDecodeAt_UsesReceiveTime(t *testing.T) {
	received := time.Date(2020, 5, 5, 5, 5, 5, 0, time.UTC)
	ev, err := newTestDecoder().DecodeAt([]byte(`{"type":"error","content":"x"}`), received)
	if err != nil {
		t.Fatal(err)
	}
	if !ev.At().Equal(received) {
		t.Errorf("At() = %v, want %v", ev.At(), received)
	}
}

func TestDecode_Result(t *testing.T) {
	frame := `{"type":"result","report":"# R","metadata":{"report_word_count":"1200","statistics":{"total_sections":4,"total_blocks":3}}}`
	ev, err := newTestDecoder().Decode([]byte(frame))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	res, ok := ev.(ResultEvent)
	if !ok {
		t.Fatalf("event = %T, want ResultEvent", ev)
	}
	if res.Report != "# R" {
		t.Errorf("Report = %q", res.Report)
	}
	if res.WordCount == nil || *res.WordCount != 1200 {
		t.Errorf("WordCount = %v, want 1200", res.WordCount)
	}
	if res.Sections == nil || *res.Sections != 4 {
		t.Errorf("Sections = %v, want 4", res.Sections)
	}
	if res.Statistics["total_blocks"] != float64(3) {
		t.Errorf("Statistics = %v", res.Statistics)
	}
	if !Terminal(res) {
		t.Error("result should be terminal")
	}
}

func TestDecode_ResultLooseMetadata(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"statistics list", `{"type":"result","report":"R","metadata":{"statistics":[]}}`},
		{"word count text", `{"type":"result","report":"R","metadata":{"report_word_count":"~900"}}`},
		{"metadata string", `{"type":"result","report":"R","metadata":"none"}`},
		{"bad section count", `{"type":"result","report":"R","metadata":{"statistics":{"total_sections":"many"}}}`},
		{"bad timestamp", `{"type":"result","report":"R","timestamp":"soon"}`},
	}
	d := newTestDecoder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := d.Decode([]byte(tt.frame))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			res, ok := ev.(ResultEvent)
			if !ok {
				t.Fatalf("event = %T, want ResultEvent", ev)
			}
			if res.Report != "R" {
				t.Errorf("Report = %q, want R", res.Report)
			}
			if res.WordCount != nil || res.Sections != nil {
				t.Errorf("WordCount = %v, Sections = %v, want both nil", res.WordCount, res.Sections)
			}
			if tt.name == "bad timestamp" && !res.At().Equal(fixedNow) {
				t.Errorf("At() = %v, want receive time", res.At())
			}
		})
	}
}

func TestDecode_Error(t *testing.T) {
	tests := []struct {
		frame string
		want  string
	}{
		{`{"type":"error","content":"kb not found"}`, "kb not found"},
		{`{"type":"error","message":"boom"}`, "boom"},
		{`{"type":"error"}`, "unknown error"},
		{`{"type":"error","content":{"detail":"boom"}}`, `{"detail":"boom"}`},
		{`{"type":"error","message":500}`, "500"},
		{`{"type":"error","error":"x","timestamp":"later"}`, "x"},
	}
	d := newTestDecoder()
	for _, tt := range tests {
		ev, err := d.Decode([]byte(tt.frame))
		if err != nil {
			t.Fatalf("Decode(%s) error = %v", tt.frame, err)
		}
		e := ev.(ErrorEvent)
		if e.Message != tt.want || e.Synthetic {
			t.Errorf("Decode(%s) = %+v, want message %q non-synthetic", tt.frame, e, tt.want)
		}
	}
}

func TestDecode_ProgressSparse(t *testing.T) {
	frame := `{"type":"progress","status":"researching","block_id":"t1","current_tool":"rag"}`
	ev, err := newTestDecoder().Decode([]byte(frame))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	p := ev.(ProgressEvent)

	if p.Stage != StageResearching || p.TaskID != "t1" {
		t.Errorf("stage/task = %q/%q", p.Stage, p.TaskID)
	}
	if p.CurrentTool == nil || *p.CurrentTool != "rag" {
		t.Errorf("CurrentTool = %v", p.CurrentTool)
	}
	if p.Iteration != nil || p.SubTopic != nil || p.WordCount != nil {
		t.Error("absent fields must decode as nil")
	}
	if p.Raw["current_tool"] != "rag" {
		t.Errorf("Raw = %v", p.Raw)
	}
}

func TestDecode_ProgressFull(t *testing.T) {
	frame := `{
		"type": "progress",
		"stage": "planning",
		"status": "decompose_completed",
		"original_topic": "quantum",
		"optimized_topic": "quantum error correction",
		"sub_topics": [{"id":"block_1","sub_topic":"codes"}, "decoders", {"block_id":"block_3","title":"hardware"}],
		"active_tasks": ["block_1"],
		"total_blocks": 3,
		"outline": [{"title":"Intro"},{"title":"Body"}]
	}`
	ev, err := newTestDecoder().Decode([]byte(frame))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	p := ev.(ProgressEvent)

	wantTopics := []SubTopic{{ID: "block_1", Label: "codes"}, {Label: "decoders"}, {ID: "block_3", Label: "hardware"}}
	if diff := cmp.Diff(wantTopics, p.SubTopics); diff != "" {
		t.Errorf("SubTopics mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Intro", "Body"}, p.Outline); diff != "" {
		t.Errorf("Outline mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"block_1"}, p.ActiveTaskIDs); diff != "" {
		t.Errorf("ActiveTaskIDs mismatch (-want +got):\n%s", diff)
	}
	if p.TotalBlocks == nil || *p.TotalBlocks != 3 {
		t.Errorf("TotalBlocks = %v", p.TotalBlocks)
	}
	if *p.OptimizedTopic != "quantum error correction" || *p.OriginalTopic != "quantum" {
		t.Errorf("topics = %q/%q", *p.OriginalTopic, *p.OptimizedTopic)
	}
}

func TestDecode_ProgressAliases(t *testing.T) {
	frame := `{"type":"progress","status":"writing_section","task_id":"x","current_section":"Intro","section_index":"2","message":"writing"}`
	ev, err := newTestDecoder().Decode([]byte(frame))
	if err != nil {
		t.Fatal(err)
	}
	p := ev.(ProgressEvent)
	if p.TaskID != "x" {
		t.Errorf("TaskID = %q, want task_id alias", p.TaskID)
	}
	if p.Stage != StageReporting {
		t.Errorf("Stage = %q, want reporting", p.Stage)
	}
	want := ProgressEvent{
		SectionTitle:  ptr("Intro"),
		SectionIndex:  ptr(2),
		CurrentAction: ptr("writing"),
	}
	if diff := cmp.Diff(want.SectionTitle, p.SectionTitle); diff != "" {
		t.Error(diff)
	}
	if diff := cmp.Diff(want.SectionIndex, p.SectionIndex); diff != "" {
		t.Error(diff)
	}
	if diff := cmp.Diff(want.CurrentAction, p.CurrentAction); diff != "" {
		t.Error(diff)
	}
}

func TestDecode_Unknown(t *testing.T) {
	ev, err := newTestDecoder().Decode([]byte(`{"type":"heartbeat","seq":7}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	u, ok := ev.(UnknownEvent)
	if !ok {
		t.Fatalf("event = %T, want UnknownEvent", ev)
	}
	if u.Kind() != "heartbeat" || u.Raw["seq"] != float64(7) {
		t.Errorf("unknown = %+v", u)
	}
	if Terminal(u) {
		t.Error("unknown events are not terminal")
	}
}

func TestDecode_FrameExcerptTruncated(t *testing.T) {
	frame := `{"type":"progress","iteration":"` + strings.Repeat("x", 600) + `"}`
	_, err := newTestDecoder().Decode([]byte(frame))
	var de *errors.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("want DecodeError, got %v", err)
	}
	if len(de.Frame) >= len(frame) {
		t.Errorf("frame excerpt not truncated: %d bytes", len(de.Frame))
	}
}

func TestZeroDecoder(t *testing.T) {
	var d Decoder
	if _, err := d.Decode([]byte(`{"type":"log","content":"x"}`)); err != nil {
		t.Fatalf("zero Decoder should work, got %v", err)
	}
}
