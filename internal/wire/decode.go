package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Iron-Ham/dossier/internal/errors"
)

// Decoder turns raw frames into events. The zero value uses time.Now as
// its clock.
type Decoder struct {
	now func() time.Time
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithClock sets the clock used when an envelope carries no timestamp.
func WithClock(now func() time.Time) DecoderOption {
	return func(d *Decoder) {
		d.now = now
	}
}

// NewDecoder creates a Decoder.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode parses one frame using the decoder clock as the receive time.
func (d *Decoder) Decode(raw []byte) (Event, error) {
	now := time.Now
	if d != nil && d.now != nil {
		now = d.now
	}
	return d.DecodeAt(raw, now())
}

// DecodeAt parses one frame received at receivedAt. Every failure is a
// *errors.DecodeError; DecodeAt never panics.
func (d *Decoder) DecodeAt(raw []byte, receivedAt time.Time) (ev Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			ev = nil
			err = errors.NewDecodeError(fmt.Sprintf("decoder panic: %v", r), errors.ErrMalformedEnvelope).WithFrame(raw)
		}
	}()

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.NewDecodeError("envelope is not a JSON object", errors.ErrMalformedEnvelope).WithFrame(raw)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, errors.NewDecodeError(err.Error(), errors.ErrMalformedEnvelope).WithFrame(raw)
	}

	f := envelopeFields{raw: fields}
	typ, err := f.str("type")
	if err != nil {
		return nil, frameErr(err, raw)
	}
	if typ == nil || *typ == "" {
		return nil, errors.NewDecodeError("envelope has no type", errors.ErrMissingType).WithFrame(raw)
	}
	f.eventType = *typ

	kind := Kind(*typ)
	at, err := f.timestamp(receivedAt)
	if err != nil {
		// A terminal event is kept even when its timestamp is unreadable.
		if kind != KindResult && kind != KindError {
			return nil, frameErr(err, raw)
		}
		at = receivedAt
	}
	env := Envelope{Time: at}

	switch kind {
	case KindProgress:
		ev, err = f.progressEvent(env)
	case KindLog:
		ev, err = f.logEvent(env)
	case KindResult:
		ev, err = f.resultEvent(env)
	case KindError:
		ev, err = f.errorEvent(env)
	default:
		var all map[string]any
		all, err = f.all()
		ev = UnknownEvent{Envelope: env, Type: *typ, Raw: all}
	}
	if err != nil {
		return nil, frameErr(err, raw)
	}
	return ev, nil
}

func frameErr(err error, raw []byte) error {
	var de *errors.DecodeError
	if errors.As(err, &de) {
		return de.WithFrame(raw)
	}
	return errors.NewDecodeError(err.Error(), errors.ErrMalformedEnvelope).WithFrame(raw)
}

// envelopeFields reads typed optional fields out of a decoded object.
// JSON null is treated the same as an absent field.
type envelopeFields struct {
	raw       map[string]json.RawMessage
	eventType string
}

func (f envelopeFields) lookup(key string) (json.RawMessage, bool) {
	v, ok := f.raw[key]
	if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil, false
	}
	return v, true
}

func (f envelopeFields) invalid(key, msg string) *errors.DecodeError {
	return errors.NewDecodeError(msg, errors.ErrInvalidField).WithEventType(f.eventType).WithField(key)
}

func (f envelopeFields) str(key string) (*string, error) {
	v, ok := f.lookup(key)
	if !ok {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil, f.invalid(key, "expected a string")
	}
	return &s, nil
}

// num accepts a JSON number or a numeric string.
func (f envelopeFields) num(key string) (*int, error) {
	v, ok := f.lookup(key)
	if !ok {
		return nil, nil
	}
	n, ok := parseInt(v)
	if !ok {
		return nil, f.invalid(key, "expected a number")
	}
	return &n, nil
}

func parseInt(v json.RawMessage) (int, bool) {
	var fl float64
	if err := json.Unmarshal(v, &fl); err == nil {
		if math.IsNaN(fl) || math.IsInf(fl, 0) || fl != math.Trunc(fl) {
			return 0, false
		}
		if fl < math.MinInt32 || fl > math.MaxInt32 {
			return 0, false
		}
		return int(fl), true
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

func (f envelopeFields) stringList(key string) ([]string, error) {
	v, ok := f.lookup(key)
	if !ok {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(v, &out); err != nil {
		return nil, f.invalid(key, "expected a list of strings")
	}
	return out, nil
}

func (f envelopeFields) object(key string) (map[string]any, error) {
	v, ok := f.lookup(key)
	if !ok {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(v, &out); err != nil {
		return nil, f.invalid(key, "expected an object")
	}
	return out, nil
}

func (f envelopeFields) all() (map[string]any, error) {
	out := make(map[string]any, len(f.raw))
	for k, v := range f.raw {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return nil, f.invalid(k, err.Error())
		}
		out[k] = val
	}
	return out, nil
}

// timestamp reads an RFC 3339 string or a unix time in seconds or
// milliseconds. Absent timestamps fall back to receivedAt.
func (f envelopeFields) timestamp(receivedAt time.Time) (time.Time, error) {
	v, ok := f.lookup("timestamp")
	if !ok {
		return receivedAt, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, f.invalid("timestamp", "expected RFC 3339 time")
		}
		return t, nil
	}
	var n float64
	if err := json.Unmarshal(v, &n); err != nil {
		return time.Time{}, f.invalid("timestamp", "expected a time")
	}
	if n > 1e12 {
		return time.UnixMilli(int64(n)).UTC(), nil
	}
	sec, frac := math.Modf(n)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
}

// text reads a field that is either a string or an object whose "content"
// member is a string.
func (f envelopeFields) text(key string) (*string, error) {
	v, ok := f.lookup(key)
	if !ok {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return &s, nil
	}
	var nested struct {
		Content *string `json:"content"`
	}
	if err := json.Unmarshal(v, &nested); err != nil || nested.Content == nil {
		return nil, f.invalid(key, "expected a string or {content: string}")
	}
	return nested.Content, nil
}

func (f envelopeFields) firstText(keys ...string) (string, error) {
	for _, key := range keys {
		s, err := f.text(key)
		if err != nil {
			return "", err
		}
		if s != nil {
			return *s, nil
		}
	}
	return "", nil
}

// stringOrFirst reads a field under key, falling back to the alternates.
func (f envelopeFields) stringOrFirst(keys ...string) (*string, error) {
	for _, key := range keys {
		s, err := f.str(key)
		if err != nil || s != nil {
			return s, err
		}
	}
	return nil, nil
}

func (f envelopeFields) logEvent(env Envelope) (Event, error) {
	content, err := f.firstText("content", "message")
	if err != nil {
		return nil, err
	}
	return LogEvent{Envelope: env, Content: content}, nil
}

func (f envelopeFields) errorEvent(env Envelope) (Event, error) {
	msg := f.looseText("content", "message", "error")
	if msg == "" {
		msg = "unknown error"
	}
	return ErrorEvent{Envelope: env, Message: msg}, nil
}

// looseText is firstText for terminal events: a value of the wrong shape
// yields its compact JSON text instead of an error.
func (f envelopeFields) looseText(keys ...string) string {
	for _, key := range keys {
		s, err := f.text(key)
		if err == nil {
			if s != nil {
				return *s
			}
			continue
		}
		v, _ := f.lookup(key)
		var buf bytes.Buffer
		if json.Compact(&buf, v) != nil {
			return string(bytes.TrimSpace(v))
		}
		return buf.String()
	}
	return ""
}

// resultEvent keeps the report whenever it is a string. Metadata fields of
// the wrong shape are left unset.
func (f envelopeFields) resultEvent(env Envelope) (Event, error) {
	ev := ResultEvent{Envelope: env}

	report, err := f.str("report")
	if err != nil {
		return nil, err
	}
	if report != nil {
		ev.Report = *report
	}

	meta, ok := f.lookup("metadata")
	if !ok {
		return ev, nil
	}
	var metaFields map[string]json.RawMessage
	if err := json.Unmarshal(meta, &metaFields); err != nil {
		return ev, nil
	}
	m := envelopeFields{raw: metaFields, eventType: f.eventType}

	ev.WordCount, _ = m.num("report_word_count")
	ev.Statistics, _ = m.object("statistics")
	if raw, ok := m.lookup("statistics"); ok {
		var statFields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &statFields); err == nil {
			s := envelopeFields{raw: statFields, eventType: f.eventType}
			ev.Sections, _ = s.num("total_sections")
		}
	}
	return ev, nil
}

func (f envelopeFields) progressEvent(env Envelope) (Event, error) {
	ev := ProgressEvent{Envelope: env}

	status, err := f.str("status")
	if err != nil {
		return nil, err
	}
	stage, err := f.str("stage")
	if err != nil {
		return nil, err
	}
	if status != nil {
		ev.Status = *status
	}
	var declared string
	if stage != nil {
		declared = *stage
	}
	ev.Stage = ResolveStage(declared, ev.Status)

	taskID, err := f.stringOrFirst("block_id", "task_id")
	if err != nil {
		return nil, err
	}
	if taskID != nil {
		ev.TaskID = *taskID
	}

	strFields := []struct {
		dst  **string
		keys []string
	}{
		{&ev.SubTopic, []string{"sub_topic"}},
		{&ev.CurrentAction, []string{"current_action", "message"}},
		{&ev.CurrentTool, []string{"current_tool"}},
		{&ev.ToolType, []string{"tool_type"}},
		{&ev.Query, []string{"query"}},
		{&ev.Thought, []string{"thought"}},
		{&ev.Error, []string{"error"}},
		{&ev.OriginalTopic, []string{"original_topic"}},
		{&ev.OptimizedTopic, []string{"optimized_topic"}},
		{&ev.SectionTitle, []string{"section_title", "current_section"}},
	}
	for _, sf := range strFields {
		if *sf.dst, err = f.stringOrFirst(sf.keys...); err != nil {
			return nil, err
		}
	}

	numFields := []struct {
		dst **int
		key string
	}{
		{&ev.Iteration, "iteration"},
		{&ev.MaxIterations, "max_iterations"},
		{&ev.TotalBlocks, "total_blocks"},
		{&ev.CompletedBlocks, "completed_blocks"},
		{&ev.CurrentBlock, "current_block"},
		{&ev.SectionIndex, "section_index"},
		{&ev.TotalSections, "total_sections"},
		{&ev.WordCount, "word_count"},
	}
	for _, nf := range numFields {
		if *nf.dst, err = f.num(nf.key); err != nil {
			return nil, err
		}
	}

	if ev.SubTopics, err = f.subTopics("sub_topics"); err != nil {
		return nil, err
	}
	if ev.ActiveTaskIDs, err = f.stringList("active_tasks"); err != nil {
		return nil, err
	}
	if ev.Outline, err = f.outline("outline"); err != nil {
		return nil, err
	}
	if ev.Raw, err = f.all(); err != nil {
		return nil, err
	}
	return ev, nil
}

// subTopics accepts a list of strings or of objects carrying an id and a
// label under one of several names.
func (f envelopeFields) subTopics(key string) ([]SubTopic, error) {
	v, ok := f.lookup(key)
	if !ok {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(v, &items); err != nil {
		return nil, f.invalid(key, "expected a list")
	}
	out := make([]SubTopic, 0, len(items))
	for _, item := range items {
		var label string
		if err := json.Unmarshal(item, &label); err == nil {
			out = append(out, SubTopic{Label: label})
			continue
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(item, &obj); err != nil {
			return nil, f.invalid(key, "expected strings or objects")
		}
		o := envelopeFields{raw: obj, eventType: f.eventType}
		id, err := o.stringOrFirst("id", "block_id")
		if err != nil {
			return nil, f.invalid(key, "sub-topic id must be a string")
		}
		lbl, err := o.stringOrFirst("label", "sub_topic", "title")
		if err != nil {
			return nil, f.invalid(key, "sub-topic label must be a string")
		}
		var st SubTopic
		if id != nil {
			st.ID = *id
		}
		if lbl != nil {
			st.Label = *lbl
		}
		out = append(out, st)
	}
	return out, nil
}

// outline accepts a list of section titles or of {title} objects.
func (f envelopeFields) outline(key string) ([]string, error) {
	v, ok := f.lookup(key)
	if !ok {
		return nil, nil
	}
	var titles []string
	if err := json.Unmarshal(v, &titles); err == nil {
		return titles, nil
	}
	var sections []struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(v, &sections); err != nil {
		return nil, f.invalid(key, "expected a list of titles")
	}
	titles = make([]string, 0, len(sections))
	for _, s := range sections {
		titles = append(titles, s.Title)
	}
	return titles, nil
}
