// Package replay records the inbound frames of a run as JSON lines and
// folds a recording back into the state the live client saw.
package replay

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/Iron-Ham/dossier/internal/errors"
	"github.com/Iron-Ham/dossier/internal/wire"
)

// Extension is the file extension of a recording.
const Extension = ".jsonl"

// Record is one line of a recording. The first line of a file is a header
// carrying URL and Start; every later line carries one Frame.
type Record struct {
	ReceivedAt time.Time         `json:"received_at"`
	URL        string            `json:"url,omitempty"`
	Start      *wire.StartParams `json:"start,omitempty"`
	Frame      json.RawMessage   `json:"frame,omitempty"`
}

// NewFrameRecord wraps a frame. Frames that are not valid JSON, and JSON
// strings, are stored quoted so the line stays parseable and Bytes can
// tell the two apart.
func NewFrameRecord(receivedAt time.Time, frame []byte) (Record, error) {
	rec := Record{ReceivedAt: receivedAt.UTC()}
	if json.Valid(frame) && !bytes.HasPrefix(bytes.TrimSpace(frame), []byte(`"`)) {
		rec.Frame = append(json.RawMessage(nil), frame...)
		return rec, nil
	}
	quoted, err := json.Marshal(string(frame))
	if err != nil {
		return Record{}, errors.Wrap(err, "quote frame")
	}
	rec.Frame = quoted
	return rec, nil
}

// IsHeader reports whether r is the header line.
func (r Record) IsHeader() bool {
	return r.Start != nil
}

// Bytes returns the frame as it was received. Insignificant whitespace in
// JSON frames may have been compacted.
func (r Record) Bytes() []byte {
	if len(r.Frame) > 0 && r.Frame[0] == '"' {
		var s string
		if err := json.Unmarshal(r.Frame, &s); err == nil {
			return []byte(s)
		}
	}
	return r.Frame
}

// RunIDFromPath derives the run id from a recording file name.
func RunIDFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), Extension)
}
