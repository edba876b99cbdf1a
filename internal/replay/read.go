package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Iron-Ham/dossier/internal/errors"
	"github.com/Iron-Ham/dossier/internal/logging"
	"github.com/Iron-Ham/dossier/internal/research"
	"github.com/Iron-Ham/dossier/internal/wire"
)

// ReadRecords parses every line of r. Blank lines are skipped; a line that
// is not a Record fails the whole read with its line number.
func ReadRecords(r io.Reader) ([]Record, error) {
	var records []Record
	br := bufio.NewReader(r)
	for n := 1; ; n++ {
		line, err := br.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			rec, perr := parseLine(line)
			if perr != nil {
				return records, fmt.Errorf("line %d: %w", n, perr)
			}
			records = append(records, rec)
		}
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
	}
}

func parseLine(line []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return Record{}, errors.NewDecodeError(err.Error(), errors.ErrMalformedEnvelope).WithFrame(line)
	}
	return rec, nil
}

// ReadFile reads a recording from disk.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := ReadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// Folder rebuilds a run state one record at a time, with the same reducer
// the live client uses.
type Folder struct {
	runID   string
	decoder *wire.Decoder
	logger  *logging.Logger

	state   research.RunState
	started bool
	dropped int
}

// NewFolder returns a Folder for runID. A nil decoder uses wire defaults.
func NewFolder(runID string, decoder *wire.Decoder, logger *logging.Logger) *Folder {
	if decoder == nil {
		decoder = wire.NewDecoder()
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Folder{
		runID:   runID,
		decoder: decoder,
		logger:  logger.WithRun(runID),
		state:   research.Idle(),
	}
}

// Apply folds one record into the state.
func (f *Folder) Apply(rec Record) {
	if rec.IsHeader() {
		f.state = research.NewRunState(f.runID, *rec.Start, rec.ReceivedAt)
		f.started = true
		if rec.URL != "" {
			f.state = research.Reduce(f.state, wire.NewConnectedEvent(rec.URL, rec.ReceivedAt))
		}
		return
	}
	if !f.started {
		// Recordings without a header still replay; the parameters are unknown.
		f.state = research.NewRunState(f.runID, wire.StartParams{}, rec.ReceivedAt)
		f.started = true
	}

	ev, err := f.decoder.DecodeAt(rec.Bytes(), rec.ReceivedAt)
	if err != nil {
		f.dropped++
		f.logger.Debug("skipping undecodable recorded frame", "error", err.Error())
		return
	}
	f.state = research.Reduce(f.state, ev)
}

// State returns the state folded so far.
func (f *Folder) State() research.RunState {
	return f.state
}

// Dropped returns how many recorded frames failed to decode.
func (f *Folder) Dropped() int {
	return f.dropped
}

// Fold replays records from scratch.
func Fold(runID string, records []Record, decoder *wire.Decoder) (research.RunState, int) {
	f := NewFolder(runID, decoder, nil)
	for _, rec := range records {
		f.Apply(rec)
	}
	return f.State(), f.Dropped()
}

// Load reads and folds the recording at path. The run id comes from the
// file name.
func Load(path string, decoder *wire.Decoder) (research.RunState, int, error) {
	records, err := ReadFile(path)
	if err != nil {
		return research.RunState{}, 0, err
	}
	state, dropped := Fold(RunIDFromPath(path), records, decoder)
	return state, dropped, nil
}
