package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Iron-Ham/dossier/internal/errors"
	"github.com/Iron-Ham/dossier/internal/logging"
	"github.com/Iron-Ham/dossier/internal/wire"
)

// FileRecorder writes one <dir>/<run id>.jsonl file per run.
type FileRecorder struct {
	dir    string
	logger *logging.Logger

	mu    sync.Mutex
	files map[string]*os.File
}

// NewFileRecorder creates dir if needed.
func NewFileRecorder(dir string, logger *logging.Logger) (*FileRecorder, error) {
	if dir == "" {
		return nil, errors.NewValidationError("recording directory must not be empty").WithField("recording.dir")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create recording directory: %w", err)
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &FileRecorder{
		dir:    dir,
		logger: logger,
		files:  make(map[string]*os.File),
	}, nil
}

// Path returns the recording file of runID.
func (r *FileRecorder) Path(runID string) string {
	return filepath.Join(r.dir, runID+Extension)
}

// Begin creates the file of runID and writes its header line.
func (r *FileRecorder) Begin(runID, url string, at time.Time, params wire.StartParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.files[runID]; ok {
		_ = f.Close()
	}
	f, err := os.OpenFile(r.Path(runID), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create recording: %w", err)
	}
	r.files[runID] = f
	r.logger.Debug("recording run", "run_id", runID, "path", f.Name())
	return r.writeLocked(f, Record{ReceivedAt: at.UTC(), URL: url, Start: &params})
}

// Record appends one frame to the file of runID.
func (r *FileRecorder) Record(runID string, receivedAt time.Time, frame []byte) error {
	rec, err := NewFrameRecord(receivedAt, frame)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.files[runID]
	if !ok {
		return errors.Wrapf(errors.ErrNoActiveRun, "no recording open for run %s", runID)
	}
	return r.writeLocked(f, rec)
}

func (r *FileRecorder) writeLocked(f *os.File, rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "encode record")
	}
	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("failed to write recording: %w", err)
	}
	return nil
}

// Finish closes the file of runID. Finishing an unknown run is a no-op.
func (r *FileRecorder) Finish(runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.files[runID]
	if !ok {
		return nil
	}
	delete(r.files, runID)
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close recording: %w", err)
	}
	return nil
}

// Close finishes every open recording.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for id, f := range r.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(r.files, id)
	}
	return errors.Join(errs...)
}
