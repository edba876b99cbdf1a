package replay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/dossier/internal/logging"
	"github.com/Iron-Ham/dossier/internal/research"
	"github.com/Iron-Ham/dossier/internal/wire"
)

// followDebounce coalesces bursts of writes into one read.
const followDebounce = 100 * time.Millisecond

// tail reads complete lines appended to a file since the last call.
type tail struct {
	path    string
	offset  int64
	partial []byte
}

func (t *tail) next() ([]Record, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.Size() < t.offset {
		// Truncated and rewritten: start over.
		t.offset = 0
		t.partial = nil
	}
	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return nil, err
	}
	chunk, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	t.offset += int64(len(chunk))

	buf := append(t.partial, chunk...)
	end := bytes.LastIndexByte(buf, '\n')
	if end < 0 {
		t.partial = buf
		return nil, nil
	}
	t.partial = append([]byte(nil), buf[end+1:]...)
	return ReadRecords(bytes.NewReader(buf[:end+1]))
}

// Follow folds the recording at path and keeps folding as the live client
// appends to it. fn is called with the state after the initial read and
// after every batch of new records. Follow returns when ctx is done or the
// run has finished.
func Follow(ctx context.Context, path string, decoder *wire.Decoder, logger *logging.Logger, fn func(research.RunState)) error {
	if logger == nil {
		logger = logging.NopLogger()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory; the file may not exist until the run starts.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}

	folder := NewFolder(RunIDFromPath(path), decoder, logger)
	t := &tail{path: path}

	catchUp := func() (bool, error) {
		records, err := t.next()
		if os.IsNotExist(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if len(records) == 0 {
			return false, nil
		}
		for _, rec := range records {
			folder.Apply(rec)
		}
		state := folder.State()
		fn(state)
		return state.Finished(), nil
	}

	if done, err := catchUp(); err != nil || done {
		return err
	}

	target := filepath.Base(path)
	debounce := time.NewTimer(0)
	<-debounce.C

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			debounce.Reset(followDebounce)

		case <-debounce.C:
			done, err := catchUp()
			if err != nil {
				return err
			}
			if done {
				return nil
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("recording watcher error", "path", path, "error", err.Error())
		}
	}
}
