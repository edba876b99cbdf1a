package logging

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestDefaultRotationConfig(t *testing.T) {
	cfg := DefaultRotationConfig()
	if cfg.MaxSizeMB != 10 || cfg.MaxBackups != 3 || cfg.Compress {
		t.Errorf("DefaultRotationConfig() = %+v", cfg)
	}
}

func TestNewRotatingWriter(t *testing.T) {
	t.Run("creates nested directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "a", "b", LogFileName)
		rw, err := NewRotatingWriter(path, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		defer rw.Close()

		if rw.FilePath() != path {
			t.Errorf("FilePath() = %q, want %q", rw.FilePath(), path)
		}
	})

	t.Run("picks up existing size", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), LogFileName)
		if err := os.WriteFile(path, []byte("12345"), 0644); err != nil {
			t.Fatal(err)
		}
		rw, err := NewRotatingWriter(path, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		defer rw.Close()

		if rw.CurrentSize() != 5 {
			t.Errorf("CurrentSize() = %d, want 5", rw.CurrentSize())
		}
	})
}

// smallWriter builds a writer with a limit of a few bytes.
func smallWriter(t *testing.T, limit int64, backups int, compress bool) (*RotatingWriter, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), LogFileName)
	rw, err := NewRotatingWriter(path, RotationConfig{MaxBackups: backups, Compress: compress})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	rw.limit = limit
	return rw, path
}

func TestRotatingWriterRotation(t *testing.T) {
	rw, path := smallWriter(t, 10, 2, false)

	for _, chunk := range []string{"aaaaaaaa\n", "bbbbbbbb\n", "cccccccc\n", "dddddddd\n"} {
		if _, err := rw.Write([]byte(chunk)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := rw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	read := func(p string) string {
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("read %s: %v", p, err)
		}
		return string(data)
	}

	if got := read(path); got != "dddddddd\n" {
		t.Errorf("current = %q", got)
	}
	if got := read(path + ".1"); got != "cccccccc\n" {
		t.Errorf(".1 = %q", got)
	}
	if got := read(path + ".2"); got != "bbbbbbbb\n" {
		t.Errorf(".2 = %q", got)
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Error("expected no .3 backup beyond MaxBackups")
	}
}

func TestRotatingWriterNoBackups(t *testing.T) {
	rw, path := smallWriter(t, 4, 0, false)
	_, _ = rw.Write([]byte("one\n"))
	_, _ = rw.Write([]byte("two\n"))
	_, _ = rw.Write([]byte("six\n"))
	rw.Close()

	if _, err := os.Stat(path + ".2"); !os.IsNotExist(err) {
		t.Error("MaxBackups=0 should not keep a .2 file")
	}
}

func TestRotatingWriterCompression(t *testing.T) {
	rw, path := smallWriter(t, 6, 2, true)
	_, _ = rw.Write([]byte("first\n"))
	_, _ = rw.Write([]byte("second\n"))
	if err := rw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f, err := os.Open(path + ".1.gz")
	if err != nil {
		t.Fatalf("compressed backup missing: %v", err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	data, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("read gzip: %v", err)
	}
	if string(data) != "first\n" {
		t.Errorf("decompressed = %q", data)
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Error("uncompressed backup should be removed")
	}
}

func TestRotatingWriterConcurrency(t *testing.T) {
	rw, path := smallWriter(t, 1024, 5, false)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = rw.Write([]byte("line of log output\n"))
			}
		}()
	}
	wg.Wait()
	if err := rw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line != "line of log output" {
			t.Fatalf("interleaved write detected: %q", line)
		}
	}
}

func TestRotatingWriterClose(t *testing.T) {
	rw, _ := smallWriter(t, 0, 1, false)
	if err := rw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := rw.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
	if _, err := rw.Write([]byte("x")); err == nil {
		t.Error("Write after Close should fail")
	}
	if err := rw.Sync(); err != nil {
		t.Errorf("Sync after Close = %v", err)
	}
}

func TestNewLoggerWithRotation(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLoggerWithRotation(dir, LevelInfo, RotationConfig{MaxSizeMB: 1, MaxBackups: 1})
	if err != nil {
		t.Fatalf("NewLoggerWithRotation failed: %v", err)
	}
	if _, ok := logger.closer.(*RotatingWriter); !ok {
		t.Fatalf("closer = %T, want *RotatingWriter", logger.closer)
	}
	logger.WithRun("r1").Info("rotated logger")
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"run_id":"r1"`) {
		t.Errorf("missing run_id in %s", data)
	}

	stderr, err := NewLoggerWithRotation("", LevelInfo, DefaultRotationConfig())
	if err != nil || stderr.closer != nil {
		t.Errorf("empty dir should yield stderr logger, got closer=%v err=%v", stderr.closer, err)
	}
}
