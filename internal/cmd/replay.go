package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/dossier/internal/replay"
	"github.com/Iron-Ham/dossier/internal/research"
	"github.com/Iron-Ham/dossier/internal/tui"
	"github.com/Iron-Ham/dossier/internal/wire"
)

var replayCmd = &cobra.Command{
	Use:   "replay [recording]",
	Short: "Rebuild a run from a recording",
	Long: `Rebuild a run offline from a frame recording made with --record.

The argument is a path to a .jsonl recording or a run id in the recording
directory. Without an argument the available recordings are listed.

Examples:
  # List recordings, newest first
  dossier replay

  # Print a finished run
  dossier replay 3f6c2a9e-5d1b-4f0e-9a77-0c1d2e3f4a5b

  # Dump the final state as YAML
  dossier replay run.jsonl --format yaml

  # Follow a recording while the live client writes it
  dossier replay run.jsonl --follow`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReplay,
}

var (
	replayFollow bool
	replayFormat string
)

// Output formats of replay.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().BoolVarP(&replayFollow, "follow", "f", false, "Keep folding as the recording grows (text format only)")
	replayCmd.Flags().StringVar(&replayFormat, "format", formatText, "Output format: text, json or yaml")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		return listRecordings(out, cfg.RecordingDir())
	}

	switch replayFormat {
	case formatText, formatJSON, formatYAML:
	default:
		return fmt.Errorf("invalid format %q: must be one of text, json, yaml", replayFormat)
	}
	if replayFollow && replayFormat != formatText {
		return fmt.Errorf("--follow only supports the text format")
	}

	path := resolveRecording(args[0], cfg.RecordingDir())

	logger := createLogger(cfg)
	defer logger.Close()
	decoder := wire.NewDecoder()

	if replayFollow {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		printer := tui.NewPrinter(out)
		return replay.Follow(ctx, path, decoder, logger.WithRun(replay.RunIDFromPath(path)), printer.Print)
	}

	state, dropped, err := replay.Load(path, decoder)
	if err != nil {
		return fmt.Errorf("failed to load recording: %w", err)
	}
	if dropped > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %d undecodable frame(s) skipped\n", dropped)
	}
	return writeState(out, state, replayFormat)
}

// resolveRecording maps a run id to its file in dir. Anything that looks
// like a path is returned unchanged.
func resolveRecording(arg, dir string) string {
	if strings.ContainsRune(arg, filepath.Separator) || strings.HasSuffix(arg, replay.Extension) {
		return arg
	}
	return filepath.Join(dir, arg+replay.Extension)
}

// writeState renders a folded run in format.
func writeState(w io.Writer, state research.RunState, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(state); err != nil {
			return err
		}
		return enc.Close()
	default:
		tui.NewPrinter(w).Print(state)
		if state.Status == research.StatusRunning {
			fmt.Fprintln(w, "(recording ends before the run finished)")
		}
		return nil
	}
}

// listRecordings prints the recordings in dir, newest first.
func listRecordings(w io.Writer, dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		fmt.Fprintf(w, "No recordings found in %s\n", dir)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read recordings: %w", err)
	}

	type recording struct {
		runID string
		info  os.FileInfo
	}
	var recs []recording
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != replay.Extension {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		recs = append(recs, recording{runID: replay.RunIDFromPath(e.Name()), info: info})
	}
	if len(recs) == 0 {
		fmt.Fprintf(w, "No recordings found in %s\n", dir)
		return nil
	}

	sort.Slice(recs, func(i, j int) bool {
		return recs[i].info.ModTime().After(recs[j].info.ModTime())
	})
	for _, r := range recs {
		fmt.Fprintf(w, "%s  %s  %d bytes\n", r.info.ModTime().Format("2006-01-02 15:04:05"), r.runID, r.info.Size())
	}
	return nil
}
