package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/Iron-Ham/dossier/internal/config"
	"github.com/Iron-Ham/dossier/internal/errors"
	"github.com/Iron-Ham/dossier/internal/event"
	"github.com/Iron-Ham/dossier/internal/logging"
	"github.com/Iron-Ham/dossier/internal/replay"
	"github.com/Iron-Ham/dossier/internal/research"
	"github.com/Iron-Ham/dossier/internal/stream"
	"github.com/Iron-Ham/dossier/internal/summary"
	"github.com/Iron-Ham/dossier/internal/toolset"
	"github.com/Iron-Ham/dossier/internal/tui"
	"github.com/Iron-Ham/dossier/internal/wire"
)

var runCmd = &cobra.Command{
	Use:   "run <topic...>",
	Short: "Start a research run and follow it live",
	Long: `Start a research run on the configured service and follow it until the
report is written.

On a terminal the run is shown in a full-screen dashboard; otherwise each
change is printed as a plain line. Ctrl-C stops the run.

Examples:
  dossier run "coral reef decline since 2000"
  dossier run --kb marine --mode deep --tools 'rag_*' --tools web_search reef restoration
  dossier run --plain --record "state of solid-state batteries" > run.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

// cancelMessage is logged into the run when the user stops it.
const cancelMessage = "Run cancelled by user"

func init() {
	rootCmd.AddCommand(runCmd)

	flags := runCmd.Flags()
	flags.String("kb", "", "knowledge base to research against")
	flags.String("mode", "", "plan mode: quick, medium, deep or auto")
	flags.StringSlice("tools", nil, "enabled tools; names or glob patterns, repeatable")
	flags.Bool("skip-rephrase", false, "skip rephrasing the topic during planning")
	flags.Bool("plain", false, "print plain lines instead of the dashboard")
	flags.String("server", "", "service base URL, e.g. ws://localhost:8001")
	flags.Bool("record", false, "record inbound frames for replay")

	// Flags override config file and environment values
	bindings := map[string]string{
		"run.knowledge_base": "kb",
		"run.plan_mode":      "mode",
		"run.enabled_tools":  "tools",
		"run.skip_rephrase":  "skip-rephrase",
		"tui.plain":          "plain",
		"server.url":         "server",
		"recording.enabled":  "record",
	}
	for key, flag := range bindings {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}

// buildParams turns the run configuration into the start message, expanding
// tool patterns against the catalogue.
func buildParams(cfg *config.Config, topic string) (wire.StartParams, error) {
	params := cfg.Run.Params(topic)
	tools, err := toolset.FromNames(cfg.Tools.Catalog).Select(params.EnabledTools)
	if err != nil {
		return wire.StartParams{}, err
	}
	params.EnabledTools = tools
	if err := params.Validate(); err != nil {
		return wire.StartParams{}, err
	}
	return params, nil
}

// session wires one run: the store, the bus and the connection manager.
type session struct {
	cfg     *config.Config
	logger  *logging.Logger
	bus     *event.Bus
	store   *research.Store
	bridge  *summary.Bridge
	manager *stream.Manager
	closers []func()

	mu       sync.Mutex
	startErr error
}

func newSession(cfg *config.Config, logger *logging.Logger) (*session, error) {
	endpoint, err := cfg.Server.Endpoint()
	if err != nil {
		return nil, fmt.Errorf("invalid server endpoint: %w", err)
	}

	s := &session{
		cfg:    cfg,
		logger: logger,
		bus:    event.NewBus(event.WithLogger(logger)),
		store:  research.NewStore(logger),
	}
	s.bridge = summary.NewBridge(s.bus, logger)
	s.closers = append(s.closers, s.bridge.Close)

	opts := []stream.Option{
		stream.WithBus(s.bus),
		stream.WithLogger(logger),
		stream.WithHandshakeTimeout(cfg.Server.HandshakeTimeout()),
		stream.WithWriteTimeout(cfg.Server.WriteTimeout()),
		stream.WithCloseOnTerminal(cfg.Server.CloseOnTerminal),
	}
	if cfg.Recording.Enabled {
		rec, err := replay.NewFileRecorder(cfg.RecordingDir(), logger)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("failed to open recordings: %w", err)
		}
		s.closers = append(s.closers, func() { _ = rec.Close() })
		opts = append(opts, stream.WithRecorder(rec))
	}
	s.manager = stream.NewManager(endpoint, s.store, opts...)
	return s, nil
}

// start opens the run. A failed start is already in the run state; the
// error is kept for the exit status.
func (s *session) start(ctx context.Context, params wire.StartParams) {
	if _, err := s.manager.StartRun(ctx, params); err != nil {
		s.logger.Warn("run did not start", "error", err.Error())
		s.mu.Lock()
		s.startErr = err
		s.mu.Unlock()
	}
}

// failure returns the error a run that ended with final.Error exits with:
// the transport error when the connection failed, otherwise the error the
// service reported.
func (s *session) failure(final research.RunState) error {
	s.mu.Lock()
	startErr := s.startErr
	s.mu.Unlock()
	if startErr != nil {
		return startErr
	}
	if err := s.manager.Err(); err != nil {
		return err
	}
	return errors.NewRunError(final.Error).WithRunID(final.RunID)
}

// stop closes the live run and records the cancellation in its log. It is
// a no-op when the run already ended.
func (s *session) stop() {
	runID := s.manager.RunID()
	if err := s.manager.StopRun(); err != nil {
		return
	}
	if state, ok := s.store.Apply(runID, wire.NewLogEvent(cancelMessage, time.Now())); ok {
		s.bus.Publish(event.NewStateChangedEvent(state))
	}
	s.logger.WithRun(runID).Info("run cancelled by user")
}

func (s *session) close() {
	_ = s.manager.Close()
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := createLogger(cfg)
	defer logger.Close()

	topic := strings.Join(args, " ")
	params, err := buildParams(cfg, topic)
	if err != nil {
		return err
	}

	sess, err := newSession(cfg, logger)
	if err != nil {
		return err
	}
	defer sess.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	if !cfg.TUI.Plain && isTerminal(out) {
		err = runDashboard(ctx, sess, params, out)
	} else {
		err = runPlain(ctx, sess, params, out)
	}
	if err != nil {
		return err
	}

	final := sess.store.Snapshot()
	if final.Status == research.StatusIdle && final.Error != "" {
		return sess.failure(final)
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// runPlain prints the run line by line until it ends or ctx is cancelled.
func runPlain(ctx context.Context, sess *session, params wire.StartParams, out io.Writer) error {
	printer := tui.NewPrinter(out)
	detach := printer.Attach(sess.bus)
	defer detach()

	sess.start(ctx, params)

	select {
	case <-sess.manager.Done():
	case <-ctx.Done():
		sess.stop()
	}
	return nil
}

// runDashboard runs the interactive dashboard. The report stays on screen
// after the alternate screen is left.
func runDashboard(ctx context.Context, sess *session, params wire.StartParams, out io.Writer) error {
	model := tui.NewModel(tui.Options{
		MaxLogLines:    sess.cfg.TUI.MaxLogLines,
		RenderMarkdown: sess.cfg.TUI.RenderMarkdown,
		Start:          func() { sess.start(ctx, params) },
		Stop:           sess.stop,
	})
	app := tui.New(model, sess.bus, tea.WithAltScreen(), tea.WithOutput(out))

	go func() {
		<-ctx.Done()
		app.Quit()
	}()

	if _, err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	sess.stop()

	final := sess.store.Snapshot()
	if final.Status == research.StatusCompleted && final.Report != "" {
		report := final.Report
		if sess.cfg.TUI.RenderMarkdown {
			width := 80
			if f, ok := out.(*os.File); ok {
				if w, _, err := term.GetSize(int(f.Fd())); err == nil {
					width = w
				}
			}
			report = tui.RenderMarkdown(report, width)
		}
		fmt.Fprintln(out, report)
	}
	return nil
}
