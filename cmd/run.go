package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ipreporter/internal/analysis"
	"ipreporter/internal/capture"
	"ipreporter/internal/capture/live"
	"ipreporter/internal/config"
	"ipreporter/internal/dispatch"
	"ipreporter/internal/log"
	"ipreporter/internal/matcher"
	"ipreporter/internal/models"
	"ipreporter/internal/reporting"
	"ipreporter/internal/session"
	"ipreporter/internal/store"
	"ipreporter/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// apply copies explicitly set flags over the loaded configuration.
func (o *options) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("interface") {
		cfg.Capture.Interface = o.iface
	}
	if flags.Changed("replay") {
		cfg.Capture.ReplayFile = o.replay
	}
	if flags.Changed("dump") {
		cfg.Capture.DumpFile = o.dump
	}
	if flags.Changed("output") {
		cfg.Export.Path = o.export
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if flags.Changed("headless") {
		cfg.UI.Headless = o.headless
	}
}

func run(cmd *cobra.Command, opts *options) error {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return err
	}
	opts.apply(cmd, cfg)

	// The TUI owns the terminal, so console logging is for headless runs only.
	if cfg.UI.Headless {
		cfg.Log.Console = true
	}
	logger := log.Init(cfg.Log)
	defer log.Close()

	open, sourceName := captureSource(cfg.Capture)

	stats := analysis.NewCaptureStats()
	sessOpts := []session.Option{
		session.WithStats(stats),
		session.WithLogger(logger.WithField("component", "session")),
	}
	if cfg.Capture.DumpFile != "" {
		rec, err := capture.NewRecorder(cfg.Capture.DumpFile, cfg.Capture.SnapLen)
		if err != nil {
			return err
		}
		defer rec.Close()
		sessOpts = append(sessOpts, session.WithRecorder(rec))
		logger.WithField("path", cfg.Capture.DumpFile).Info("Recording matched frames")
	}

	records := store.New()
	disp := dispatch.New()
	ctl := session.NewController(open, matcher.New(models.DefaultSignature()), records, disp, sessOpts...)
	defer ctl.Close()

	if cfg.UI.Headless {
		return runHeadless(cmd.Context(), cmd.OutOrStdout(), ctl, records, disp, cfg, logger)
	}
	return runTUI(ctl, records, disp, cfg, sourceName, logger)
}

func captureSource(c config.CaptureConfig) (capture.Opener, string) {
	if c.ReplayFile != "" {
		return capture.ReplayOpener(c.ReplayFile), c.ReplayFile
	}

	name := c.Interface
	if name == "" {
		name = "default interface"
	}
	return live.Opener(live.Options{
		Interface:   c.Interface,
		SnapLen:     c.SnapLen,
		Promiscuous: c.Promiscuous,
		Timeout:     c.Timeout,
	}), name
}

func runTUI(ctl *session.Controller, records *store.Store, disp *dispatch.Dispatcher, cfg *config.Config, sourceName string, logger *logrus.Logger) error {
	model := tui.NewReporterModel(ctl, records, disp,
		tui.WithSourceName(sourceName),
		tui.WithExport(cfg.Export.Path, cfg.Export.Format),
		tui.WithRefresh(cfg.UI.Refresh),
		tui.WithLogger(logger.WithField("component", "tui")),
	)

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// runHeadless listens until interrupted or until the source runs out, printing
// each record as it is drained, then exports everything collected.
func runHeadless(ctx context.Context, out io.Writer, ctl *session.Controller, records *store.Store, disp *dispatch.Dispatcher, cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := ctl.Start(); err != nil {
		return err
	}

	printPending := func() {
		for _, rec := range disp.Drain() {
			fmt.Fprintln(out, reporting.FormatLine(rec))
			logger.WithFields(logrus.Fields{"ip": rec.SourceIP, "mac": rec.SourceMAC}).Info("Device reported")
		}
	}

	ticker := time.NewTicker(cfg.UI.Refresh)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down")
			break loop
		case <-disp.Ready():
			printPending()
		case <-ticker.C:
			if ctl.State() == session.Stopped {
				logger.Info("Capture source exhausted")
				break loop
			}
		}
	}

	ctl.Close()
	printPending()

	c := ctl.Stats().Counters()
	logger.WithFields(logrus.Fields{
		"frames":   c.FramesRead,
		"matches":  c.Matches,
		"timeouts": c.Timeouts,
		"errors":   c.ReadErrors,
		"senders":  ctl.Stats().DistinctSenders(),
	}).Info("Capture finished")

	path := cfg.Export.Path
	format := reporting.FormatFromPath(path, cfg.Export.Format)
	if err := reporting.Export(path, records.Snapshot(), format); err != nil {
		return fmt.Errorf("failed to export records: %w", err)
	}
	logger.WithFields(logrus.Fields{"path": path, "records": records.Len()}).Info("Data exported.")
	return nil
}
