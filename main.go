package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/raine/auction-bot/config"
	"github.com/raine/auction-bot/internal/browser"
	"github.com/raine/auction-bot/internal/files"
	"github.com/raine/auction-bot/internal/ipcheck"
	"github.com/raine/auction-bot/internal/metrics"
	"github.com/raine/auction-bot/internal/notify"
	"github.com/raine/auction-bot/internal/pipeline"
	"github.com/raine/auction-bot/internal/scraper"
	"github.com/raine/auction-bot/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	config.LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		fatalWithWait("invalid configuration: %v", err)
	}

	if missing := cfg.CheckRequired(); len(missing) > 0 {
		if !isInteractiveTerminal() {
			fatalWithWait("missing required config: %s", strings.Join(missing, ", "))
		}
		if !runSetupWizard(missing) {
			waitOnWindows()
			os.Exit(1)
		}
		if cfg, err = config.Load(); err != nil {
			fatalWithWait("invalid configuration: %v", err)
		}
	}

	layout := files.NewLayout(cfg.DataDir)
	if err := layout.Ensure(); err != nil {
		fatalWithWait("failed to prepare data directory: %v", err)
	}

	logFile, err := os.OpenFile(layout.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fatalWithWait("failed to open log file: %v", err)
	}
	defer logFile.Close()
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
	fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
	log.Logger = log.Output(io.MultiWriter(consoleWriter, fileWriter))
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	log.Info().Str("logFile", layout.LogPath()).Msg("logging to file")

	if isInteractiveTerminal() {
		printBanner(cfg)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sum, err := run(ctx, cfg, layout)
	if err != nil {
		fatalWithWait("run failed: %v", err)
	}
	if sum.Interrupted {
		log.Warn().Str("run", sum.RunID).Msg("run interrupted, progress saved")
		return
	}
	printSummary(sum)
}

// run verifies the network, starts the browser and drives one pipeline run.
// The metrics server, when enabled, lives as long as the run.
func run(ctx context.Context, cfg *config.Config, layout files.Layout) (*pipeline.Summary, error) {
	if cfg.CheckIP {
		if err := ipcheck.New("").Verify(ctx, cfg.HomeIP); err != nil {
			return nil, err
		}
	} else {
		log.Warn().Msg("ip check disabled")
	}

	var store *storage.SQLiteStore
	if cfg.CacheEnabled {
		s, err := storage.NewSQLiteStore(layout.CachePath())
		if err != nil {
			return nil, fmt.Errorf("failed to open cache: %w", err)
		}
		defer s.Close()
		store = s
		log.Info().Str("dbPath", layout.CachePath()).Msg("cache store initialized")
	}

	session, err := browser.Launch(browser.Options{
		Headless: cfg.HeadlessBrowser,
		Bin:      cfg.BrowserBin,
	})
	if err != nil {
		return nil, err
	}
	defer session.Close()

	finder, err := newFinder(ctx, cfg, layout, store)
	if err != nil {
		return nil, err
	}

	scr := scraper.New(session, layout, cfg.BaseURL)
	opts := pipeline.Options{
		AuctionURL: cfg.AuctionURL,
		MaxItems:   cfg.MaxItems,
		ItemDelay:  cfg.ItemDelay,
		Enrich:     newEnrichStage(cfg, layout),
		Pricer:     finder,
		Snapshots:  layout,
		ReportPath: layout.ReportPath(),
	}
	if store != nil {
		opts.Runs = store
	}
	orchestrator := pipeline.New(scr, scr, opts)

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stopMetrics := context.WithCancel(gctx)
	defer stopMetrics()

	if cfg.MetricsPort != "" {
		g.Go(func() error {
			return serveMetrics(runCtx, cfg.MetricsPort)
		})
	}

	var sum *pipeline.Summary
	g.Go(func() error {
		defer stopMetrics()
		s, err := orchestrator.Run(runCtx)
		if err != nil {
			return err
		}
		sum = s
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if sum == nil {
		return nil, errors.New("run stopped before it finished")
	}

	if !sum.Interrupted && cfg.NotifyEnabled() {
		sendNotification(cfg, sum)
	}
	return sum, nil
}

// serveMetrics runs the metrics server until ctx ends. Server failures are
// logged and never cancel the run.
func serveMetrics(ctx context.Context, port string) error {
	if err := metrics.Serve(ctx, port); err != nil {
		log.Error().Err(err).Str("port", port).Msg("metrics server failed, continuing without it")
	}
	return nil
}

func sendNotification(cfg *config.Config, sum *pipeline.Summary) {
	n, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, cfg.NotifyTopN)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize telegram bot")
		return
	}
	if _, err := n.Send(cfg.AuctionURL, sum.Items); err != nil {
		log.Error().Err(err).Msg("failed to send telegram summary")
	}
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

func printBanner(cfg *config.Config) {
	lines := []string{
		titleStyle.Render("Auction Bot"),
		labelStyle.Render("auction  ") + cfg.AuctionURL,
		labelStyle.Render("max      ") + fmt.Sprint(cfg.MaxItems),
		labelStyle.Render("data     ") + cfg.DataDir,
	}
	fmt.Println(boxStyle.Render(strings.Join(lines, "\n")))
}

func printSummary(sum *pipeline.Summary) {
	lines := []string{
		titleStyle.Render("Run complete"),
		labelStyle.Render("run      ") + sum.RunID,
		labelStyle.Render("items    ") + valueStyle.Render(fmt.Sprint(len(sum.Items))),
		labelStyle.Render("skipped  ") + fmt.Sprint(sum.Skipped),
	}
	if sum.ReportPath != "" {
		lines = append(lines, labelStyle.Render("report   ")+sum.ReportPath)
	}
	fmt.Println(boxStyle.Render(strings.Join(lines, "\n")))
}
