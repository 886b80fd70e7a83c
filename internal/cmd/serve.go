package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/atikulmunna/logrelay/internal/aggregator"
	"github.com/atikulmunna/logrelay/internal/config"
	"github.com/atikulmunna/logrelay/internal/ingest"
	"github.com/atikulmunna/logrelay/internal/logging"
	"github.com/atikulmunna/logrelay/internal/manager"
	"github.com/atikulmunna/logrelay/internal/metrics"
	"github.com/atikulmunna/logrelay/internal/parser"
	"github.com/atikulmunna/logrelay/internal/server"
	"github.com/atikulmunna/logrelay/internal/tailer"
	"github.com/atikulmunna/logrelay/internal/watcher"
)

var (
	demo         bool
	demoInterval time.Duration
	selfLogger   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the log relay HTTP server",
	Long: `Run the HTTP server that retains and streams logs.

Endpoints:
  GET    /logs/stream/:name   Server-Sent Events (backlog, then live)
  GET    /logs/ws/:name       WebSocket variant
  GET    /logs/data           polling (?logger= or ?logger0=&logger1=...)
  DELETE /logs/data           clear (?logger=, ?session= or everything)

Examples:
  logrelay serve
  logrelay serve --demo
  LOGRELAY_SERVER_ADDR=:9000 logrelay serve -c logrelay.yaml`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&demo, "demo", false, "emit sample entries to the \"main\" logger")
	serveCmd.Flags().DurationVar(&demoInterval, "demo-interval", 2*time.Second, "interval between demo entries")
	serveCmd.Flags().StringVar(&selfLogger, "self-logger", "logrelay", "logger that receives the service's own logs (empty disables)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Server.Env)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logging.Sync(logger)

	level, err := ingest.ParseLevel(cfg.Level.Default)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var mgr *manager.Manager
	stats := func() manager.Stats { return mgr.Stats() }
	met := metrics.New(reg, stats)
	agg := aggregator.New(stats)

	mgr = manager.New(manager.Options{
		Capacity:         cfg.Buffer.Capacity,
		SubscriberBuffer: cfg.Stream.SubscriberBuffer,
		DefaultLevel:     level,
		TimestampFormat:  cfg.Format.Timestamp,
		SweepInterval:    cfg.Sessions.SweepInterval,
		IdleTimeout:      cfg.Sessions.IdleTimeout,
		Logger:           logger,
		Observers:        []manager.Observer{agg, met},
	})
	defer mgr.Close()

	// The service's own INFO+ logs also land in a relay logger. The manager
	// keeps the plain logger so its drop reports never feed back into itself.
	svcLog := logger
	if selfLogger != "" {
		self := ingest.NewLogger(selfLogger, ingest.InfoLevel, mgr)
		svcLog = zap.New(zapcore.NewTee(logger.Core(), ingest.NewCore(self)))
	}

	srv := server.New(server.Options{
		Addr:       cfg.Server.Addr,
		Env:        cfg.Server.Env,
		KeepAlive:  cfg.Stream.KeepAlive,
		Logger:     svcLog,
		Aggregator: agg,
		Metrics:    met,
		Gatherer:   reg,
	})
	if err := mgr.Attach(srv); err != nil {
		return fmt.Errorf("attach server: %w", err)
	}

	go agg.Start(ctx)

	for _, src := range cfg.Sources {
		if err := startSource(ctx, mgr, src, cfg.Checkpoint.Dir, level, svcLog); err != nil {
			return fmt.Errorf("source %s: %w", src.Name, err)
		}
	}

	if demo {
		demoLogger, err := mgr.CreateLogger("main", level)
		if err != nil {
			return err
		}
		go runDemo(ctx, demoLogger, demoInterval)
	}

	return srv.Run(ctx)
}

// startSource tails the files matching src.Pattern into the logger src.Name.
func startSource(ctx context.Context, mgr *manager.Manager, src config.SourceConfig, ckptDir string, level ingest.Level, log *zap.Logger) error {
	p, err := parser.New(src.Format, src.Regex)
	if err != nil {
		return err
	}

	w, err := watcher.New([]string{src.Pattern}, log)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if len(w.Paths()) == 0 {
		log.Warn("source pattern matched no files", zap.String("source", src.Name), zap.String("pattern", src.Pattern))
	}

	var ckpt *tailer.Checkpoint
	if ckptDir != "" {
		ckpt, err = tailer.NewCheckpoint(filepath.Join(ckptDir, src.Name+".json"))
		if err != nil {
			return err
		}
	}

	lg, err := mgr.CreateLogger(src.Name, level)
	if err != nil {
		return err
	}

	t := tailer.New(w, ckpt, log)
	go w.Start(ctx)
	go t.Start(ctx)
	go tailer.Feed(ctx, t.Lines(), p, lg)

	log.Info("tailing source",
		zap.String("source", src.Name),
		zap.String("format", src.Format),
		zap.Strings("files", w.Paths()),
	)
	return nil
}

// runDemo emits a rotating set of entries to l until ctx is done. One entry
// per cycle goes through the slog bridge.
func runDemo(ctx context.Context, l *ingest.Logger, every time.Duration) {
	slogger := slog.New(ingest.NewHandler(l))
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for i := 1; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		switch i % 4 {
		case 1:
			l.Info("This is an info message (%d)", i)
		case 2:
			l.Warning("This is a warning message (%d)", i)
		case 3:
			l.Error("This is an error message (%d)", i)
		default:
			slogger.Info("request served", "path", "/", "status", 200, "seq", i)
		}
	}
}
