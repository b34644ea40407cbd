package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
	"github.com/viant/artifex"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the processor",
	Long: `Run starts fetch workers and verification, accepts assignment files
dropped into the inbox and writes encoded status reports into the outbox.

Example:
  artifex run --config artifex.yaml --inbox /var/artifex/inbox --outbox /var/artifex/outbox
  ARTIFEX_PROCESSOR_WORKERS=4 artifex run --metrics-addr :9090
`,
	RunE: runProcessor,
}

func init() {
	runCmd.Flags().Int("workers", 1, "Fetch workers")
	runCmd.Flags().String("inbox", "/tmp/artifex/inbox", "Assignment inbox URL")
	runCmd.Flags().String("outbox", "/tmp/artifex/outbox", "Status report outbox URL")
	runCmd.Flags().Duration("poll-interval", time.Second, "Inbox poll interval")
	runCmd.Flags().String("metrics-addr", "", "Prometheus metrics listen address, disabled when empty")

	_ = viper.BindPFlag("processor.workers", runCmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("inbox", runCmd.Flags().Lookup("inbox"))
	_ = viper.BindPFlag("outbox", runCmd.Flags().Lookup("outbox"))
	_ = viper.BindPFlag("poll_interval", runCmd.Flags().Lookup("poll-interval"))
	_ = viper.BindPFlag("metrics.addr", runCmd.Flags().Lookup("metrics-addr"))
}

func runProcessor(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := slog.Default()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	metricsAddr := viper.GetString("metrics.addr")
	cfg.Metrics.Enabled = cfg.Metrics.Enabled || metricsAddr != ""
	srv, err := artifex.New(ctx, artifex.WithConfig(cfg), artifex.WithLogger(log))
	if err != nil {
		return err
	}
	rt := srv.Runtime()
	if err = rt.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := rt.Shutdown(context.Background()); err != nil {
			log.Error("shutdown failed", "error", err)
		}
	}()

	if metricsAddr != "" {
		server := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(srv.Metrics().Registry(), promhttp.HandlerOpts{})}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", "error", err)
			}
		}()
		defer func() { _ = server.Shutdown(context.Background()) }()
		log.Info("metrics server started", "addr", metricsAddr)
	}

	fs := afs.New()
	go drainOutbox(ctx, fs, rt, viper.GetString("outbox"), log)
	return watchInbox(ctx, fs, rt, viper.GetString("inbox"), viper.GetDuration("poll_interval"), log)
}

// watchInbox submits assignment files in name order and moves them to processed/ or rejected/
func watchInbox(ctx context.Context, fs afs.Service, rt *artifex.Runtime, inbox string, interval time.Duration, log *slog.Logger) error {
	processed := url.Join(inbox, "processed")
	rejected := url.Join(inbox, "rejected")
	for _, dir := range []string{inbox, processed, rejected} {
		if exists, _ := fs.Exists(ctx, dir); !exists {
			if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
				return fmt.Errorf("failed to create %v: %w", dir, err)
			}
		}
	}
	log.Info("watching inbox", "inbox", inbox)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		objects, err := fs.List(ctx, inbox, option.NewRecursive(false))
		if err != nil {
			log.Warn("failed to list inbox", "inbox", inbox, "error", err)
		}
		var names []string
		for _, object := range objects {
			if object.IsDir() || !(strings.HasSuffix(object.Name(), ".yaml") || strings.HasSuffix(object.Name(), ".yml")) {
				continue
			}
			names = append(names, object.Name())
		}
		sort.Strings(names)
		for _, name := range names {
			source := url.Join(inbox, name)
			data, err := fs.DownloadWithURL(ctx, source)
			if err != nil {
				log.Warn("failed to read assignment", "url", source, "error", err)
				continue
			}
			destination := processed
			receipt, err := rt.HandleAssignment(ctx, data)
			if err != nil {
				destination = rejected
				log.Error("assignment rejected", "url", source, "error", err)
			} else {
				log.Info("assignment accepted", "url", source, "batch_id", receipt.BatchID, "enqueued", receipt.Enqueued)
			}
			if err = fs.Move(ctx, source, url.Join(destination, name)); err != nil {
				log.Error("failed to move assignment", "url", source, "error", err)
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// drainOutbox writes each encoded report into the outbox directory
func drainOutbox(ctx context.Context, fs afs.Service, rt *artifex.Runtime, outbox string, log *slog.Logger) {
	for {
		msg, err := rt.Outbox().Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("failed to consume report", "error", err)
			continue
		}
		report := msg.T()
		name := fmt.Sprintf("%020d-%s.yaml", report.CreatedAt.UnixNano(), report.ID)
		if err = fs.Upload(ctx, url.Join(outbox, name), file.DefaultFileOsMode, bytes.NewReader(report.Data)); err != nil {
			log.Error("failed to write report", "task_id", report.TaskID, "error", err)
			_ = msg.Nack(err)
			continue
		}
		_ = msg.Ack()
	}
}
