// Command pingserver is a sample server exercising the rpcengine connection
// driver end to end: it speaks LSP or DAP framing over stdio, answers
// "ping" immediately and "slow" after a cancellable delay, and runs a gin
// HTTP sidecar exposing /healthz and a Prometheus /metrics endpoint —
// grounded on the teacher's cmd/aleutian (cobra root command, YAML config)
// and cmd/trace (gin + otelgin diagnostics router) commands.
//
// Usage:
//
//	go run ./cmd/pingserver --protocol lsp
//	go run ./cmd/pingserver --protocol dap --http-addr :9191 --trace-stdout
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/tailbeam/rpcengine/registry"
	"github.com/tailbeam/rpcengine/rpcconn"
	"github.com/tailbeam/rpcengine/rpclog"
	"github.com/tailbeam/rpcengine/rpcmetrics"
	"github.com/tailbeam/rpcengine/rpctransport"
	"github.com/tailbeam/rpcengine/schedule"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "pingserver",
	Short: "Sample LSP/DAP server exercising the rpcengine connection driver",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "pingserver.yaml", "path to an optional YAML config file")
	rootCmd.Flags().String("protocol", "", "override protocol (lsp|dap)")
	rootCmd.Flags().String("http-addr", "", "override diagnostics sidecar address")
	rootCmd.Flags().Bool("trace-stdout", false, "emit spans to stdout")
	rootCmd.Flags().Bool("metrics-stdout", false, "also print metrics to stdout every 15s")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("pingserver exited with an error", "error", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, &cfg)

	log := rpclog.New(rpclog.Config{
		Level:   parseLevel(cfg.LogLevel),
		Format:  parseFormat(cfg.LogFormat),
		Service: "pingserver",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := setupTracing(cfg.TraceStdout)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	metricsHandler, err := setupMetrics(cfg.MetricsStdout)
	if err != nil {
		return err
	}
	metrics, err := rpcmetrics.New("github.com/tailbeam/rpcengine/cmd/pingserver")
	if err != nil {
		return fmt.Errorf("constructing metrics: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateBurst)
	}

	proto := rpcconn.LSP
	if cfg.Protocol == "dap" {
		proto = rpcconn.DAP
	}

	stdin, stdout := rpctransport.Stdio()
	stream := rpctransport.Pair(stdin, stdout)

	conn, err := rpcconn.New(rpcconn.Config{
		Protocol:     proto,
		Role:         rpcconn.RoleServer,
		Stream:       stream,
		Logger:       log,
		Metrics:      metrics,
		RateLimiter:  limiter,
		FlushTimeout: cfg.FlushTimeout,
	})
	if err != nil {
		return fmt.Errorf("constructing connection: %w", err)
	}

	if _, err := conn.RegisterHandler(&registry.HandlerRecord{Method: "ping", Type: schedule.Parallel, Fn: handlePing}); err != nil {
		return fmt.Errorf("registering ping handler: %w", err)
	}
	if _, err := conn.RegisterHandler(&registry.HandlerRecord{Method: "slow", Type: schedule.Parallel, Fn: handleSlow}); err != nil {
		return fmt.Errorf("registering slow handler: %w", err)
	}

	if err := conn.Connect(ctx); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: newDiagnosticsRouter(conn, metricsHandler)}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("diagnostics server stopped", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.FlushTimeout+time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)

	return conn.Disconnect(true)
}

func applyFlagOverrides(cmd *cobra.Command, cfg *Config) {
	if v, _ := cmd.Flags().GetString("protocol"); v != "" {
		cfg.Protocol = v
	}
	if v, _ := cmd.Flags().GetString("http-addr"); v != "" {
		cfg.HTTPAddr = v
	}
	if v, _ := cmd.Flags().GetBool("trace-stdout"); v {
		cfg.TraceStdout = true
	}
	if v, _ := cmd.Flags().GetBool("metrics-stdout"); v {
		cfg.MetricsStdout = true
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseFormat(format string) rpclog.Format {
	switch format {
	case "json":
		return rpclog.FormatJSON
	case "text":
		return rpclog.FormatText
	default:
		return rpclog.FormatAuto
	}
}
