package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charukad/traceiq/internal/config"
	"github.com/charukad/traceiq/internal/constants"
	"github.com/charukad/traceiq/internal/web"
	"github.com/charukad/traceiq/internal/web/handlers"
	"github.com/charukad/traceiq/internal/web/middleware"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the TraceIQ HTTP API.
The API exposes identification, face enrollment and identification statistics.
The X-Actor-ID request header is recorded in the audit log.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.backend.Health(ctx); err != nil {
		log.Warnf("serve: embedding service not reachable yet: %v", err)
	}

	checks := map[string]handlers.CheckFunc{
		"database":  a.pool.Ping,
		"embedding": a.backend.Health,
	}
	if a.records != nil {
		checks["records"] = a.records.Ping
	}

	matcher := a.matching()
	opts := matcher.Options()
	log.Infof("serve: threshold=%.2f margin=%.2f top_k=%d calibration=%s",
		opts.Threshold, opts.AmbiguityMargin, opts.TopK, opts.Calibration.Version)

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(web.Services{
		Faces:      a.enrollment(),
		Identifier: matcher,
		Stats:      handlers.NewStatsHandler(a.audit, a.faces),
		Images:     a.store,
		Checks:     checks,
		CORS: middleware.CORSOptions{
			AllowedOrigins: a.cfg.Web.AllowedOrigins,
			AllowLocalhost: a.cfg.Web.AllowLocalhost,
		},
	}, host, port)

	go func() {
		<-ctx.Done()
		fmt.Println("\nShutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting TraceIQ API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
