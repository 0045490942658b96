package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/couriermq/courier/internal/broker"
	"github.com/couriermq/courier/internal/config"
	"github.com/couriermq/courier/internal/httpapi"
	"github.com/couriermq/courier/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "courier",
	Short: "Courier - an in-memory publish/subscribe message broker",
	Long: `Courier is a single-binary, in-memory pub/sub broker: topics hold an
append-only log of messages, subscriptions pull from that log with
at-least-once delivery, ack deadlines, and automatic redelivery.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Courier version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the Courier broker server",
	RunE:  runBroker,
}

func init() {
	runCmd.Flags().Duration("topic-ttl", 0, "Default topic TTL applied when a create request omits one (0 disables)")
	runCmd.Flags().Duration("message-ttl", 0, "Default per-message TTL applied when a create request omits one (0 disables)")
	runCmd.Flags().Duration("subscription-ttl", 0, "Default subscription TTL applied when a create request omits one (0 disables)")
	runCmd.Flags().Duration("ack-deadline", 30*time.Second, "Default ack deadline applied when a create request omits one")
	runCmd.Flags().Int("max-messages", 10, "Default max messages returned per pull when a request omits one")
	runCmd.Flags().Duration("cleanup-interval", time.Second, "Interval between reaper passes")
	runCmd.Flags().String("host", "127.0.0.1", "Address to bind the HTTP API to")
	runCmd.Flags().Int("port", 8080, "Port to bind the HTTP API to")
}

func runBroker(cmd *cobra.Command, args []string) error {
	cfg := config.Default()

	topicTTL, _ := cmd.Flags().GetDuration("topic-ttl")
	messageTTL, _ := cmd.Flags().GetDuration("message-ttl")
	subscriptionTTL, _ := cmd.Flags().GetDuration("subscription-ttl")
	ackDeadline, _ := cmd.Flags().GetDuration("ack-deadline")
	maxMessages, _ := cmd.Flags().GetInt("max-messages")
	cleanupInterval, _ := cmd.Flags().GetDuration("cleanup-interval")
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")

	cfg.DefaultTopicTTL = topicTTL
	cfg.DefaultMessageTTL = messageTTL
	cfg.DefaultSubscriptionTTL = subscriptionTTL
	cfg.DefaultAckDeadline = ackDeadline
	cfg.DefaultMaxMessages = maxMessages
	cfg.CleanupInterval = cleanupInterval
	cfg.Host = host
	cfg.Port = port

	if envHost := os.Getenv("COURIER_HOST"); envHost != "" && !cmd.Flags().Changed("host") {
		cfg.Host = envHost
	}
	if envPort := os.Getenv("COURIER_PORT"); envPort != "" && !cmd.Flags().Changed("port") {
		p, err := strconv.Atoi(envPort)
		if err != nil {
			return fmt.Errorf("invalid COURIER_PORT %q: %w", envPort, err)
		}
		cfg.Port = p
	}

	logLevel, _ := cmd.Flags().GetString("log-level")
	if logLevel != "" {
		cfg.LogLevel = log.Level(logLevel)
	}
	logJSON, _ := cmd.Flags().GetBool("log-json")
	cfg.LogJSON = logJSON

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	registry := broker.NewRegistry()
	reaper := broker.NewReaper(registry, cfg.CleanupInterval)
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := httpapi.NewServer(addr, registry, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go reaper.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	log.Logger.Info().Str("addr", addr).Msg("courier broker started")

	select {
	case <-ctx.Done():
		log.Logger.Info().Msg("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	log.Logger.Info().Msg("shutdown complete")
	return nil
}
