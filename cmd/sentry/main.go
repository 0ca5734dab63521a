package main

import (
	"context"
	"encoding/json"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/factsentry/factsentry/internal/app/scanning"
	"github.com/factsentry/factsentry/internal/config"
	domain "github.com/factsentry/factsentry/internal/domain/scanning"
	"github.com/factsentry/factsentry/internal/infra/eventbus/kafka"
	"github.com/factsentry/factsentry/internal/infra/platform/discord"
	"github.com/factsentry/factsentry/internal/infra/status"
	"github.com/factsentry/factsentry/pkg/common"
	"github.com/factsentry/factsentry/pkg/common/logger"
	"github.com/factsentry/factsentry/pkg/common/otel"

	"github.com/bwmarrin/discordgo"
)

const serviceType = "sentry"

func main() {
	_, _ = maxprocs.Set()

	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	hostname, err := os.Hostname()
	if err != nil {
		stdlog.Fatalf("failed to get hostname: %v", err)
	}

	var log *logger.Logger

	logEvents := logger.Events{
		Error: func(ctx context.Context, r logger.Record) {
			errorAttrs := map[string]any{
				"error_message": r.Message,
				"error_time":    r.Time.UTC().Format(time.RFC3339),
				"trace_id":      otel.GetTraceID(ctx),
			}

			// Add any error-specific attributes.
			for k, v := range r.Attributes {
				errorAttrs[k] = v
			}

			errorAttrsJSON, err := json.Marshal(errorAttrs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to marshal error attributes: %v\n", err)
				return
			}

			fmt.Fprintf(os.Stderr, "Error event: %s, details: %s\n",
				r.Message, errorAttrsJSON)
		},
	}

	traceIDFn := func(ctx context.Context) string {
		return otel.GetTraceID(ctx)
	}

	svcName := fmt.Sprintf("SENTRY-%s", hostname)
	metadata := map[string]string{
		"service":  svcName,
		"hostname": hostname,
		"app":      serviceType,
	}

	log = logger.NewWithMetadata(os.Stdout, logger.LevelInfo, svcName, traceIDFn, logEvents, metadata)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigCh
		log.Info(ctx, "Received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := run(ctx, log, svcName); err != nil {
		log.Error(ctx, "scan run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger.Logger, svcName string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	tp, telemetryTeardown, err := otel.InitTelemetry(log, otel.Config{
		ServiceName:      svcName,
		ExporterEndpoint: cfg.Telemetry.ExporterAddr,
		ExcludedRoutes:   map[string]struct{}{},
		Probability:      cfg.Telemetry.SampleRate,
		ResourceAttributes: map[string]string{
			"library.language": "go",
			"service.type":     serviceType,
		},
		InsecureExporter: true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer telemetryTeardown(ctx)

	tracer := tp.Tracer(svcName)

	mp, err := otel.NewMeterProvider(svcName)
	if err != nil {
		return fmt.Errorf("failed to create meter provider: %w", err)
	}

	busMetrics, err := kafka.NewEventBusMetrics(mp)
	if err != nil {
		return fmt.Errorf("failed to create event bus metrics: %w", err)
	}

	scanMetrics, err := scanning.NewScanMetrics(mp)
	if err != nil {
		return fmt.Errorf("failed to create scan metrics: %w", err)
	}

	eventBus, err := kafka.ConnectWithRetry(&kafka.Config{
		Brokers:                 cfg.Kafka.Brokers,
		BatchTopic:              cfg.Kafka.BatchTopic,
		ProgressTopic:           cfg.Kafka.ProgressTopic,
		ResultTopic:             cfg.Kafka.ResultTopic,
		ProcessingFinishedTopic: cfg.Kafka.ProcessingFinishedTopic,
		FailedTopic:             cfg.Kafka.FailedTopic,
		GroupID:                 cfg.Kafka.GroupID,
		ClientID:                cfg.Kafka.ClientID,
		ServiceType:             serviceType,
	}, log, busMetrics, tracer)
	if err != nil {
		return fmt.Errorf("failed to connect event bus: %w", err)
	}
	defer func() {
		if err := eventBus.Close(); err != nil {
			log.Error(ctx, "Failed to close event bus", "error", err)
		}
	}()

	dg, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return fmt.Errorf("failed to create discord session: %w", err)
	}

	limiter := common.NewRateLimiter(cfg.Discord.RequestsPerSecond, cfg.Discord.Burst)
	source := discord.NewChannelSource(dg, limiter, log, tracer)
	statusClient := status.NewClient(cfg.StatusBaseURL, log)

	var waiter domain.ResultWaiter
	switch cfg.Scan.WaitStrategy {
	case "poll":
		poller := scanning.NewStatusPoller(statusClient, scanning.PollerConfig{
			InitialDelay:      cfg.Poller.InitialDelay,
			BackoffMultiplier: cfg.Poller.BackoffMultiplier,
			MaxDelay:          cfg.Poller.MaxDelay,
			PollTimeout:       cfg.Poller.PollTimeout,
		}, log, tracer)
		waiter = scanning.NewPollingWaiter(poller)
	default:
		waiter = scanning.NewEventWaiter(eventBus, statusClient, scanning.WaitConfig{
			StallWarning:   cfg.Waiter.StallWarning,
			SilenceTimeout: cfg.Waiter.SilenceTimeout,
			MaxWait:        cfg.Waiter.MaxWait,
		}, scanMetrics, log, tracer)
	}

	traverser := scanning.NewChannelTraverser(source, scanMetrics, log, tracer)
	publisher := scanning.NewBatchPublisher(eventBus, cfg.Scan.BatchSize, scanMetrics, log, tracer)
	orchestrator := scanning.NewScanOrchestrator(traverser, publisher, waiter, scanMetrics, log, tracer)

	log.Info(ctx, "Starting retrospective scan",
		"guild_id", cfg.Discord.GuildID,
		"days_requested", cfg.Scan.DaysRequested,
		"wait_strategy", cfg.Scan.WaitStrategy,
	)

	onProgress := func(evt domain.ScanEvent) {
		log.Info(ctx, "Scan progress",
			"scan_id", evt.ScanID,
			"messages_scanned", evt.MessagesScanned,
			"messages_flagged", evt.MessagesFlagged,
		)
	}

	outcome, err := orchestrator.ExecuteScan(
		ctx,
		cfg.Discord.GuildID,
		cfg.Scan.InitiatorID,
		cfg.Scan.DaysRequested,
		onProgress,
	)
	if err != nil {
		return err
	}

	report, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render outcome: %w", err)
	}
	fmt.Println(string(report))

	log.Info(ctx, "Scan finished",
		"status", outcome.Status.String(),
		"messages_scanned", outcome.MessagesScanned,
		"messages_flagged", outcome.MessagesFlagged,
	)

	return nil
}
