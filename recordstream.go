package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maxpert/recordstream/admin"
	"github.com/maxpert/recordstream/cfg"
	"github.com/maxpert/recordstream/memory"
	"github.com/maxpert/recordstream/model"
	"github.com/maxpert/recordstream/notify"
	"github.com/maxpert/recordstream/publisher"
	_ "github.com/maxpert/recordstream/publisher/sink"
	_ "github.com/maxpert/recordstream/publisher/transformer"
	"github.com/maxpert/recordstream/serializer"
	"github.com/maxpert/recordstream/stream"
	"github.com/maxpert/recordstream/telemetry"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	flag.Parse()

	// Load configuration
	err := cfg.Load(*cfg.ConfigPathFlag)
	if err != nil {
		panic(err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid configuration: %v", err))
	}

	// Setup logging
	var writer io.Writer = zerolog.NewConsoleWriter()
	if cfg.Config.Logging.Format == "json" {
		writer = os.Stdout
	}
	gLog := zerolog.New(writer).
		With().
		Timestamp().
		Uint64("instance_id", cfg.Config.InstanceID).
		Logger()

	if cfg.Config.Logging.Verbose {
		log.Logger = gLog.Level(zerolog.DebugLevel)
	} else {
		log.Logger = gLog.Level(zerolog.InfoLevel)
	}

	log.Info().Msg("RecordStream - in-memory record streams with a handling protocol")
	log.Debug().Msg("Initializing telemetry")
	telemetry.InitializeTelemetry()
	telemetry.InitMetrics()

	// Object serialization
	objects := serializer.NewFactory(serializer.NewDescriber(cfg.Config.Serialization.TypeCacheSize))
	defaultRep := model.SerializerRepresentation{
		Kind:        model.SerializationKind(cfg.Config.Serialization.Kind),
		Compression: model.CompressionKind(cfg.Config.Serialization.Compression),
	}
	if _, err := objects.BuildSerializer(defaultRep); err != nil {
		log.Fatal().Err(err).Msg("Unsupported serialization settings")
		return
	}
	log.Debug().
		Str("kind", cfg.Config.Serialization.Kind).
		Str("compression", cfg.Config.Serialization.Compression).
		Msg("Object serializer ready")

	// Change feed
	var feed *publisher.Registry
	if cfg.Config.Feed.Enabled {
		log.Info().Int("sinks", len(cfg.Config.Feed.Sinks)).Msg("Initializing change feed")
		feed, err = publisher.NewRegistry(publisher.RegistryConfig{
			DataDir:         cfg.Config.DataDir,
			InstanceID:      cfg.Config.InstanceID,
			Retention:       time.Duration(cfg.Config.Feed.RetentionHours) * time.Hour,
			CleanupInterval: time.Duration(cfg.Config.Feed.CleanupIntervalSeconds) * time.Second,
			SinkConfigs:     cfg.Config.Feed.Sinks,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize change feed")
			return
		}
		if err := feed.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start change feed")
			return
		}
		defer feed.Stop()
	}

	// Streams
	hub := notify.NewHub()
	registry, err := initializeStreams(hub, feed)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize streams")
		return
	}

	if cfg.Config.Prometheus.Enabled {
		collector := telemetry.NewMetricsCollector(
			registry,
			time.Duration(cfg.Config.Prometheus.CollectIntervalSeconds)*time.Second,
		)
		collector.Start()
		defer collector.Stop()
	}

	// Admin server
	if cfg.Config.Admin.Enabled {
		handlers := admin.NewAdminHandlers(registry, feed, objects)
		server := admin.NewServer(cfg.Config.Admin.BindAddress, cfg.Config.Admin.Port, handlers)
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start admin server")
			return
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Stop(ctx); err != nil {
				log.Warn().Err(err).Msg("Admin server shutdown incomplete")
			}
		}()
	}

	log.Info().
		Uint64("instance_id", cfg.Config.InstanceID).
		Strs("streams", registry.Names()).
		Int("locators", cfg.Config.Stream.Locators).
		Bool("feed", feed != nil).
		Msg("RecordStream started successfully")

	// Keep running until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("Shutting down")
}

// initializeStreams creates and registers one memory stream per configured
// name. Stream changes reach the notify hub, the log and, when enabled,
// the feed.
func initializeStreams(hub *notify.Hub, feed *publisher.Registry) (*stream.Registry, error) {
	registry := stream.NewRegistry()

	for _, name := range cfg.Config.Stream.Names {
		opts, err := memory.OptionsFromConfig(cfg.Config.Stream)
		if err != nil {
			return nil, fmt.Errorf("stream %s: %w", name, err)
		}
		opts.Hub = hub
		observers := stream.Observers{stream.NewLogObserver(log.Logger)}
		if feed != nil {
			observers = append(observers, feed)
		}
		opts.Observer = observers

		s, err := memory.New(name, opts)
		if err != nil {
			return nil, fmt.Errorf("stream %s: %w", name, err)
		}

		if _, err := s.CreateStream(context.Background(), model.CreateStreamRequest{OnExisting: model.ExistingStreamSkip}); err != nil {
			return nil, fmt.Errorf("stream %s: %w", name, err)
		}
		if err := registry.Register(s); err != nil {
			return nil, err
		}

		log.Info().
			Str("stream", name).
			Int("locators", cfg.Config.Stream.Locators).
			Str("eligibility", cfg.Config.Stream.EligibilityPolicy).
			Str("composite", cfg.Config.Stream.CompositePolicy).
			Msg("Stream ready")
	}

	return registry, nil
}
