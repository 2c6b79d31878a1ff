package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/idkosilov/furniture/internal/api"
	"github.com/idkosilov/furniture/internal/auth"
	"github.com/idkosilov/furniture/internal/handlers"
	"github.com/idkosilov/furniture/internal/infrastructure/kafka"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Starts the HTTP API. When Kafka brokers are configured the inbound
command topic is consumed in the same process.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Consume allocation commands from Kafka",
	Args:  cobra.NoArgs,
	RunE:  runConsume,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(consumeCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withApp(ctx, func(a *app) error {
		if err := a.cfg.ValidateAuth(); err != nil {
			return err
		}
		jwtService := auth.NewJWTService(a.cfg.Auth.JWTSecret, a.cfg.Auth.TokenExpiry.Duration)

		var wg sync.WaitGroup
		if a.cfg.Kafka.Enabled() {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := consume(ctx, a); err != nil {
					a.logger.Error("consumer stopped", zap.Error(err))
				}
			}()
		}

		router := api.NewRouter(api.RouterConfig{
			Handlers:   api.NewHandlers(a.bus, a.newUoW, a.views, a.logger),
			JWTService: jwtService,
			Logger:     a.logger,
		})
		server := &http.Server{
			Addr:              a.cfg.HTTP.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		serveErr := make(chan error, 1)
		go func() {
			a.logger.Info("server started", zap.String("addr", server.Addr))
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		var err error
		select {
		case <-ctx.Done():
		case err = <-serveErr:
		}

		a.logger.Info("shutting down")
		stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout.Duration)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			err = errors.Join(err, shutdownErr)
		}

		wg.Wait()
		return err
	})
}

func runConsume(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withApp(ctx, func(a *app) error {
		if !a.cfg.Kafka.Enabled() {
			return errors.New("KAFKA_BROKERS is not configured")
		}
		return consume(ctx, a)
	})
}

// consume blocks until ctx is cancelled. Cancellation is a clean stop.
func consume(ctx context.Context, a *app) error {
	consumer := kafka.NewConsumer(a.cfg.Kafka.Brokers, a.cfg.Kafka.InboundTopic, a.cfg.Kafka.ConsumerGroup, a.logger)
	defer consumer.Close()

	dispatcher := handlers.NewDispatcher(a.bus, a.newUoW, a.logger)
	a.logger.Info("consumer started",
		zap.Strings("brokers", a.cfg.Kafka.Brokers),
		zap.String("topic", a.cfg.Kafka.InboundTopic),
		zap.String("group", a.cfg.Kafka.ConsumerGroup),
	)

	err := consumer.Consume(ctx, dispatcher.HandleMessage)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
