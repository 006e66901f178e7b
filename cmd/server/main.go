package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/dasmlab/gemmagate/pkg/app"
	"github.com/dasmlab/gemmagate/pkg/config"
	"github.com/dasmlab/gemmagate/pkg/server"
	"github.com/dasmlab/gemmagate/pkg/service"
)

var (
	cfgFile string
	v       = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "gemmagate",
	Short: "Translation gateway for TranslateGemma and machine translation backends",
	Long: `gemmagate serves a translation API over HTTP and gRPC.

The translation engine is built lazily on the first request and shared by
all later requests. Supported engines: libretranslate, argos, openai, gemini,
google, lambda, local, pool.`,
	Version:      server.Version,
	SilenceUsage: true,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	RunE: run,
}

func init() {
	config.SetDefaults(v)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./translategemma.yaml)")

	rootCmd.Flags().String("host", "0.0.0.0", "HTTP listen host")
	rootCmd.Flags().Int("port", 8080, "HTTP listen port")
	rootCmd.Flags().Int("grpc-port", 50051, "gRPC listen port (0 disables gRPC)")
	rootCmd.Flags().StringSlice("languages", []string{"en", "fr"}, "Configured language pair")
	rootCmd.Flags().String("backend-type", "auto", "Default translation engine")
	rootCmd.Flags().String("backend-url", "", "Base URL for HTTP based engines")
	rootCmd.Flags().String("model", "", "Model name for LLM engines")
	rootCmd.Flags().String("static-dir", "static", "Directory with the web UI")
	rootCmd.Flags().String("history", "", "SQLite file for translation history (empty disables)")
	rootCmd.Flags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.Flags().String("log-format", "text", "Log format: text or json")
	rootCmd.Flags().Bool("warmup", false, "Build the translation engine at startup")

	v.BindPFlag("host", rootCmd.Flags().Lookup("host"))
	v.BindPFlag("port", rootCmd.Flags().Lookup("port"))
	v.BindPFlag("grpc_port", rootCmd.Flags().Lookup("grpc-port"))
	v.BindPFlag("languages", rootCmd.Flags().Lookup("languages"))
	v.BindPFlag("backend_type", rootCmd.Flags().Lookup("backend-type"))
	v.BindPFlag("backend.url", rootCmd.Flags().Lookup("backend-url"))
	v.BindPFlag("backend.model", rootCmd.Flags().Lookup("model"))
	v.BindPFlag("static_dir", rootCmd.Flags().Lookup("static-dir"))
	v.BindPFlag("history.path", rootCmd.Flags().Lookup("history"))
	v.BindPFlag("log_level", rootCmd.Flags().Lookup("log-level"))
	v.BindPFlag("log_format", rootCmd.Flags().Lookup("log-format"))
	v.BindPFlag("warmup", rootCmd.Flags().Lookup("warmup"))
}

func initConfig() error {
	config.Configure(v, cfgFile)
	if err := config.ReadConfigFile(v); err != nil {
		return err
	}
	if used := v.ConfigFileUsed(); used != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", used)
	}
	return nil
}

func run(cmd *cobra.Command, args []string) error {
	logger := app.NewLogger(v.GetString("log_level"), v.GetString("log_format"))

	a, err := app.New(v, logger)
	if err != nil {
		return err
	}
	a.Config.Watch()

	cfg := a.Config.Config()
	logger.WithFields(logrus.Fields{
		"host":         a.Settings.Host,
		"port":         a.Settings.Port,
		"grpc_port":    a.Settings.GRPCPort,
		"languages":    cfg.Languages,
		"backend_type": cfg.BackendType,
		"log_level":    logger.GetLevel().String(),
	}).Info("Starting gemmagate")

	if v.GetBool("warmup") {
		warmup(a, logger)
	}

	httpServer := server.NewHTTPServer(a.Resolver, server.Options{
		Addr:             net.JoinHostPort(a.Settings.Host, strconv.Itoa(a.Settings.Port)),
		StaticDir:        a.Settings.StaticDir,
		TranslateTimeout: a.Settings.TranslateTimeout,
		History:          historyReader(a),
		Logger:           logger,
	})

	errChan := make(chan error, 2)
	go func() {
		if err := httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	var (
		grpcServer   *grpc.Server
		healthServer *health.Server
	)
	if a.Settings.GRPCPort > 0 {
		grpcServer, healthServer = newGRPCServer(a, logger)
		lis, err := net.Listen("tcp", net.JoinHostPort(a.Settings.Host, strconv.Itoa(a.Settings.GRPCPort)))
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		go func() {
			logger.WithFields(logrus.Fields{
				"port": a.Settings.GRPCPort,
			}).Info("gRPC server listening")
			if err := grpcServer.Serve(lis); err != nil {
				errChan <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case runErr = <-errChan:
		logger.WithError(runErr).Error("Server error")
	case sig := <-sigChan:
		logger.WithFields(logrus.Fields{
			"signal": sig.String(),
		}).Info("Received signal, shutting down gracefully...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if healthServer != nil {
		healthServer.Shutdown()
	}
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("HTTP server shutdown incomplete")
	}
	if grpcServer != nil {
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			logger.Warn("Graceful shutdown timeout, forcing stop...")
			grpcServer.Stop()
		}
	}

	if err := a.Close(); err != nil {
		logger.WithError(err).Warn("Failed to release resources")
	}
	logger.Info("Server stopped")
	return runErr
}

func newGRPCServer(a *app.App, logger *logrus.Logger) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             15 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     5 * time.Minute,
			MaxConnectionAge:      30 * time.Minute,
			MaxConnectionAgeGrace: 5 * time.Second,
			Time:                  30 * time.Second,
			Timeout:               10 * time.Second,
		}),
	)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(service.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	service.RegisterTranslationServiceServer(s, service.NewTranslationService(a.Resolver, logger))

	// Enable reflection for grpcurl/debugging
	reflection.Register(s)
	return s, healthServer
}

// warmup builds the engine before serving so the first request does not pay
// for construction. Failure is logged; requests retry construction.
func warmup(a *app.App, logger *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	engine, built, err := a.Engines.Acquire(ctx, service.Auto())
	if err != nil {
		logger.WithError(err).Warn("Engine warmup failed, continuing anyway")
		return
	}
	if err := engine.CheckHealth(ctx); err != nil {
		logger.WithError(err).WithField("engine", built).Warn("Translator health check failed, but continuing anyway")
		return
	}
	logger.WithField("engine", built).Info("Translator health check passed")
}

func historyReader(a *app.App) server.HistoryReader {
	if a.History == nil {
		return nil
	}
	return a.History
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
