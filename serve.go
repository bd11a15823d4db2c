package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tutortoise/voice-screening-service/analysis"
	"github.com/Tutortoise/voice-screening-service/classifier"
	"github.com/Tutortoise/voice-screening-service/features"
	"github.com/Tutortoise/voice-screening-service/spectrogram"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	Long:  `Load the model once and serve /upload, /predict and /spectrogram.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.String("addr", "127.0.0.1:5000", "listen address")
	flags.String("cors-origin", "http://localhost:8080", "origin allowed to call the API from a browser")
	flags.Int64("max-concurrent", 0, "analyses allowed to run at once (default: number of CPUs)")

	mustBindPFlag("server.addr", flags.Lookup("addr"))
	mustBindPFlag("server.cors_origin", flags.Lookup("cors-origin"))
	mustBindPFlag("server.max_concurrent", flags.Lookup("max-concurrent"))
}

// loadService initializes ONNX Runtime, loads the model and scaler and wraps
// them in an analysis.Service. The returned cleanup releases the runtime.
func loadService(logger *zap.Logger, extractor *features.Extractor) (*analysis.Service, *classifier.SessionPool, func(), error) {
	if err := classifier.InitRuntime(viper.GetString("onnxruntime.library_path"), logger); err != nil {
		return nil, nil, nil, &classifier.ModelUnavailableError{Cause: err}
	}

	pool, err := classifier.Load(viper.GetString("model.path"), classifier.Options{
		PoolSize:       viper.GetInt("model.pool_size"),
		AcquireTimeout: viper.GetDuration("model.acquire_timeout"),
		Threads:        viper.GetInt("model.threads"),
		Logger:         logger,
	})
	if err != nil {
		_ = classifier.ShutdownRuntime()
		return nil, nil, nil, err
	}
	cleanup := func() {
		pool.Destroy()
		if err := classifier.ShutdownRuntime(); err != nil {
			logger.Warn("Failed to shut down ONNX Runtime", zap.Error(err))
		}
	}

	var scaler *classifier.Scaler
	if path := viper.GetString("model.scaler_path"); path != "" {
		scaler, err = classifier.LoadScaler(path)
		if err != nil {
			cleanup()
			return nil, nil, nil, &classifier.ModelUnavailableError{Path: path, Cause: err}
		}
		logger.Info("Loaded feature scaler", zap.String("path", path))
	} else {
		logger.Warn("No feature scaler configured, the model receives raw features")
	}

	svc := analysis.NewService(pool,
		analysis.WithExtractor(extractor),
		analysis.WithScaler(scaler),
		analysis.WithHealthyLabel(viper.GetInt64("model.healthy_label")),
		analysis.WithTargetSampleRate(viper.GetInt("audio.target_sample_rate")),
		analysis.WithMaxDuration(viper.GetDuration("audio.max_duration")),
		analysis.WithLogger(logger),
	)
	return svc, pool, cleanup, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := newLogger(viper.GetString("log.level"), viper.GetString("log.style"))
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	extractor := features.New()
	svc, pool, cleanup, err := loadService(logger, extractor)
	if err != nil {
		logger.Error("Failed to load model", zap.Error(err))
		return err
	}
	defer cleanup()
	registerPoolMetrics(pool)

	maxConcurrent := viper.GetInt64("server.max_concurrent")
	if maxConcurrent <= 0 {
		maxConcurrent = int64(pool.Stats().Size)
	}

	state := &AppState{
		Service:          svc,
		Renderer:         spectrogram.NewRenderer(extractor, viper.GetInt("spectrogram.width"), viper.GetInt("spectrogram.height")),
		Pool:             pool,
		Admission:        semaphore.NewWeighted(maxConcurrent),
		Logger:           logger,
		CORSOrigin:       viper.GetString("server.cors_origin"),
		MaxUploadBytes:   viper.GetInt64("server.max_upload_bytes"),
		MaxConcurrent:    maxConcurrent,
		AdmissionTimeout: viper.GetDuration("server.admission_timeout"),
	}

	srv := &http.Server{
		Handler:      state.routes(),
		Addr:         viper.GetString("server.addr"),
		WriteTimeout: viper.GetDuration("server.write_timeout"),
		ReadTimeout:  viper.GetDuration("server.read_timeout"),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server",
			zap.String("addr", srv.Addr),
			zap.Int64("maxConcurrent", maxConcurrent),
			zap.String("corsOrigin", state.CORSOrigin))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
