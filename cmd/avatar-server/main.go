// Command avatar-server serves live avatar conversations over WebSocket.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vango-go/avatar-live/internal/dotenv"
	"github.com/vango-go/avatar-live/pkg/character"
	"github.com/vango-go/avatar-live/pkg/core/audio"
	"github.com/vango-go/avatar-live/pkg/engines"
	"github.com/vango-go/avatar-live/pkg/gateway/config"
	"github.com/vango-go/avatar-live/pkg/gateway/metrics"
	gatewayserver "github.com/vango-go/avatar-live/pkg/gateway/server"
)

type serverDeps struct {
	loadConfig     func() (config.Config, error)
	loadCharacters func(dir, modelDictPath string, logger *slog.Logger) (*character.Registry, error)
	buildEngines   func(ctx context.Context, cfg config.Config, chars *character.Registry, httpClient *http.Client, logger *slog.Logger) *engines.Registry
	newGateway     func(config.Config, *slog.Logger, gatewayserver.Dependencies) *gatewayserver.Server
	signalNotify   func(chan<- os.Signal, ...os.Signal)
	signalStop     func(chan<- os.Signal)
}

func defaultServerDeps() serverDeps {
	return serverDeps{
		loadConfig:     config.LoadFromEnv,
		loadCharacters: character.Load,
		buildEngines:   engines.Build,
		newGateway:     gatewayserver.New,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// newProcessor returns nil when every stage is off.
func newProcessor(cfg config.Config) audio.Processor {
	if !cfg.AudioProcessing {
		return nil
	}
	p := audio.NewPipeline(audio.PipelineConfig{
		NoiseGate: cfg.NoiseReduction,
		Normalize: cfg.LoudnessNormalization,
	})
	if !p.Enabled() {
		return nil
	}
	return p
}

func runServer(ctx context.Context, stderr io.Writer, deps serverDeps) error {
	if deps.loadConfig == nil || deps.loadCharacters == nil || deps.buildEngines == nil {
		return errors.New("missing startup dependency")
	}
	if deps.newGateway == nil {
		return errors.New("missing newGateway dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg, stderr)
	slog.SetDefault(logger)

	chars, err := deps.loadCharacters(cfg.CharactersDir, cfg.ModelDictPath, logger)
	if err != nil {
		return fmt.Errorf("load characters: %w", err)
	}
	logger.Info("characters loaded", "count", chars.Len(), "dir", cfg.CharactersDir)

	eng := deps.buildEngines(ctx, cfg, chars, newHTTPClient(), logger)
	if missing := eng.Ready(chars); len(missing) > 0 {
		logger.Warn("some engines are not loaded", "missing", missing)
	}

	gw := deps.newGateway(cfg, logger, gatewayserver.Dependencies{
		Characters: chars,
		Engines:    eng,
		Processor:  newProcessor(cfg),
		Metrics:    metrics.New("avatar"),
	})
	httpSrv := buildHTTPServer(cfg, gw.Handler())

	logger.Info("starting avatar server", "addr", cfg.Addr, "llm", cfg.LLMEngine, "asr", cfg.ASREngine)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	gw.SetDraining()
	warned := gw.WarnLiveSessionsDraining()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	// Hijacked WebSocket connections are not covered by Shutdown.
	cancelled := gw.CancelLiveSessions()
	if !gw.WaitLiveSessions(shutdownCtx) {
		logger.Warn("live sessions did not finish before the grace period", "remaining", gw.LiveSessions())
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("avatar server stopped", "warned", warned, "cancelled", cancelled)
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps serverDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}

	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(stderr, "avatar-server: %v\n", err)
		return 1
	}

	if err := runServer(ctx, stderr, deps); err != nil {
		fmt.Fprintf(stderr, "avatar-server: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultServerDeps()))
}
