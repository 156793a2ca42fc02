package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OkutaniDaichi0106/h3mtls/h3mtls"
	"github.com/OkutaniDaichi0106/h3mtls/internal/config"
	"github.com/OkutaniDaichi0106/h3mtls/internal/metrics"
	"github.com/OkutaniDaichi0106/h3mtls/sample"
	"github.com/alecthomas/kong"
	"golang.org/x/sync/errgroup"
)

var (
	version = "dev"
	cli     struct {
		Config string `help:"Path to a YAML configuration file." type:"path" env:"H3MTLS_CONFIG"`

		Addr               string `help:"Override the listen address." env:"H3MTLS_ADDR"`
		KeyStorePassword   string `help:"Override the key store password." env:"H3MTLS_KEY_STORE_PASSWORD"`
		TrustStorePassword string `help:"Override the trust store password." env:"H3MTLS_TRUST_STORE_PASSWORD"`
		MetricsAddr        string `help:"Serve Prometheus metrics on this address." env:"H3MTLS_METRICS_ADDR"`
		Debug              bool   `help:"Enable debug logging."`

		Version kong.VersionFlag
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Description("HTTP/3 server with mutual TLS."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	err := run(ctx)
	cmd.FatalIfErrorf(err)
}

func run(ctx context.Context) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}

	if cli.Addr != "" {
		cfg.Addr = cli.Addr
	}
	if cli.KeyStorePassword != "" {
		cfg.KeyStore.Password = cli.KeyStorePassword
	}
	if cli.TrustStorePassword != "" {
		cfg.TrustStore.Password = cli.TrustStorePassword
	}
	if cli.MetricsAddr != "" {
		cfg.MetricsAddr = cli.MetricsAddr
	}
	if cli.Debug {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.Logging.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	m, err := metrics.New("h3mtls")
	if err != nil {
		return err
	}

	opts := cfg.ServerOptions(m.Middleware(sample.NewHandler()), logger)
	opts.ServerVersion = version
	opts.OnAdmission = func(side h3mtls.Side, subject string, err error) {
		m.ObserveAdmission(side, subject, err)
		if err != nil {
			logger.Warn("rejected client", "subject", subject, "error", err)
		}
	}

	server, err := h3mtls.NewServer(opts)
	if err != nil {
		return err
	}

	ln, err := server.Listen()
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := server.ServeQUICListener(ln)
		if errors.Is(err, h3mtls.ErrServerClosed) {
			return nil
		}
		return err
	})

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           m.Handler(),
			ReadHeaderTimeout: time.Second,
		}

		g.Go(func() error {
			logger.Info("serving metrics", "address", cfg.MetricsAddr)
			err := metricsServer.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx := context.Background()
		if cfg.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(shutdownCtx, cfg.ShutdownTimeout)
			defer cancel()
		}

		if metricsServer != nil {
			metricsServer.Shutdown(shutdownCtx)
		}
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
