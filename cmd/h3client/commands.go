package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/OkutaniDaichi0106/h3mtls/h3mtls"
	"github.com/OkutaniDaichi0106/h3mtls/internal/config"
	"github.com/OkutaniDaichi0106/h3mtls/quic"
	"github.com/OkutaniDaichi0106/h3mtls/scenario"
)

// StoreFlags names a key store or trust store on the command line.
type StoreFlags struct {
	Path     string `help:"Path to the store." type:"path" env:"PATH"`
	Password string `help:"Store password." default:"password" env:"PASSWORD"`
}

func (s StoreFlags) store() h3mtls.StoreConfig {
	return h3mtls.StoreConfig{Path: s.Path, Password: s.Password}
}

type GetCmd struct {
	URL string `arg:"" optional:"" help:"URL to request." default:"${default_url}"`

	KeyStore   StoreFlags `embed:"" prefix:"key-store-" envprefix:"H3MTLS_KEY_STORE_"`
	TrustStore StoreFlags `embed:"" prefix:"trust-store-" envprefix:"H3MTLS_TRUST_STORE_"`

	VerifyPeer             bool          `help:"Verify the server certificate chain." default:"true" negatable:""`
	TrustAll               bool          `help:"Accept any server certificate (testing only)."`
	EndpointIdentification string        `help:"Endpoint identification algorithm." default:"HTTPS"`
	Environment            string        `help:"Deployment environment." default:"development" env:"H3MTLS_ENVIRONMENT"`
	Timeout                time.Duration `help:"Request timeout." default:"10s"`
}

func (c *GetCmd) Run(ctx context.Context, globals *Globals) error {
	logger := newLogger(globals)

	client, err := h3mtls.NewClient(h3mtls.ClientOptions{
		KeyStore:   c.KeyStore.store(),
		TrustStore: c.TrustStore.store(),
		Policy: h3mtls.Policy{
			VerifyPeer:             c.VerifyPeer,
			TrustAll:               c.TrustAll,
			EndpointIdentification: c.EndpointIdentification,
		},
		Environment: c.Environment,
		Timeout:     c.Timeout,
		QUICConfig:  quic.DefaultConfig(),
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	body, err := client.Get(ctx, c.URL)
	if err != nil {
		return err
	}

	fmt.Println(body)
	return nil
}

type ScenariosCmd struct {
	URL      string        `help:"URL every scenario requests." default:"${default_url}"`
	Certs    string        `help:"Directory holding trustStore.p12, client/ and not_trusted/." type:"path" default:"certs"`
	Password string        `help:"Password of the stores." default:"password" env:"H3MTLS_STORE_PASSWORD"`
	Timeout  time.Duration `help:"Timeout of each attempt." default:"10s"`
}

func (c *ScenariosCmd) Run(ctx context.Context, globals *Globals) error {
	runner := &scenario.Runner{
		URL:        c.URL,
		Timeout:    c.Timeout,
		QUICConfig: quic.DefaultConfig(),
		Logger:     newLogger(globals),
	}

	var errs []error
	for _, outcome := range runner.RunAll(ctx, scenario.Defaults(c.Certs, c.Password)) {
		status := "PASS"
		err := outcome.Check()
		if err != nil {
			status = "FAIL"
			errs = append(errs, err)
		}

		result := outcome.Payload
		if outcome.Err != nil {
			result = outcome.Err.Error()
		}
		fmt.Printf("%s\t%s\texpected %s\t%s\t%s\n", status, outcome.Scenario.Name, outcome.Scenario.Expect, outcome.Duration.Round(time.Millisecond), result)
	}

	return errors.Join(errs...)
}

func newLogger(globals *Globals) *slog.Logger {
	level := "warn"
	if globals.Debug {
		level = "debug"
	}

	logger, err := config.LoggingConfig{Level: level, Format: "text"}.NewLogger(os.Stderr)
	if err != nil {
		return slog.Default()
	}
	return logger
}
