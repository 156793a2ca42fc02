// Package scenario drives client connection attempts with varying trust
// configurations against an HTTP/3 server and records their outcomes.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/OkutaniDaichi0106/h3mtls/h3mtls"
	"github.com/OkutaniDaichi0106/h3mtls/quic"
	"github.com/OkutaniDaichi0106/h3mtls/sample"
)

// DefaultURL is the endpoint scenarios request when the Runner has no URL.
const DefaultURL = "https://" + h3mtls.DefaultAddr + sample.HelloWorldPath

// Expectation is the outcome a scenario is expected to produce.
type Expectation int

const (
	ExpectSuccess Expectation = iota
	ExpectFailure
)

func (e Expectation) String() string {
	switch e {
	case ExpectSuccess:
		return "success"
	case ExpectFailure:
		return "failure"
	default:
		return fmt.Sprintf("expectation(%d)", int(e))
	}
}

// ErrUnexpectedOutcome is returned by Outcome.Check when an attempt did not
// end as its scenario expects.
var ErrUnexpectedOutcome = errors.New("scenario: unexpected outcome")

// Scenario is one client configuration to try.
type Scenario struct {
	Name string

	// KeyStore holds the client identity. An empty Path sends no certificate.
	KeyStore   h3mtls.StoreConfig
	TrustStore h3mtls.StoreConfig

	Policy h3mtls.Policy

	Expect Expectation

	// Payload is the body a successful attempt must return.
	// If empty, any body is accepted.
	Payload string
}

// Outcome is the result of exactly one connection attempt.
// Err is nil on success, in which case Payload holds the response body.
type Outcome struct {
	Scenario Scenario
	Payload  string
	Err      error
	Duration time.Duration
}

// Succeeded reports whether the attempt completed with a response.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Check compares the outcome with the scenario's expectation.
func (o Outcome) Check() error {
	switch o.Scenario.Expect {
	case ExpectSuccess:
		if o.Err != nil {
			return fmt.Errorf("%w: %s: expected success: %w", ErrUnexpectedOutcome, o.Scenario.Name, o.Err)
		}
		if o.Scenario.Payload != "" && o.Payload != o.Scenario.Payload {
			return fmt.Errorf("%w: %s: expected payload %q, got %q", ErrUnexpectedOutcome, o.Scenario.Name, o.Scenario.Payload, o.Payload)
		}
	case ExpectFailure:
		if o.Err == nil {
			return fmt.Errorf("%w: %s: expected failure, got payload %q", ErrUnexpectedOutcome, o.Scenario.Name, o.Payload)
		}
	}
	return nil
}

// Runner executes scenarios against one URL.
type Runner struct {
	// URL is requested by every scenario. If empty, DefaultURL is used.
	URL string

	// Timeout bounds each attempt.
	Timeout time.Duration

	// Environment is passed to the client policy check.
	Environment string

	QUICConfig *quic.Config

	Logger *slog.Logger
}

func (r *Runner) url() string {
	if r.URL == "" {
		return DefaultURL
	}
	return r.URL
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}

// Run makes one attempt with sc's configuration.
// Every failure, including invalid configuration, is reported in the Outcome.
func (r *Runner) Run(ctx context.Context, sc Scenario) (outcome Outcome) {
	logger := r.logger().With("scenario", sc.Name)
	start := time.Now()

	outcome.Scenario = sc
	defer func() {
		outcome.Duration = time.Since(start)
	}()

	client, err := h3mtls.NewClient(h3mtls.ClientOptions{
		KeyStore:    sc.KeyStore,
		TrustStore:  sc.TrustStore,
		Policy:      sc.Policy,
		Environment: r.Environment,
		Timeout:     r.Timeout,
		QUICConfig:  r.QUICConfig,
		OnAdmission: func(side h3mtls.Side, subject string, err error) {
			logger.Debug("server admission", "subject", subject, "error", err)
		},
		Logger: logger,
	})
	if err != nil {
		outcome.Err = err
		logger.Info("scenario failed", "error", err)
		return outcome
	}
	defer client.Close()

	payload, err := client.Get(ctx, r.url())
	if err != nil {
		outcome.Err = err
		logger.Info("scenario failed", "error", err)
		return outcome
	}

	outcome.Payload = payload
	logger.Info("scenario succeeded", "payload", payload)

	return outcome
}

// RunAll runs the scenarios one after another.
func (r *Runner) RunAll(ctx context.Context, scenarios []Scenario) []Outcome {
	outcomes := make([]Outcome, 0, len(scenarios))
	for _, sc := range scenarios {
		if ctx.Err() != nil {
			outcomes = append(outcomes, Outcome{Scenario: sc, Err: &h3mtls.TransportError{Err: ctx.Err()}})
			continue
		}
		outcomes = append(outcomes, r.Run(ctx, sc))
	}
	return outcomes
}

// Defaults returns the three reference scenarios for stores laid out under dir:
// trustStore.p12, client/client.p12 and not_trusted/not_trusted.p12.
func Defaults(dir, password string) []Scenario {
	trustStore := h3mtls.StoreConfig{Path: filepath.Join(dir, "trustStore.p12"), Password: password}
	clientStore := h3mtls.StoreConfig{Path: filepath.Join(dir, "client", "client.p12"), Password: password}
	untrustedStore := h3mtls.StoreConfig{Path: filepath.Join(dir, "not_trusted", "not_trusted.p12"), Password: password}

	return []Scenario{
		{
			Name:       "no-peer-verification",
			KeyStore:   clientStore,
			TrustStore: trustStore,
			Policy: h3mtls.Policy{
				VerifyPeer:             false,
				EndpointIdentification: h3mtls.EndpointIdentificationHTTPS,
			},
			Expect:  ExpectSuccess,
			Payload: sample.HelloWorld,
		},
		{
			Name:       "peer-verification-enabled",
			KeyStore:   clientStore,
			TrustStore: trustStore,
			Policy: h3mtls.Policy{
				VerifyPeer:             true,
				EndpointIdentification: h3mtls.EndpointIdentificationHTTPS,
			},
			Expect:  ExpectSuccess,
			Payload: sample.HelloWorld,
		},
		{
			// The key store is self-signed, so it doubles as its own trust store.
			Name:       "unauthorized-key-store",
			KeyStore:   untrustedStore,
			TrustStore: untrustedStore,
			Policy: h3mtls.Policy{
				VerifyPeer:             false,
				EndpointIdentification: h3mtls.EndpointIdentificationHTTPS,
			},
			Expect: ExpectFailure,
		},
	}
}
