package h3mtls

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/OkutaniDaichi0106/h3mtls/quic"
)

// ServerOptions describes a Server in terms of stores and policy.
type ServerOptions struct {
	Addr string

	// KeyStore holds the server's Identity Material.
	KeyStore StoreConfig

	// TrustStore holds the certificates client certificates are verified against.
	// It may be empty when Policy does not verify peers.
	TrustStore StoreConfig

	Policy Policy

	// Environment names the deployment environment. Insecure policies are
	// refused in EnvironmentProduction.
	Environment string

	SendServerVersion bool
	ServerVersion     string
	ShutdownTimeout   time.Duration

	QUICConfig *quic.Config

	Handler http.Handler

	// OnAdmission, if set, is called after every client admission decision.
	OnAdmission AdmissionFunc

	Logger *slog.Logger
}

// NewServer loads the stores named by opts, checks the policy and returns a
// Server ready to listen. All failures are *ConfigurationError and happen
// before any network activity.
func NewServer(opts ServerOptions) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := checkPolicy(opts.Policy, opts.Environment, logger, ServerSide); err != nil {
		return nil, err
	}

	identity, err := LoadIdentity(opts.KeyStore)
	if err != nil {
		return nil, err
	}

	trust, err := loadOptionalTrust(opts.TrustStore)
	if err != nil {
		return nil, err
	}

	tlsConfig, err := ServerTLSConfig(identity, trust, opts.Policy, opts.OnAdmission)
	if err != nil {
		return nil, err
	}

	logger.Debug("loaded server identity", "subject", identity.Subject())

	return &Server{
		Addr:       opts.Addr,
		TLSConfig:  tlsConfig,
		QUICConfig: opts.QUICConfig,
		Handler:    opts.Handler,
		Config: &Config{
			SNIHostCheck:      opts.Policy.SNIHostCheck,
			SendServerVersion: opts.SendServerVersion,
			ServerVersion:     opts.ServerVersion,
			ShutdownTimeout:   opts.ShutdownTimeout,
		},
		Logger: logger,
	}, nil
}

// ClientOptions describes a Client in terms of stores and policy.
type ClientOptions struct {
	// KeyStore holds the client's Identity Material. An empty Path sends no
	// client certificate.
	KeyStore StoreConfig

	// TrustStore holds the certificates the server certificate is verified
	// against. It may be empty when Policy does not verify peers.
	TrustStore StoreConfig

	Policy Policy

	Environment string

	Timeout time.Duration

	QUICConfig *quic.Config

	// OnAdmission, if set, is called after every server admission decision.
	OnAdmission AdmissionFunc

	Logger *slog.Logger
}

// NewClient loads the stores named by opts, checks the policy and returns a
// Client. All failures are *ConfigurationError.
func NewClient(opts ClientOptions) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := checkPolicy(opts.Policy, opts.Environment, logger, ClientSide); err != nil {
		return nil, err
	}

	var identity *Identity
	if opts.KeyStore.Path != "" {
		var err error
		identity, err = LoadIdentity(opts.KeyStore)
		if err != nil {
			return nil, err
		}
		logger.Debug("loaded client identity", "subject", identity.Subject())
	}

	trust, err := loadOptionalTrust(opts.TrustStore)
	if err != nil {
		return nil, err
	}

	tlsConfig, err := ClientTLSConfig(identity, trust, opts.Policy, opts.OnAdmission)
	if err != nil {
		return nil, err
	}

	return &Client{
		TLSConfig:  tlsConfig,
		QUICConfig: opts.QUICConfig,
		Timeout:    opts.Timeout,
		Logger:     logger,
		VerifyHost: ClientVerifier(trust, opts.Policy, opts.OnAdmission),
	}, nil
}

func checkPolicy(policy Policy, env string, logger *slog.Logger, side Side) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	if err := policy.CheckEnvironment(env); err != nil {
		return err
	}
	if side == ServerSide {
		if err := checkServerPolicy(policy, "validate policy"); err != nil {
			return err
		}
	}

	if policy.Insecure() {
		logger.Warn("insecure verification policy, for testing only",
			"side", side.String(),
			"verify_peer", policy.VerifyPeer,
			"trust_all", policy.TrustAll,
		)
	}
	return nil
}

func loadOptionalTrust(sc StoreConfig) (*Trust, error) {
	if sc.Path == "" {
		return nil, nil
	}
	return LoadTrust(sc)
}
