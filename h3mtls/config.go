package h3mtls

import "time"

// DefaultAddr is the address the server binds when none is configured.
const DefaultAddr = "localhost:8443"

// Config contains HTTP-level options of a Server.
type Config struct {
	// SNIHostCheck rejects requests whose host does not match the server
	// certificate with 400 Bad Request.
	SNIHostCheck bool

	// SendServerVersion adds a Server header carrying ServerVersion.
	// Disabled by default to avoid leaking version information.
	SendServerVersion bool

	// ServerVersion is reported when SendServerVersion is set.
	// If empty, Version is used.
	ServerVersion string

	// ShutdownTimeout bounds Shutdown when the caller's context has no deadline.
	// If zero, a default timeout of 5 seconds is used.
	ShutdownTimeout time.Duration
}

// serverHeader returns the Server header value, or "" if it must not be sent.
func (c *Config) serverHeader() string {
	if c == nil || !c.SendServerVersion {
		return ""
	}
	if c.ServerVersion != "" {
		return serverName + "/" + c.ServerVersion
	}
	return serverName + "/" + Version
}

func (c *Config) sniHostCheck() bool {
	return c != nil && c.SNIHostCheck
}

func (c *Config) shutdownTimeout() time.Duration {
	if c != nil && c.ShutdownTimeout > 0 {
		return c.ShutdownTimeout
	}
	return 5 * time.Second
}

// Clone creates a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	return &Config{
		SNIHostCheck:      c.SNIHostCheck,
		SendServerVersion: c.SendServerVersion,
		ServerVersion:     c.ServerVersion,
		ShutdownTimeout:   c.ShutdownTimeout,
	}
}
