package h3mtls

// Version is the version reported in the Server header when
// Config.SendServerVersion is enabled and no other version is configured.
const Version = "0.1.0"

// serverName is the product token of the Server header.
const serverName = "h3mtls"
