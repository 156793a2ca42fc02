// Package h3mtls serves and requests HTTP/3 over QUIC with mutual TLS.
//
// The package owns one decision: whether a TLS handshake may complete. That
// decision is a Policy evaluated by Policy.Admit from the VerifyConnection hook
// of both the server and the client TLS configuration. The transport itself is
// delegated to quic-go.
//
// # Basic Usage
//
// To create a server:
//
//	server, err := h3mtls.NewServer(h3mtls.ServerOptions{
//	    Addr:       "localhost:8443",
//	    KeyStore:   h3mtls.StoreConfig{Path: "localhost/localhost.p12", Password: "password"},
//	    TrustStore: h3mtls.StoreConfig{Path: "trustStore.p12", Password: "password"},
//	    Policy:     h3mtls.Policy{VerifyPeer: true},
//	    Handler:    handler,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := server.ListenAndServe(); err != nil && !errors.Is(err, h3mtls.ErrServerClosed) {
//	    log.Fatal(err)
//	}
//
// To create a client:
//
//	client, err := h3mtls.NewClient(h3mtls.ClientOptions{
//	    KeyStore:   h3mtls.StoreConfig{Path: "client/client.p12", Password: "password"},
//	    TrustStore: h3mtls.StoreConfig{Path: "trustStore.p12", Password: "password"},
//	    Policy:     h3mtls.Policy{VerifyPeer: true},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	body, err := client.Get(ctx, "https://localhost:8443/sample/hello-world")
//
// # Errors
//
// Failures fall into three kinds: *ConfigurationError before any network
// activity, *UntrustedPeerError when a handshake is refused, and
// *TransportError for everything else. Classify maps raw errors onto them.
package h3mtls
