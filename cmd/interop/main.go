package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/OkutaniDaichi0106/h3mtls/h3mtls"
	"github.com/OkutaniDaichi0106/h3mtls/internal/pki"
	"github.com/OkutaniDaichi0106/h3mtls/quic"
	"github.com/OkutaniDaichi0106/h3mtls/sample"
	"github.com/OkutaniDaichi0106/h3mtls/scenario"
)

const certsDir = "certs"

func main() {
	slog.Info("Starting h3mtls interop test")

	// Check and generate certificates if needed
	layout, err := ensureCerts(certsDir)
	if err != nil {
		slog.Error("Failed to setup certificates: " + err.Error())
		os.Exit(1)
	}

	server, err := h3mtls.NewServer(h3mtls.ServerOptions{
		Addr:       "localhost:0",
		KeyStore:   h3mtls.StoreConfig{Path: layout.ServerKeyStore, Password: layout.Password},
		TrustStore: h3mtls.StoreConfig{Path: layout.TrustStore, Password: layout.Password},
		Policy:     h3mtls.Policy{VerifyPeer: true},
		QUICConfig: quic.DefaultConfig(),
		Handler:    sample.NewHandler(),
		Logger:     slog.Default(),
	})
	if err != nil {
		slog.Error("Failed to configure server: " + err.Error())
		os.Exit(1)
	}

	ln, err := server.Listen()
	if err != nil {
		slog.Error("Failed to start server: " + err.Error())
		os.Exit(1)
	}

	done := make(chan error, 1)
	go func() {
		done <- server.ServeQUICListener(ln)
	}()

	port := ln.Addr().(*net.UDPAddr).Port
	runner := &scenario.Runner{
		URL:     fmt.Sprintf("https://localhost:%d%s", port, sample.HelloWorldPath),
		Timeout: 10 * time.Second,
		Logger:  slog.Default(),
	}

	slog.Info("Running scenarios...")
	var failed []error
	for _, outcome := range runner.RunAll(context.Background(), scenario.Defaults(layout.Dir, layout.Password)) {
		if err := outcome.Check(); err != nil {
			slog.Error("Scenario failed", "scenario", outcome.Scenario.Name, "error", err)
			failed = append(failed, err)
			continue
		}
		slog.Info("Scenario passed", "scenario", outcome.Scenario.Name, "expected", outcome.Scenario.Expect.String())
	}

	// Stop server and wait for it to exit
	slog.Info("Stopping server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Warn("Server shutdown failed: " + err.Error())
	}
	if err := <-done; err != nil && !errors.Is(err, h3mtls.ErrServerClosed) {
		slog.Warn("Server exited with error: " + err.Error())
	} else {
		slog.Info("Server stopped successfully")
	}

	if len(failed) > 0 {
		slog.Error("Interop test failed")
		os.Exit(1)
	}

	slog.Info("Interop test completed successfully")
}

func ensureCerts(dir string) (pki.Layout, error) {
	layout := pki.NewLayout(dir, pki.DefaultPassword)

	// Check if the stores exist
	for _, path := range []string{layout.TrustStore, layout.ServerKeyStore, layout.ClientKeyStore, layout.UntrustedKeyStore} {
		if _, err := os.Stat(path); err != nil {
			slog.Info("Certificates not found, generating...", "dir", filepath.Clean(dir))
			return pki.Generate(dir, pki.DefaultPassword)
		}
	}

	return layout, nil
}
