package main

import (
	"fmt"
	"log/slog"

	"github.com/OkutaniDaichi0106/h3mtls/internal/pki"
	"github.com/alecthomas/kong"
)

var (
	version = "dev"
	cli     struct {
		Dir      string `arg:"" optional:"" help:"Directory to write the stores to." type:"path" default:"certs"`
		Password string `help:"Password protecting the stores." default:"password" env:"H3MTLS_STORE_PASSWORD"`
		Version  kong.VersionFlag
	}
)

func main() {
	cmd := kong.Parse(&cli,
		kong.Description("Generate a CA, server, client and untrusted stores for local testing."),
		kong.Vars{
			"version": version,
		})

	layout, err := pki.Generate(cli.Dir, cli.Password)
	cmd.FatalIfErrorf(err)

	slog.Info("generated certificates", "dir", layout.Dir)
	for _, path := range []string{layout.TrustStore, layout.ServerKeyStore, layout.ClientKeyStore, layout.UntrustedKeyStore, layout.CAPEM} {
		fmt.Println(path)
	}
}
