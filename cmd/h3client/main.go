package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/OkutaniDaichi0106/h3mtls/scenario"
	"github.com/alecthomas/kong"
)

var (
	version = "dev"
	cli     struct {
		Get       GetCmd       `cmd:"" help:"Request a URL over HTTP/3 and print the body."`
		Scenarios ScenariosCmd `cmd:"" help:"Run the reference trust scenarios against a server."`
		Debug     bool         `help:"Enable debug logging."`
		Version   kong.VersionFlag
	}
)

type Globals struct {
	Debug   bool
	Version string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Description("HTTP/3 client with mutual TLS."),
		kong.Vars{
			"version":     version,
			"default_url": scenario.DefaultURL,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
