package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/danmuck/amqpwire/internal/config"
	"github.com/danmuck/amqpwire/internal/logging"
	"github.com/danmuck/amqpwire/internal/observability"
	"github.com/danmuck/amqpwire/internal/server"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "framectl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("framectl", flag.ContinueOnError)
	configPath := fs.String("config", "", "service config path (defaults when empty)")
	template := fs.String("template", "", "write a config template to this path and exit")
	force := fs.Bool("force", false, "overwrite an existing template")
	validate := fs.String("validate", "", "validate a config file and exit")
	probe := fs.String("probe", "", "send a heartbeat to a frame service at this address and exit")
	probeTimeout := fs.Duration("probe-timeout", 5*time.Second, "probe deadline")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *template != "":
		if err := config.WriteTemplate(*template, *force); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote config template to %s\n", *template)
		return nil
	case *validate != "":
		if _, err := config.Load(*validate); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "validated config at %s\n", *validate)
		return nil
	case *probe != "":
		ctx, cancel := context.WithTimeout(context.Background(), *probeTimeout)
		defer cancel()
		rtt, err := probeHeartbeat(ctx, *probe, server.DefaultServiceConfig().Session)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "heartbeat from %s in %s\n", *probe, rtt)
		return nil
	}

	cfg := server.DefaultServiceConfig()
	var logFile logging.FileConfig
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg, logFile = loaded.Service, loaded.Log
	}
	logger := observability.InitLogger("framectl", logFile)
	logger.Info().Str("node", cfg.NodeID).Str("config", *configPath).Msg("starting frame service")

	svc, err := server.NewService(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()
	return svc.Run()
}
