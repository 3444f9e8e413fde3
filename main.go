package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hbomb79/Grabber/internal"
	"github.com/hbomb79/Grabber/pkg/logger"
	"github.com/ilyakaznacheev/cleanenv"
)

var log = logger.Get("Bootstrap")

type cliArgs struct {
	configPath string
	help       bool
}

func parseArgs() cliArgs {
	args := cliArgs{}
	flag.StringVar(&args.configPath, "config", "", "Path to a YAML configuration file. Environment variables always take precedence")
	flag.BoolVar(&args.help, "help", false, "Display this help message, including the configuration environment variables")
	flag.Parse()

	return args
}

func loadConfig(args cliArgs) (internal.GrabberConfig, error) {
	config := internal.GrabberConfig{}
	if args.configPath != "" {
		return config, config.LoadFromFile(args.configPath)
	}

	return config, config.LoadFromEnv()
}

// main is the entry point to Grabber. Configuration is loaded from
// the file provided (if any) and the environment, and the server
// is then run until it crashes or receives an interrupt.
func main() {
	args := parseArgs()
	if args.help {
		flag.Usage()
		if help, err := cleanenv.GetDescription(&internal.GrabberConfig{}, nil); err == nil {
			fmt.Fprintln(flag.CommandLine.Output(), "\n"+help)
		}
		return
	}

	config, err := loadConfig(args)
	if err != nil {
		log.Emit(logger.FATAL, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.SetMinLoggingLevel(logger.ParseLevel(config.LogLevel).Level())

	grabber, err := internal.New(config)
	if err != nil {
		log.Emit(logger.FATAL, "Failed to initialise Grabber: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := grabber.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Emit(logger.FATAL, "Grabber stopped unexpectedly: %v\n", err)
		os.Exit(1)
	}

	log.Emit(logger.STOP, "Grabber shutdown complete\n")
}
