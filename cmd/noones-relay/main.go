package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/p2pflow/noones-relay/internal/config"
	"github.com/p2pflow/noones-relay/internal/log"
	"github.com/p2pflow/noones-relay/internal/noones"
	"github.com/p2pflow/noones-relay/internal/relay"
	"github.com/p2pflow/noones-relay/internal/signature"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "Path to an optional YAML config file (environment variables override it)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("noones-relay version %s\n", version)
		return
	}

	os.Exit(run(*configPath))
}

func run(configPath string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "noones-relay: %v\n", err)
		return 1
	}

	log.Setup(cfg.LogLevel)
	logger := log.WithComponent("relay")

	logger.Info("configuration loaded",
		"offer_hashes", cfg.OfferHashes,
		"greeting_delay_ms", cfg.GreetingDelayMS,
		"port", cfg.Port,
		"signed", cfg.Signed(),
	)

	platform := noones.New(noones.Config{
		TokenURL:     cfg.TokenURL,
		APIBaseURL:   cfg.APIBaseURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Timeout:      cfg.HTTPTimeout,
	}, log.WithComponent("noones"))

	var verifier relay.SignatureVerifier
	if cfg.Signed() {
		v, err := signature.New(cfg.PublicKey, cfg.WebhookURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "noones-relay: invalid signing configuration: %v\n", err)
			return 1
		}
		verifier = v
	}

	server := relay.New(relay.Config{
		Listen:          cfg.Listen(),
		Offers:          cfg.OfferHashes,
		GreetingMessage: cfg.GreetingMessage,
		GreetingDelay:   cfg.GreetingDelay(),
	}, platform, verifier, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("relay server exited", "error", err)
		return 1
	}

	logger.Info("shutdown complete")
	return 0
}
