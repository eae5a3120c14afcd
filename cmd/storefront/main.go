// storefront is a terminal client for the ticket storefront cart. Each
// invocation signs in with the access token, loads and reconciles the
// cart, runs one command and waits for any pending hold before exiting.
// The hold expiry marker is kept between invocations so an expiry that
// happens while no client is running is detected on the next start.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/ticket-storefront/internal/auth"
	"github.com/example/ticket-storefront/internal/config"
	"github.com/example/ticket-storefront/internal/domain/cart"
	"github.com/example/ticket-storefront/internal/gateway"
	"github.com/example/ticket-storefront/internal/infrastructure/kafka"
	"github.com/example/ticket-storefront/internal/session"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		var checkoutErr *session.CheckoutError
		if errors.As(err, &checkoutErr) {
			fmt.Fprintln(os.Stderr, checkoutErr.Message)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var payment session.Payment
	var points int
	var jsonOutput bool

	flagSet := pflag.NewFlagSet("storefront", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.API.BaseURL, "api-url", cfg.API.BaseURL, "storefront API base URL")
	flagSet.StringVar(&cfg.API.AccessToken, "token", cfg.API.AccessToken, "access token of the signed-in user")
	flagSet.StringVar(&cfg.Marker.Backend, "marker-backend", cfg.Marker.Backend, "hold marker backend: file, memory, postgres or dynamodb")
	flagSet.StringVar(&cfg.Marker.File, "marker-file", cfg.Marker.File, "marker file for the file backend")
	flagSet.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level")
	flagSet.StringVar(&payment.CardToken, "card", "", "card token for checkout")
	flagSet.StringVar(&payment.WalletRef, "wallet", "", "wallet reference for checkout")
	flagSet.StringVar(&payment.PaymentMethod, "method", "card", "payment method reported at checkout")
	flagSet.IntVar(&points, "points", 0, "loyalty points to redeem at checkout")
	flagSet.BoolVar(&jsonOutput, "json", false, "print the cart as JSON")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help || flagSet.NArg() == 0 {
		printHelp(flagSet)
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := config.NewLogger(cfg.Log, os.Stderr)
	log := logger.WithField("component", "storefront")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	user, err := auth.NewTokenParser(cfg.API.JWTSecret).ParseUser(cfg.API.AccessToken)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}

	markers, closeMarkers, err := openMarkerStore(ctx, cfg.Marker, logger)
	if err != nil {
		return err
	}
	defer closeMarkers()

	deps := session.Dependencies{
		Gateway: gateway.NewHTTPClient(cfg.API.BaseURL, user.Token, cfg.API.Timeout, logger),
		Markers: markers,
		Logger:  logger,
	}
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		deps.Publisher = producer
		log.WithField("topic", cfg.Kafka.Topic).Debug("publishing lifecycle events")
	}

	sess := session.New(deps, session.Options{
		DefaultTTL:    cfg.Hold.DefaultTTL,
		Debounce:      cfg.Hold.Debounce,
		FallbackRules: cart.NewRules(cfg.Rules.MaxTicketsPerEvent, cfg.Rules.PointsToSolesRatio),
	})
	if err := sess.Init(ctx, user); err != nil {
		return err
	}
	defer sess.Teardown()

	cmd := &command{
		session: sess,
		out:     os.Stdout,
		json:    jsonOutput,
		payment: payment,
		logger:  log,
	}
	if flagSet.Changed("points") {
		cmd.points = &points
	}
	if err := cmd.dispatch(ctx, flagSet.Args()); err != nil {
		return err
	}

	if err := sess.Settle(ctx); err != nil {
		log.WithError(err).Warn("hold not confirmed")
	}
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `storefront manages the ticket cart of the signed-in user.

Usage:
  storefront [flags] show
  storefront [flags] add <event-id> <zone-id> <quantity>
  storefront [flags] update <item-id> <quantity>
  storefront [flags] remove <item-id>
  storefront [flags] clear
  storefront [flags] points <points>    preview totals with points redeemed
  storefront [flags] checkout --card <token> | --wallet <ref> [--points <n>]
  storefront [flags] watch

Flags:
%s`, flagSet.FlagUsages())
}
