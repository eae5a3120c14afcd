// hold-audit consumes cart lifecycle events from Kafka and keeps per-cart
// hold counters. A summary of every cart is logged on shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/ticket-storefront/internal/audit"
	"github.com/example/ticket-storefront/internal/config"
	"github.com/example/ticket-storefront/internal/infrastructure/kafka"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var brokers []string
	flagSet := pflag.NewFlagSet("hold-audit", pflag.ContinueOnError)
	flagSet.StringSliceVar(&brokers, "brokers", cfg.Kafka.Brokers, "Kafka brokers")
	flagSet.StringVar(&cfg.Kafka.Topic, "topic", cfg.Kafka.Topic, "lifecycle event topic")
	flagSet.StringVar(&cfg.Kafka.ConsumerGroup, "group", cfg.Kafka.ConsumerGroup, "consumer group")
	flagSet.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	cfg.Kafka.Brokers = brokers
	if !cfg.Kafka.Enabled() {
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}

	logger := config.NewLogger(cfg.Log, os.Stderr)
	log := logger.WithField("component", "hold-audit")

	log.WithFields(logrus.Fields{
		"brokers": cfg.Kafka.Brokers,
		"topic":   cfg.Kafka.Topic,
		"group":   cfg.Kafka.ConsumerGroup,
	}).Info("starting hold audit consumer")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	handler := audit.NewHandler(logger)
	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.ConsumerGroup, logger)
	defer consumer.Close()

	done := make(chan error, 1)
	go func() {
		done <- consumer.Consume(ctx, handler.HandleEvent)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		<-done
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("consumer stopped")
		}
	}

	for _, s := range handler.Summaries() {
		log.WithFields(logrus.Fields{
			"cart_id":         s.CartID,
			"user_id":         s.UserID,
			"holds_placed":    s.HoldsPlaced,
			"synthesized_ttl": s.SynthesizedTTL,
			"holds_expired":   s.HoldsExpired,
			"checkouts":       s.Checkouts,
			"clears":          s.Clears,
		}).Info("cart summary")
	}
	return nil
}
