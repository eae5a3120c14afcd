package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/example/ticket-storefront/internal/domain/cart"
	"github.com/example/ticket-storefront/internal/domain/hold"
	"github.com/example/ticket-storefront/internal/session"
	"github.com/sirupsen/logrus"
)

const watchInterval = time.Second

type command struct {
	session *session.Session
	out     io.Writer
	json    bool
	payment session.Payment
	// points, when set, are applied right before checkout.
	points  *int
	logger  logrus.FieldLogger
}

func (c *command) dispatch(ctx context.Context, args []string) error {
	name, rest := args[0], args[1:]
	switch name {
	case "show":
		return c.show()

	case "add":
		if len(rest) != 3 {
			return fmt.Errorf("usage: add <event-id> <zone-id> <quantity>")
		}
		quantity, err := strconv.Atoi(rest[2])
		if err != nil {
			return fmt.Errorf("invalid quantity %q", rest[2])
		}
		item, err := c.session.AddItem(ctx, cart.AddItemRequest{EventID: rest[0], ZoneID: rest[1], Quantity: quantity})
		if err != nil {
			return c.explain(err)
		}
		fmt.Fprintf(c.out, "added %d x %s/%s (item %s)\n", quantity, item.EventID, item.ZoneID, item.ID)
		return c.settleAndShow(ctx)

	case "update":
		if len(rest) != 2 {
			return fmt.Errorf("usage: update <item-id> <quantity>")
		}
		quantity, err := strconv.Atoi(rest[1])
		if err != nil {
			return fmt.Errorf("invalid quantity %q", rest[1])
		}
		if err := c.session.UpdateQuantity(ctx, rest[0], quantity); err != nil {
			return c.explain(err)
		}
		return c.settleAndShow(ctx)

	case "remove":
		if len(rest) != 1 {
			return fmt.Errorf("usage: remove <item-id>")
		}
		if err := c.session.RemoveItem(ctx, rest[0]); err != nil {
			return err
		}
		return c.settleAndShow(ctx)

	case "clear":
		if err := c.session.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "cart cleared")
		return nil

	case "points":
		if len(rest) != 1 {
			return fmt.Errorf("usage: points <points>")
		}
		points, err := strconv.Atoi(rest[0])
		if err != nil {
			return fmt.Errorf("invalid points %q", rest[0])
		}
		if err := c.session.ApplyPoints(points); err != nil {
			return err
		}
		if err := c.show(); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "pass --points %d to checkout to redeem them\n", points)
		return nil

	case "checkout":
		return c.checkout(ctx)

	case "watch":
		return c.watch(ctx)
	}
	return fmt.Errorf("unknown command %q", name)
}

func (c *command) checkout(ctx context.Context) error {
	if c.points != nil {
		if err := c.session.ApplyPoints(*c.points); err != nil {
			return err
		}
	}
	result, err := c.session.Checkout(ctx, c.payment)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "order %s: %s, total %s\n", result.OrderID, result.Status, result.Total.StringFixed(2))
	return nil
}

// explain turns a local rule violation into a user-facing message.
func (c *command) explain(err error) error {
	if cart.ErrorCode(err) != "" {
		return fmt.Errorf("rejected: %w", err)
	}
	return err
}

func (c *command) settleAndShow(ctx context.Context) error {
	if err := c.session.Settle(ctx); err != nil {
		c.logger.WithError(err).Warn("hold not confirmed")
	}
	return c.show()
}

func (c *command) show() error {
	snap, err := c.session.Snapshot()
	if err != nil {
		return err
	}
	totals, err := c.session.Totals()
	if err != nil {
		return err
	}

	if c.json {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Cart   cart.Snapshot `json:"cart"`
			Totals cart.Totals   `json:"totals"`
		}{snap, totals})
	}

	if !snap.HasItems() {
		fmt.Fprintln(c.out, "cart is empty")
		return nil
	}
	for _, item := range snap.Items {
		title := item.Title
		if title == "" {
			title = item.EventID
		}
		fmt.Fprintf(c.out, "%-10s %-30s %-10s %3d x %s\n", item.ID, title, item.ZoneID, item.Quantity, item.UnitPrice.StringFixed(2))
	}
	fmt.Fprintf(c.out, "subtotal %s  discount %s  total %s  (%d tickets)\n",
		totals.Subtotal.StringFixed(2), totals.Discount.StringFixed(2), totals.Total.StringFixed(2), totals.ItemCount)
	c.printHold()
	return nil
}

func (c *command) printHold() {
	switch state := c.session.HoldState(); state {
	case hold.Active:
		fmt.Fprintf(c.out, "seats held for %s\n", c.session.Remaining().Round(time.Second))
	default:
		fmt.Fprintf(c.out, "hold: %s\n", state)
	}
}

// watch prints the countdown until the hold ends or ctx is canceled.
func (c *command) watch(ctx context.Context) error {
	if err := c.session.Settle(ctx); err != nil {
		c.logger.WithError(err).Warn("hold not confirmed")
	}

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for {
		snap, err := c.session.Snapshot()
		if err != nil {
			return err
		}
		if !snap.HasItems() {
			fmt.Fprintln(c.out, "cart is empty")
			return nil
		}
		c.printHold()

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
