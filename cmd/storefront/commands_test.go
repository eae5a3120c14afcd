package main

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/example/ticket-storefront/internal/auth"
	"github.com/example/ticket-storefront/internal/clock"
	gwmocks "github.com/example/ticket-storefront/internal/gateway/mocks"
	storemocks "github.com/example/ticket-storefront/internal/infrastructure/store/mocks"
	"github.com/example/ticket-storefront/internal/session"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var user = auth.User{ID: "user-1", Token: "token"}

// newTestCommand builds a command over a started session, the way each
// CLI invocation does.
func newTestCommand(t *testing.T, gw *gwmocks.MockGateway, markers *storemocks.MockMarkerStore) (*command, *bytes.Buffer) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	sess := session.New(session.Dependencies{
		Gateway: gw,
		Markers: markers,
		Clock:   clock.Fake(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)),
		Logger:  logger,
	}, session.DefaultOptions())
	require.NoError(t, sess.Init(context.Background(), user))
	t.Cleanup(sess.Teardown)

	out := &bytes.Buffer{}
	return &command{
		session: sess,
		out:     out,
		payment: session.Payment{CardToken: "card-tok", PaymentMethod: "card"},
		logger:  logger,
	}, out
}

func newTestGateway() *gwmocks.MockGateway {
	gw := gwmocks.NewMockGateway("cart-1")
	gw.Prices["evt-1/vip"] = decimal.NewFromInt(100)
	return gw
}

func TestCommand_CheckoutRedeemsPointsFlag(t *testing.T) {
	gw := newTestGateway()
	markers := storemocks.NewMockMarkerStore()
	ctx := context.Background()

	// first invocation: add tickets and preview points
	first, _ := newTestCommand(t, gw, markers)
	require.NoError(t, first.dispatch(ctx, []string{"add", "evt-1", "vip", "2"}))
	require.NoError(t, first.dispatch(ctx, []string{"points", "50"}))
	first.session.Teardown()

	// second invocation: checkout with --points
	second, out := newTestCommand(t, gw, markers)
	points := 50
	second.points = &points
	require.NoError(t, second.dispatch(ctx, []string{"checkout"}))

	require.Len(t, gw.CheckoutCalls, 1)
	assert.Equal(t, 50, gw.CheckoutCalls[0].Request.PointsUsed)
	assert.Contains(t, out.String(), "order order-1")
}

func TestCommand_CheckoutWithoutPointsFlag(t *testing.T) {
	gw := newTestGateway()
	cmd, _ := newTestCommand(t, gw, storemocks.NewMockMarkerStore())
	ctx := context.Background()
	require.NoError(t, cmd.dispatch(ctx, []string{"add", "evt-1", "vip", "1"}))

	require.NoError(t, cmd.dispatch(ctx, []string{"checkout"}))

	require.Len(t, gw.CheckoutCalls, 1)
	assert.Zero(t, gw.CheckoutCalls[0].Request.PointsUsed)
}

func TestCommand_CheckoutRejectsNegativePoints(t *testing.T) {
	gw := newTestGateway()
	cmd, _ := newTestCommand(t, gw, storemocks.NewMockMarkerStore())
	ctx := context.Background()
	require.NoError(t, cmd.dispatch(ctx, []string{"add", "evt-1", "vip", "1"}))
	points := -1
	cmd.points = &points

	err := cmd.dispatch(ctx, []string{"checkout"})

	assert.Error(t, err)
	assert.Empty(t, gw.CheckoutCalls)
}

func TestCommand_UnknownCommand(t *testing.T) {
	cmd, _ := newTestCommand(t, newTestGateway(), storemocks.NewMockMarkerStore())

	assert.Error(t, cmd.dispatch(context.Background(), []string{"refund"}))
}
