//go:build pact
// +build pact

package consumer_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	gatewayclient "github.com/Apurer/go-commerce-api-server/internal/clients/http/gateway"
	ordersports "github.com/Apurer/go-commerce-api-server/internal/domains/orders/ports"
	pacttest "github.com/Apurer/go-commerce-api-server/test/pact"

	pactconsumer "github.com/pact-foundation/pact-go/v2/consumer"
	pactlog "github.com/pact-foundation/pact-go/v2/log"
	"github.com/pact-foundation/pact-go/v2/matchers"
)

func TestPaymentGatewayContract(t *testing.T) {
	pactlog.SetLogLevel("INFO")

	pact, err := pactconsumer.NewV2Pact(pactconsumer.MockHTTPProviderConfig{
		Consumer: pacttest.ConsumerName,
		Provider: pacttest.ProviderName,
		PactDir:  pacttest.PactDir(t),
		LogDir:   pacttest.LogDir(t),
	})
	require.NoError(t, err)

	jsonContentType := matchers.Regex("application/json; charset=utf-8", "application\\/json(?:;\\s?charset=utf-8)?")
	authHeader := matchers.S("Bearer pact-api-key")

	intentBodyMatcher := matchers.Map{
		"id":           matchers.Like(pacttest.ExistingIntentID),
		"status":       matchers.Term("succeeded", "succeeded|declined|pending"),
		"amount_cents": matchers.Like(pacttest.ChargeAmountCents),
	}

	pact.AddInteraction().
		Given(pacttest.StateGatewayHealthy).
		UponReceiving("a charge request").
		WithRequest("POST", "/v1/charges", func(b *pactconsumer.V2RequestBuilder) {
			b.Header("Content-Type", matchers.S("application/json"))
			b.Header("Authorization", authHeader)
			b.JSONBody(matchers.Map{
				"amount_cents": matchers.Like(pacttest.ChargeAmountCents),
				"currency":     matchers.S("USD"),
				"description":  matchers.Like("order for user user-1 (2 items)"),
			})
		}).
		WillRespondWith(http.StatusCreated, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			b.JSONBody(intentBodyMatcher)
		})

	pact.AddInteraction().
		Given(pacttest.StateIntentExists).
		UponReceiving("a refund request").
		WithRequest("POST", "/v1/refunds", func(b *pactconsumer.V2RequestBuilder) {
			b.Header("Content-Type", matchers.S("application/json"))
			b.Header("Authorization", authHeader)
			b.JSONBody(matchers.Map{
				"intent_id":    matchers.Like(pacttest.ExistingIntentID),
				"amount_cents": matchers.Like(pacttest.RefundAmountCents),
			})
		}).
		WillRespondWith(http.StatusOK, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			b.JSONBody(matchers.Map{
				"id":           matchers.Like(pacttest.RefundID),
				"status":       matchers.Term("succeeded", "succeeded|pending"),
				"amount_cents": matchers.Like(pacttest.RefundAmountCents),
			})
		})

	pact.AddInteraction().
		Given(pacttest.StateLedgerHasCharge).
		UponReceiving("a transaction listing").
		WithRequest("GET", "/v1/transactions", func(b *pactconsumer.V2RequestBuilder) {
			b.Header("Authorization", authHeader)
			b.Query("since", matchers.Regex("2026-08-27T00:00:00Z", `\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z`))
		}).
		WillRespondWith(http.StatusOK, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			b.JSONBody(matchers.EachLike(matchers.Map{
				"intent_id":    matchers.Like(pacttest.ExistingIntentID),
				"amount_cents": matchers.Like(pacttest.ChargeAmountCents),
				"status":       matchers.Term("succeeded", "succeeded|refunded"),
				"created_at":   matchers.Regex("2026-08-27T12:00:00Z", `\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z`),
			}, 1))
		})

	err = pact.ExecuteTest(t, func(config pactconsumer.MockServerConfig) error {
		host := config.Host
		if host == "" {
			host = "localhost"
		}
		client, err := gatewayclient.NewClient(fmt.Sprintf("http://%s:%d", host, config.Port), "pact-api-key")
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		amount := decimal.NewFromInt(pacttest.ChargeAmountCents).Div(decimal.NewFromInt(100))
		intent, err := client.Charge(ctx, amount, "order for user user-1 (2 items)")
		if err != nil {
			return fmt.Errorf("charge: %w", err)
		}
		if intent.ID == "" || intent.Status != "succeeded" {
			return fmt.Errorf("unexpected intent %+v", intent)
		}

		refundAmount := decimal.NewFromInt(pacttest.RefundAmountCents).Div(decimal.NewFromInt(100))
		receipt, err := client.Refund(ctx, pacttest.ExistingIntentID, refundAmount)
		if err != nil {
			return fmt.Errorf("refund: %w", err)
		}
		if receipt.ID == "" {
			return errors.New("expected refund receipt ID to be set")
		}

		since, err := time.Parse(time.RFC3339, "2026-08-27T00:00:00Z")
		if err != nil {
			return err
		}
		transactions, err := client.ListTransactions(ctx, since)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		if len(transactions) == 0 {
			return errors.New("expected at least one transaction")
		}
		return nil
	})
	require.NoError(t, err)
}

func TestPaymentGatewayContract_Decline(t *testing.T) {
	pactlog.SetLogLevel("INFO")

	pact, err := pactconsumer.NewV2Pact(pactconsumer.MockHTTPProviderConfig{
		Consumer: pacttest.ConsumerName,
		Provider: pacttest.ProviderName,
		PactDir:  pacttest.PactDir(t),
		LogDir:   pacttest.LogDir(t),
	})
	require.NoError(t, err)

	pact.AddInteraction().
		Given(pacttest.StateChargeDeclined).
		UponReceiving("a charge that gets declined").
		WithRequest("POST", "/v1/charges", func(b *pactconsumer.V2RequestBuilder) {
			b.Header("Content-Type", matchers.S("application/json"))
			b.JSONBody(matchers.Map{
				"amount_cents": matchers.Like(pacttest.ChargeAmountCents),
				"currency":     matchers.S("USD"),
			})
		}).
		WillRespondWith(http.StatusPaymentRequired, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", matchers.S("application/json"))
			b.JSONBody(matchers.Map{
				"message": matchers.S("card declined"),
			})
		})

	err = pact.ExecuteTest(t, func(config pactconsumer.MockServerConfig) error {
		host := config.Host
		if host == "" {
			host = "localhost"
		}
		client, err := gatewayclient.NewClient(fmt.Sprintf("http://%s:%d", host, config.Port), "")
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		amount := decimal.NewFromInt(pacttest.ChargeAmountCents).Div(decimal.NewFromInt(100))
		_, err = client.Charge(ctx, amount, "")
		if !errors.Is(err, ordersports.ErrPaymentDeclined) {
			return fmt.Errorf("expected payment declined, got %v", err)
		}
		return nil
	})
	require.NoError(t, err)
}
