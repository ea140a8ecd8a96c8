package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/middleware"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/payment"
)

type PaymentSettler interface {
	MarkPaid(ctx context.Context, paymentID string) (*payment.Payment, error)
	MarkFailed(ctx context.Context, paymentID, reason string) (*payment.Payment, error)
}

// GatewayResultHandler applies payment results relayed from the provider's
// webhook. Results for already settled payments are acknowledged and ignored.
func GatewayResultHandler(svc PaymentSettler, logger *log.Logger) HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		res, meta, err := parseGatewayResult(body)
		if err != nil {
			return err
		}
		if meta.CorrelationID != "" {
			ctx = middleware.WithCorrelationID(ctx, meta.CorrelationID)
		}
		ctx = withCausation(ctx, meta.EventID)

		var p *payment.Payment
		switch strings.ToLower(res.Status) {
		case "paid", "authorized":
			p, err = svc.MarkPaid(ctx, res.PaymentID)
		case "failed", "rejected":
			p, err = svc.MarkFailed(ctx, res.PaymentID, res.Reason)
		default:
			return fmt.Errorf("unknown gateway status %q", res.Status)
		}

		if errors.Is(err, payment.ErrTerminal) {
			logger.Printf("payment %s already settled, ignoring %s result", res.PaymentID, res.Status)
			return nil
		}
		if err != nil {
			return fmt.Errorf("settle payment %s: %w", res.PaymentID, err)
		}

		logger.Printf("payment %s for order %s is %s", p.ID, p.OrderID, p.Status)
		return nil
	}
}

// relayMeta is the identity of an enveloped gateway result.
type relayMeta struct {
	EventID       string
	CorrelationID string
}

// parseGatewayResult accepts an enveloped or a bare payload.
func parseGatewayResult(body []byte) (GatewayResult, relayMeta, error) {
	var head struct {
		EventName string `json:"eventName"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return GatewayResult{}, relayMeta{}, fmt.Errorf("unmarshal gateway result: %w", err)
	}

	var (
		res  GatewayResult
		meta relayMeta
	)
	if head.EventName != "" {
		var env EventEnvelope[GatewayResult]
		if err := json.Unmarshal(body, &env); err != nil {
			return GatewayResult{}, relayMeta{}, fmt.Errorf("unmarshal gateway result envelope: %w", err)
		}
		if err := env.Validate(EventTypeGatewayResult, envelopeVersion); err != nil {
			return GatewayResult{}, relayMeta{}, err
		}
		res = env.Payload
		meta = relayMeta{EventID: env.EventID, CorrelationID: env.CorrelationID}
	} else if err := json.Unmarshal(body, &res); err != nil {
		return GatewayResult{}, relayMeta{}, fmt.Errorf("unmarshal gateway result: %w", err)
	}

	if res.PaymentID == "" {
		return GatewayResult{}, relayMeta{}, fmt.Errorf("missing paymentId")
	}
	return res, meta, nil
}
