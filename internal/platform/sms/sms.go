package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"madrasa/internal/platform/config"
)

// Sender delivers a text message to a phone number through the hosted
// SMS/WhatsApp gateway. Delivery itself is the gateway's problem.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

type noopSender struct{}

func (noopSender) Send(ctx context.Context, to, body string) error {
	return nil
}

type gatewaySender struct {
	cfg    config.Config
	client *http.Client
}

func New(cfg config.Config) Sender {
	if cfg.SMSGatewayURL == "" {
		return noopSender{}
	}
	return &gatewaySender{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type gatewayRequest struct {
	To     string `json:"to"`
	Body   string `json:"body"`
	Sender string `json:"sender"`
}

func (g *gatewaySender) Send(ctx context.Context, to, body string) error {
	if strings.TrimSpace(to) == "" {
		return nil
	}

	payload, err := json.Marshal(gatewayRequest{To: to, Body: body, Sender: g.cfg.SMSSenderID})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.SMSGatewayURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.SMSGatewayToken)

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned %d", resp.StatusCode)
	}
	return nil
}
