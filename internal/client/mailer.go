// Package client holds thin HTTP clients for external collaborators. The
// mailer talks to a transactional mail relay; nothing in the request path
// calls it directly, only event subscribers do.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/authgrid/backend/internal/config"
)

type MailerClient struct {
	relayURL   string
	apiToken   string
	from       string
	httpClient *http.Client
}

type mailMessage struct {
	From         string            `json:"from"`
	To           string            `json:"to"`
	TemplateName string            `json:"templateName"`
	TemplateData map[string]string `json:"templateData"`
}

type mailResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	ID    string `json:"id,omitempty"`
}

func NewMailerClient(cfg config.MailerConfig) *MailerClient {
	return &MailerClient{
		relayURL: cfg.RelayURL,
		apiToken: cfg.APIToken,
		from:     cfg.From,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *MailerClient) IsConfigured() bool {
	return c.relayURL != "" && c.apiToken != ""
}

func (c *MailerClient) SendTemplate(ctx context.Context, recipient, templateName string, data map[string]string) error {
	if !c.IsConfigured() {
		return fmt.Errorf("mail relay URL or API token not configured")
	}

	payload, err := json.Marshal(mailMessage{
		From:         c.from,
		To:           recipient,
		TemplateName: templateName,
		TemplateData: data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var mailResp mailResponse
	if err := json.Unmarshal(body, &mailResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if !mailResp.OK {
		return fmt.Errorf("mail relay error: %s", mailResp.Error)
	}
	return nil
}
