package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"time"

	"leadmarket-backend/internal/domain"

	"github.com/rs/zerolog/log"
)

// Sender delivers one outbox event. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, eventType string, msg Message) error
}

// LogSender only logs. Used when no mail provider is configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, eventType string, msg Message) error {
	ev := log.Info().Str("event_type", eventType).Strs("recipients", msg.Recipients)
	if msg.LeadID != nil {
		ev = ev.Str("lead_id", msg.LeadID.String())
	}
	if msg.ContractorID != nil {
		ev = ev.Str("contractor_id", msg.ContractorID.String())
	}
	ev.Msg("notification (log only)")
	return nil
}

const brevoAPI = "https://api.brevo.com/v3/smtp/email"

// brevoSendRequest matches Brevo API v3 send transactional email body.
type brevoSendRequest struct {
	Sender      brevoContact   `json:"sender"`
	To          []brevoContact `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// BrevoSender sends transactional email via Brevo (Sendinblue). Env: SENDINBLUE_API_KEY, MAIL_FROM.
type BrevoSender struct {
	APIKey   string
	MailFrom string
	Endpoint string
	Client   *http.Client
}

func (c *BrevoSender) from() string {
	if c.MailFrom != "" {
		return c.MailFrom
	}
	return "noreply@leadmarket.local"
}

func (c *BrevoSender) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return brevoAPI
}

func (c *BrevoSender) Send(ctx context.Context, eventType string, msg Message) error {
	if c.APIKey == "" || len(msg.Recipients) == 0 {
		return nil
	}
	subject, body, ok := render(eventType, msg)
	if !ok {
		log.Warn().Str("event_type", eventType).Msg("no email template for event, skipping")
		return nil
	}
	to := make([]brevoContact, 0, len(msg.Recipients))
	for _, r := range msg.Recipients {
		to = append(to, brevoContact{Email: r})
	}
	reqBody, err := json.Marshal(brevoSendRequest{
		Sender:      brevoContact{Email: c.from(), Name: "Lead Market"},
		To:          to,
		Subject:     subject,
		HTMLContent: emailLayout(body),
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("brevo send failed: status %d", resp.StatusCode)
	}
	return nil
}

// render builds a plain transactional body per event type.
func render(eventType string, msg Message) (subject, body string, ok bool) {
	title := html.EscapeString(msg.LeadTitle)
	switch eventType {
	case domain.EventLeadClaimed:
		return "Your lead has been claimed",
			fmt.Sprintf("<p>The lead <strong>%s</strong> has been claimed by a contractor. They will be in touch shortly.</p>", title), true
	case domain.EventLeadCancelled:
		return "Lead cancelled",
			fmt.Sprintf("<p>The lead <strong>%s</strong> was cancelled by the customer.</p>", title), true
	case domain.EventContractorApproved:
		return "Your contractor account is approved",
			"<p>Your contractor account has been approved. You can now claim leads.</p>", true
	case domain.EventContractorRejected:
		b := "<p>Your contractor application was not approved.</p>"
		if msg.Notes != "" {
			b += fmt.Sprintf("<p>Reason: %s</p>", html.EscapeString(msg.Notes))
		}
		return "Your contractor application", b, true
	case domain.EventVerificationCodeIssued:
		b := fmt.Sprintf("<p>Your verification code is <strong>%s</strong>. It can only be used once.</p>", html.EscapeString(msg.Code))
		if msg.ExpiresAt != nil {
			b += fmt.Sprintf("<p>It expires at %s UTC.</p>", msg.ExpiresAt.UTC().Format("15:04"))
		}
		return "Your verification code", b, true
	}
	return "", "", false
}
