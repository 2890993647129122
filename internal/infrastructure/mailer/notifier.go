package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"InterviewNotifier/internal/domain"
	"InterviewNotifier/internal/ports"
)

// Notifier sends scheduling invitations through a JSON email API
// (Resend-style POST /emails with bearer auth).
type Notifier struct {
	endpoint string
	apiKey   string
	from     string
	client   *http.Client
	limiter  *rate.Limiter
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier wires the provider endpoint and credentials. rps > 0 paces
// sends client-side so ordinary batches don't trip the provider limit.
func NewNotifier(endpoint, apiKey, from string, rps float64) *Notifier {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &Notifier{
		endpoint: endpoint,
		apiKey:   apiKey,
		from:     from,
		client:   &http.Client{Timeout: 15 * time.Second},
		limiter:  limiter,
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

type apiError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Send posts one invitation. HTTP 429 (or a rate-limit error name in the
// body) reports as ports.ErrQuotaExceeded; any other non-2xx failure
// preserves the provider's message verbatim.
func (n *Notifier) Send(ctx context.Context, inv domain.Invitation) error {
	if n.endpoint == "" || n.apiKey == "" || n.from == "" {
		return fmt.Errorf("mailer misconfigured")
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(sendRequest{
		From:    n.from,
		To:      []string{inv.To},
		Subject: subject(inv),
		Text:    textBody(inv),
	})
	if err != nil {
		return fmt.Errorf("marshal send payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+n.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send invitation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	var apiErr apiError
	_ = json.Unmarshal(raw, &apiErr)

	if resp.StatusCode == http.StatusTooManyRequests || isQuotaName(apiErr.Name) {
		return fmt.Errorf("%w: %s", ports.ErrQuotaExceeded, resp.Status)
	}

	message := strings.TrimSpace(apiErr.Message)
	if message == "" {
		message = strings.TrimSpace(string(raw))
	}
	if message == "" {
		message = resp.Status
	}
	return fmt.Errorf("mailer error %s: %s", resp.Status, message)
}

func isQuotaName(name string) bool {
	switch strings.ToLower(name) {
	case "rate_limit_exceeded", "daily_quota_exceeded", "quota_exceeded":
		return true
	default:
		return false
	}
}

func subject(inv domain.Invitation) string {
	return fmt.Sprintf("Interview scheduling: %s (%s)", inv.Company, inv.RoundName)
}

func textBody(inv domain.Invitation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", inv.Candidate)
	fmt.Fprintf(&b, "Please pick a slot for %s of your interview with %s:\n\n", inv.RoundName, inv.Company)
	fmt.Fprintf(&b, "%s\n\n", inv.SchedulingLink)
	if inv.Interviewer != "" {
		fmt.Fprintf(&b, "Your interviewer will be %s.\n\n", inv.Interviewer)
	}
	b.WriteString("Good luck!\n")
	return b.String()
}
