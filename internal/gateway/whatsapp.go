package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/config"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/errors"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/logger"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/retry"
)

// WhatsAppClient talks to the WhatsApp HTTP gateway. All retry handling
// lives here: callers issue one Send and get the final result.
type WhatsAppClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	policy     retry.Policy
	log        *logger.Logger
}

type sendRequest struct {
	Session   string `json:"session"`
	Phone     string `json:"phone"`
	Message   string `json:"message"`
	ClientRef string `json:"client_ref"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error,omitempty"`
}

// retryableError marks gateway failures worth another attempt
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// NewWhatsAppClient creates a gateway client from configuration
func NewWhatsAppClient(cfg *config.GatewayConfig, log *logger.Logger) *WhatsAppClient {
	c := &WhatsAppClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		log:        log,
	}
	c.policy = retry.Policy{
		Name:     "whatsapp_send",
		Attempts: cfg.MaxAttempts,
		Backoff:  retry.Fixed{Delay: cfg.RetryDelay},
		Retryable: func(err error) bool {
			_, ok := err.(*retryableError)
			return ok
		},
		OnAttempt: func(attempt int, err error) {
			log.Warn("gateway send attempt failed", "attempt", attempt+1, "error", err)
		},
	}
	return c
}

// Send delivers one message through the gateway session and returns the
// gateway's message ID. Network failures and 5xx responses are retried
// up to the configured attempt limit; 4xx responses fail immediately.
func (c *WhatsAppClient) Send(ctx context.Context, session, phone, message string) (string, error) {
	cleaned := CleanPhone(phone)
	if cleaned == "" {
		return "", errors.NewValidationError(fmt.Sprintf("phone %q has no digits", phone), nil)
	}

	body, err := json.Marshal(sendRequest{
		Session:   session,
		Phone:     cleaned,
		Message:   message,
		ClientRef: uuid.NewString(),
	})
	if err != nil {
		return "", err
	}

	var messageID string
	err = retry.Do(ctx, func() error {
		id, sendErr := c.post(ctx, body)
		if sendErr != nil {
			return sendErr
		}
		messageID = id
		return nil
	}, c.policy)
	if err != nil {
		return "", err
	}

	return messageID, nil
}

func (c *WhatsAppClient) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/message/send", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &retryableError{err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &retryableError{err: err}
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return "", &retryableError{err: fmt.Errorf("gateway returned status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed sendResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("gateway returned invalid response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("gateway rejected message: %s", parsed.Error)
	}

	return parsed.MessageID, nil
}

// HealthCheck verifies the gateway is reachable
func (c *WhatsAppClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway health check returned status %d", resp.StatusCode)
	}
	return nil
}

// CleanPhone strips everything but digits from a phone number
func CleanPhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
