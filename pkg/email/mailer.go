package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sokoplace/sokoplace-backend/pkg/config"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
)

const errorBodyReadLimit int64 = 2048

// Mailer delivers transactional email. Implementations must be safe for
// concurrent use.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// HTTPMailer posts messages to an HTTP email provider.
type HTTPMailer struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	from       string
}

// NewHTTPMailer builds a mailer from config. It returns an error when the
// provider endpoint or key is missing; callers that tolerate a missing
// provider should fall back to NewLogMailer.
func NewHTTPMailer(cfg config.EmailConfig) (*HTTPMailer, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("email base url is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("email api key is required")
	}
	return &HTTPMailer{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		from:       cfg.DefaultFrom,
	}, nil
}

// Send posts a single message to the provider.
func (m *HTTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if strings.TrimSpace(to) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient is required")
	}

	payload, err := json.Marshal(map[string]string{
		"from":    m.from,
		"to":      to,
		"subject": subject,
		"html":    htmlBody,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal email payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build email request")
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute email request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return pkgerrors.Wrap(
			pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"email provider rejected message",
		)
	}
	return nil
}

// LogMailer writes messages to the application log instead of a provider.
// Used in dev and when the provider is not configured.
type LogMailer struct {
	logg *logger.Logger
}

// NewLogMailer builds a mailer that only logs.
func NewLogMailer(logg *logger.Logger) *LogMailer {
	return &LogMailer{logg: logg}
}

// Send logs the message envelope and drops the body.
func (m *LogMailer) Send(ctx context.Context, to, subject, _ string) error {
	if m.logg != nil {
		ctx = m.logg.WithFields(ctx, map[string]any{"to": to, "subject": subject})
		m.logg.Info(ctx, "email suppressed (log mailer)")
	}
	return nil
}
