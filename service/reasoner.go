package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/avast/retry-go"
	"github.com/fakesociety/RentGuard360/config"
	"github.com/go-resty/resty/v2"
)

// ErrReasonerRejected marks a response that retrying will not fix
var ErrReasonerRejected = errors.New("reasoner rejected request")

// ReasonerRequest is the body posted to the contract reasoner
type ReasonerRequest struct {
	ContractID     string          `json:"contract_id"`
	SanitizedText  string          `json:"sanitized_text"`
	Clauses        []string        `json:"clauses"`
	ResponseSchema json.RawMessage `json:"response_schema"`
}

type reasonerResponse struct {
	Output string `json:"output"`
}

// ReasonerService calls the external model that reviews a sanitized contract
// and answers with a free-text JSON report.
type ReasonerService struct {
	client *resty.Client
	config *config.ReasonerConfig
}

func NewReasonerService(cfg *config.ReasonerConfig) *ReasonerService {
	client := resty.New().
		SetTimeout(cfg.Timeout()).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIToken != "" {
		client.SetAuthToken(cfg.APIToken)
	}

	return &ReasonerService{
		client: client,
		config: cfg,
	}
}

// Analyze posts the request and returns the reasoner's raw output. Network
// failures, 429 and 5xx answers are retried; other 4xx answers are not.
func (s *ReasonerService) Analyze(ctx context.Context, req ReasonerRequest) (string, error) {
	if s.config.URL == "" {
		return "", fmt.Errorf("%w: no reasoner url configured", ErrReasonerRejected)
	}

	var output string
	err := retry.Do(
		func() error {
			out, err := s.post(ctx, req)
			if err != nil {
				return err
			}
			output = out
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.config.RetryAttempts),
		retry.Delay(s.config.RetryDelay()),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, ErrReasonerRejected)
		}),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("reasoner call failed, retrying",
				"contract_id", req.ContractID,
				"attempt", n+1,
				"error", err,
			)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("reasoner call failed: %w", err)
	}
	return output, nil
}

func (s *ReasonerService) post(ctx context.Context, req ReasonerRequest) (string, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		Post(s.config.URL)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusTooManyRequests || code >= 500:
		return "", fmt.Errorf("reasoner returned status %d", code)
	case code >= 400:
		return "", fmt.Errorf("%w: status %d", ErrReasonerRejected, code)
	}

	slog.Debug("reasoner responded", "contract_id", req.ContractID, "size", len(resp.Body()))

	// Replies without an output envelope carry the report as the body.
	var envelope reasonerResponse
	if err := json.Unmarshal(resp.Body(), &envelope); err == nil && envelope.Output != "" {
		return envelope.Output, nil
	}
	return strings.TrimSpace(string(resp.Body())), nil
}
