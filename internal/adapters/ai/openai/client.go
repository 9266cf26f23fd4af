// Package openai implements ai.Gateway on any OpenAI-compatible chat completion API
// that accepts image inputs.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/okian/civiclens/internal/adapters/ai"
	"github.com/okian/civiclens/internal/domain/model"
	"github.com/okian/civiclens/pkg/logger"
	"github.com/okian/civiclens/pkg/metrics"
)

const (
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 800
	defaultTimeout   = 30 * time.Second
	defaultCooldown  = 5 * time.Minute
)

// Config configures a Gateway.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	Timeout   time.Duration
	MaxTokens int
	// HardFailCooldown is how long the gateway reports unavailable after an
	// authentication or quota failure.
	HardFailCooldown time.Duration
	// EventTypes are offered to the model as the only valid answers.
	EventTypes []string
}

// Gateway talks to the provider.
type Gateway struct {
	client     *openai.Client
	model      string
	maxTokens  int
	timeout    time.Duration
	cooldown   time.Duration
	eventTypes []string
	hasKey     bool
	hardFailAt atomic.Int64
	now        func() time.Time
	log        logger.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.log = l
		}
	}
}

// WithClock overrides the clock used for the hard-failure cool-down.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// New builds a Gateway. Missing credentials yield a gateway that is never available.
func New(cfg Config, opts ...Option) *Gateway {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HardFailCooldown <= 0 {
		cfg.HardFailCooldown = defaultCooldown
	}

	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	cc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	g := &Gateway{
		client:     openai.NewClientWithConfig(cc),
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		timeout:    cfg.Timeout,
		cooldown:   cfg.HardFailCooldown,
		eventTypes: append([]string(nil), cfg.EventTypes...),
		hasKey:     strings.TrimSpace(cfg.APIKey) != "",
		now:        time.Now,
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Name() string { return "openai" }

// Model returns the configured model name.
func (g *Gateway) Model() string { return g.model }

// IsAvailable reports whether credentials exist and no hard failure is cooling down.
func (g *Gateway) IsAvailable() bool {
	if !g.hasKey {
		return false
	}
	at := g.hardFailAt.Load()
	return at == 0 || g.now().Sub(time.Unix(0, at)) >= g.cooldown
}

func (g *Gateway) request(media model.MediaRef) (openai.ChatCompletionRequest, error) {
	imageURL := media.URL
	if len(media.Data) > 0 {
		mime := media.MIMEType
		if mime == "" {
			mime = "image/jpeg"
		}
		imageURL = "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(media.Data)
	}
	if imageURL == "" {
		return openai.ChatCompletionRequest{}, model.NewError("analyze", model.ErrValidation, errors.New("no image to analyze"))
	}

	req := openai.ChatCompletionRequest{
		Model: g.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: ai.SystemPrompt(g.eventTypes)},
			{Role: openai.ChatMessageRoleUser, MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: ai.UserPrompt(media)},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    imageURL,
					Detail: openai.ImageURLDetailAuto,
				}},
			}},
		},
	}
	// Reasoning models take MaxCompletionTokens instead of MaxTokens.
	if strings.HasPrefix(g.model, "o1") || strings.HasPrefix(g.model, "o3") || strings.HasPrefix(g.model, "o4") || strings.HasPrefix(g.model, "gpt-5") {
		req.MaxCompletionTokens = g.maxTokens
	} else {
		req.MaxTokens = g.maxTokens
	}
	return req, nil
}

// Analyze sends one chat completion with the image attached.
func (g *Gateway) Analyze(ctx context.Context, media model.MediaRef) (model.RawAnalysis, error) {
	if !g.hasKey {
		return model.RawAnalysis{}, model.NewError("analyze", model.ErrProvider, ai.ErrNotConfigured)
	}
	req, err := g.request(media)
	if err != nil {
		return model.RawAnalysis{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		err = g.classify(ctx, err)
		metrics.RecordProviderCall(g.Name(), "error", time.Since(start))
		return model.RawAnalysis{}, model.NewError("chat completion", model.ErrProvider, err)
	}
	metrics.RecordProviderCall(g.Name(), "ok", time.Since(start))

	if len(resp.Choices) == 0 {
		return model.RawAnalysis{}, model.NewError("chat completion", model.ErrProvider, fmt.Errorf("%w: no choices", ai.ErrBadResponse))
	}
	raw, err := ai.ParseResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return model.RawAnalysis{}, model.NewError("parse response", model.ErrProvider, err)
	}
	raw.Model = resp.Model
	if raw.Model == "" {
		raw.Model = g.model
	}
	return raw, nil
}

// classify marks hard failures and maps quota errors.
func (g *Gateway) classify(ctx context.Context, err error) error {
	status, code := 0, ""
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		code = fmt.Sprint(apiErr.Code) + " " + apiErr.Type
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	quota := status == http.StatusTooManyRequests && strings.Contains(code, "insufficient_quota")
	if status == http.StatusUnauthorized || status == http.StatusForbidden || quota {
		g.hardFailAt.Store(g.now().UnixNano())
		g.log.Error(ctx, "ai provider hard failure, pausing calls",
			logger.Int("status", status), logger.Duration("cooldown", g.cooldown), logger.Error(err))
		metrics.UpdateProviderAvailable(false)
	}
	if quota {
		return fmt.Errorf("%w: %w", ai.ErrQuotaExceeded, err)
	}
	return err
}
