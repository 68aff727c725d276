// Package coordinator owns the autofill run from trigger to result. It has
// no DOM access: it locates the active tab, injects the scanner, retries
// delivery until the scanner listens, and answers the scanner's field list
// with a mapping produced by the inference service.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/dlemos/formfill/internal/browser"
	"github.com/dlemos/formfill/internal/bus"
	"github.com/dlemos/formfill/internal/gemini"
	"github.com/dlemos/formfill/internal/logger"
	"github.com/dlemos/formfill/internal/protocol"
	"github.com/dlemos/formfill/internal/retry"
	"github.com/dlemos/formfill/internal/storage"
)

const defaultMaxLogLength = 200

// TabOwner is the privileged browser surface the coordinator drives.
type TabOwner interface {
	ActiveTab() (*browser.Tab, error)
	Inject(tab *browser.Tab) error
}

// Generator produces the field-to-value mapping text.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// GeneratorFactory builds a Generator for the credential and model read from
// storage at request time.
type GeneratorFactory func(ctx context.Context, apiKey, model string) (Generator, error)

// Store is the read side of the key/value collaborator.
type Store interface {
	Get(key string) (string, bool, error)
}

// Config holds the tunable knobs of a run. Zero values fall back to the
// observed defaults (5 delivery attempts, 100ms apart).
type Config struct {
	MaxAttempts  int
	RetryDelay   time.Duration
	MaxLogLength int
}

// Coordinator bridges the panel, the page scanner, storage, and the
// inference service.
type Coordinator struct {
	router       *bus.Router
	tabs         TabOwner
	store        Store
	newGenerator GeneratorFactory
	delivery     retry.Policy
	logger       *zap.Logger
	maxLogLen    int
}

func New(router *bus.Router, tabs TabOwner, store Store, factory GeneratorFactory, cfg Config, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}

	delivery := retry.Policy{
		MaxAttempts: cfg.MaxAttempts,
		Delay:       cfg.RetryDelay,
		Retryable: func(err error) bool {
			return errors.Is(err, bus.ErrNoListener)
		},
	}
	if delivery.MaxAttempts <= 0 {
		delivery.MaxAttempts = retry.DefaultMaxAttempts
	}
	if delivery.Delay <= 0 {
		delivery.Delay = retry.DefaultDelay
	}

	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	return &Coordinator{
		router:       router,
		tabs:         tabs,
		store:        store,
		newGenerator: factory,
		delivery:     delivery,
		logger:       log,
		maxLogLen:    maxLogLen,
	}
}

// Attach registers the coordinator's message listener.
func (c *Coordinator) Attach() {
	c.router.Register(bus.EndpointCoordinator, c.handle)
}

func (c *Coordinator) handle(ctx context.Context, payload []byte) ([]byte, error) {
	msg, err := protocol.Decode(payload)
	if err != nil {
		return nil, err
	}

	switch m := msg.(type) {
	case protocol.StartAutofill:
		return protocol.Encode(c.handleStartAutofill(ctx))
	case protocol.AutofillRequest:
		return protocol.Encode(c.handleAutofillRequest(ctx, m.Fields))
	default:
		return nil, fmt.Errorf("%w: coordinator cannot handle %T", protocol.ErrUnknownMessage, msg)
	}
}

// handleStartAutofill runs one autofill: locate the active tab, inject the
// scanner, deliver SCAN_AND_FILL with bounded retries, and propagate the
// scanner's result. Every failure resolves to a well-formed failed result.
func (c *Coordinator) handleStartAutofill(ctx context.Context) protocol.AutofillResult {
	tab, err := c.tabs.ActiveTab()
	if err != nil {
		return protocol.Failure("no active tab found")
	}

	if err := c.tabs.Inject(tab); err != nil {
		return protocol.Failure("failed to start autofill: %v", err)
	}

	payload, err := protocol.Encode(protocol.ScanAndFill{})
	if err != nil {
		return protocol.Failure("failed to start autofill: %v", err)
	}

	endpoint := bus.TabEndpoint(tab.ID)

	var replyPayload []byte
	err = c.delivery.Do(ctx, func(ctx context.Context) error {
		var sendErr error
		replyPayload, sendErr = c.router.Send(ctx, endpoint, payload)
		return sendErr
	})
	if err != nil {
		if errors.Is(err, bus.ErrNoListener) {
			c.logger.Warn("scanner unresponsive",
				zap.Int("tab_id", tab.ID),
				zap.Int("attempts", c.delivery.MaxAttempts),
			)
			return protocol.Failure("scanner did not respond after %d attempts; reload the page and try again", c.delivery.MaxAttempts)
		}
		return protocol.Failure("failed to start autofill: %v", err)
	}

	reply, err := protocol.Decode(replyPayload)
	if err != nil {
		return protocol.Failure("failed to start autofill: %v", err)
	}

	result, ok := reply.(protocol.AutofillResult)
	if !ok {
		return protocol.Failure("unexpected reply from scanner")
	}

	return result
}

// handleAutofillRequest maps discovered fields to resume values. Missing
// credentials and every inference failure degrade to an empty mapping; a run
// that fills nothing is a normal outcome, not an error.
func (c *Coordinator) handleAutofillRequest(ctx context.Context, fields []protocol.FormFieldDescriptor) protocol.AutofillResponse {
	empty := protocol.AutofillResponse{Mapping: map[string]string{}}

	resumeText := c.storedValue(storage.KeyResumeContent)
	apiKey := c.storedValue(storage.KeyAPIKey)

	if resumeText == "" || apiKey == "" {
		c.logger.Debug("resume or api key missing, returning empty mapping",
			zap.Bool("has_resume", resumeText != ""),
			zap.Bool("has_api_key", apiKey != ""),
		)
		return empty
	}

	model := c.storedValue(storage.KeyModel)
	if model == "" {
		model = gemini.DefaultModel
	}

	prompt := BuildPrompt(resumeText, fields)

	c.logger.Debug("inference request",
		zap.String("model", model),
		zap.Int("field_count", len(fields)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, c.maxLogLen)),
	)

	generator, err := c.newGenerator(ctx, apiKey, model)
	if err != nil {
		c.logger.Warn("inference client unavailable", zap.Error(err))
		return empty
	}

	raw, err := generator.GenerateJSON(ctx, prompt)
	if err != nil {
		c.logger.Warn("inference call failed", zap.Error(err))
		return empty
	}

	c.logger.Debug("inference response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, c.maxLogLen)),
	)

	mapping, err := ParseMapping(raw)
	if err != nil {
		c.logger.Warn("unparsable inference response", zap.Error(err))
		return empty
	}

	return protocol.AutofillResponse{Mapping: mapping}
}

func (c *Coordinator) storedValue(key string) string {
	value, ok, err := c.store.Get(key)
	if err != nil {
		c.logger.Warn("storage read failed", zap.String("key", key), zap.Error(err))
		return ""
	}
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}
