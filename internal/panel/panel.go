// Package panel is the user-facing trigger: it starts one autofill run and
// reports its outcome. At most one run is outstanding at a time.
package panel

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/dlemos/formfill/internal/bus"
	"github.com/dlemos/formfill/internal/protocol"
)

var ErrBusy = errors.New("an autofill run is already in progress")

type Panel struct {
	router *bus.Router
	logger *zap.Logger
	busy   atomic.Bool
}

func New(router *bus.Router, logger *zap.Logger) *Panel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Panel{router: router, logger: logger}
}

// Trigger starts an autofill run and waits for its terminal result. A second
// trigger while one is outstanding fails with ErrBusy.
func (p *Panel) Trigger(ctx context.Context) (protocol.AutofillResult, error) {
	if !p.busy.CompareAndSwap(false, true) {
		return protocol.AutofillResult{}, ErrBusy
	}
	defer p.busy.Store(false)

	payload, err := protocol.Encode(protocol.StartAutofill{})
	if err != nil {
		return protocol.AutofillResult{}, err
	}

	p.logger.Debug("requesting autofill run")

	reply, err := p.router.Send(ctx, bus.EndpointCoordinator, payload)
	if err != nil {
		return protocol.AutofillResult{}, fmt.Errorf("autofill request: %w", err)
	}

	msg, err := protocol.Decode(reply)
	if err != nil {
		return protocol.AutofillResult{}, fmt.Errorf("autofill reply: %w", err)
	}

	result, ok := msg.(protocol.AutofillResult)
	if !ok {
		return protocol.AutofillResult{}, fmt.Errorf("%w: expected a result, got %T", protocol.ErrUnknownMessage, msg)
	}

	return result, nil
}

// Render formats the result for display. Errors are surfaced verbatim.
func Render(result protocol.AutofillResult) string {
	if !result.Success {
		return result.Error
	}

	switch result.FilledCount {
	case 1:
		return "Filled 1 field."
	default:
		return fmt.Sprintf("Filled %d fields.", result.FilledCount)
	}
}
