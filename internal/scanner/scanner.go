// Package scanner is the page-side component: it discovers fillable fields
// in a document and later applies a field-to-value mapping back into it. It
// knows nothing about storage or the inference service; its only collaborators
// are the page itself and the message bus.
package scanner

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/dlemos/formfill/internal/bus"
	"github.com/dlemos/formfill/internal/dom"
	"github.com/dlemos/formfill/internal/protocol"
)

// syntheticIDPrefix prefixes ids assigned to elements that lack one. Such ids
// are stable only for the lifetime of the page.
const syntheticIDPrefix = "__autofill_field_"

// listenerMarker is the rendezvous key in the tab's global scope that records
// the currently attached listener. Attach replaces it, so repeated injection
// never accumulates duplicate listeners.
const listenerMarker = "__autofill_listener__"

// Input types with no free-text semantics.
var skipTypes = map[string]struct{}{
	"hidden":   {},
	"submit":   {},
	"button":   {},
	"file":     {},
	"checkbox": {},
	"radio":    {},
	"image":    {},
	"reset":    {},
}

// Globals is the page's global scope, used only for the re-injection guard.
type Globals interface {
	GetGlobal(key string) (any, bool)
	SetGlobal(key string, value any)
}

// Scanner handles SCAN_AND_FILL for one page.
type Scanner struct {
	doc      *dom.Document
	router   *bus.Router
	endpoint string
	logger   *zap.Logger
}

// Attach registers the scanner's message listener on the tab's endpoint,
// replacing any listener left behind by a previous injection.
func Attach(router *bus.Router, endpoint string, doc *dom.Document, globals Globals, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Scanner{doc: doc, router: router, endpoint: endpoint, logger: logger}

	if _, ok := globals.GetGlobal(listenerMarker); ok {
		logger.Debug("replacing scanner listener from a previous injection",
			zap.String("endpoint", endpoint))
		router.Unregister(endpoint)
	}

	globals.SetGlobal(listenerMarker, s)
	router.Register(endpoint, s.handle)

	return s
}

func (s *Scanner) handle(ctx context.Context, payload []byte) ([]byte, error) {
	msg, err := protocol.Decode(payload)
	if err != nil {
		return nil, err
	}

	if _, ok := msg.(protocol.ScanAndFill); !ok {
		return nil, fmt.Errorf("%w: scanner cannot handle %T", protocol.ErrUnknownMessage, msg)
	}

	return protocol.Encode(s.scanAndFill(ctx))
}

func (s *Scanner) scanAndFill(ctx context.Context) protocol.AutofillResult {
	fields := Scan(s.doc)
	if len(fields) == 0 {
		return protocol.Failure("no form fields found on the page")
	}

	s.logger.Debug("discovered form fields", zap.Int("count", len(fields)))

	reqPayload, err := protocol.Encode(protocol.AutofillRequest{Fields: fields})
	if err != nil {
		return protocol.Failure("scanner error: %v", err)
	}

	replyPayload, err := s.router.Send(ctx, bus.EndpointCoordinator, reqPayload)
	if err != nil {
		return protocol.Failure("scanner error: %v", err)
	}

	reply, err := protocol.Decode(replyPayload)
	if err != nil {
		return protocol.Failure("scanner error: %v", err)
	}

	resp, ok := reply.(protocol.AutofillResponse)
	if !ok {
		return protocol.Failure("invalid autofill response")
	}

	filled := Fill(s.doc, resp.Mapping)
	s.logger.Debug("applied field mapping", zap.Int("filled", filled))

	return protocol.AutofillResult{Success: true, FilledCount: filled}
}

// Scan discovers fillable fields in document order. Hidden elements and
// control-like input types are excluded. Elements without an id get a
// synthetic one, unique within this scan.
func Scan(doc *dom.Document) []protocol.FormFieldDescriptor {
	var fields []protocol.FormFieldDescriptor

	counter := 0
	doc.Each("input, textarea, select", func(el *dom.Element) {
		if el.Tag() == "input" {
			if _, skip := skipTypes[el.Type()]; skip {
				return
			}
		}
		if !el.Rendered() {
			return
		}

		if el.ID() == "" {
			for {
				candidate := fmt.Sprintf("%s%d", syntheticIDPrefix, counter)
				counter++
				if doc.ByID(candidate) == nil {
					el.SetID(candidate)
					break
				}
			}
		}

		fields = append(fields, protocol.FormFieldDescriptor{
			ID:           el.ID(),
			TagName:      el.Tag(),
			Type:         el.Type(),
			Name:         el.Attr("name"),
			Label:        detectLabel(doc, el),
			Placeholder:  el.Attr("placeholder"),
			Autocomplete: el.Attr("autocomplete"),
			Options:      selectOptions(el),
		})
	})

	return fields
}

// detectLabel resolves the field's label in strict priority order; first
// match wins, no match yields "".
func detectLabel(doc *dom.Document, el *dom.Element) string {
	if text := doc.LabelFor(el.ID()); text != "" {
		return text
	}

	if parent := el.Closest("label"); parent != nil {
		if text := parent.Text(); text != "" {
			return text
		}
	}

	if ref := el.Attr("aria-labelledby"); ref != "" {
		if target := doc.ByID(ref); target != nil {
			if text := target.Text(); text != "" {
				return text
			}
		}
	}

	if text := el.Attr("aria-label"); text != "" {
		return text
	}

	if prev := el.PrevSibling(); prev != nil {
		if text := prev.Text(); text != "" {
			return text
		}
	}

	return ""
}

// selectOptions returns the visible texts of a select's options, skipping
// empty-value placeholder entries. Nil for non-select elements.
func selectOptions(el *dom.Element) []string {
	if el.Tag() != "select" {
		return nil
	}

	var texts []string
	for _, opt := range el.Options() {
		if opt.Value == "" {
			continue
		}
		text := opt.Text
		if text == "" {
			text = opt.Value
		}
		texts = append(texts, text)
	}
	return texts
}

// Fill applies the mapping to the document and returns the number of fields
// actually written. Selects match an option by visible text or value,
// exactly, and emit change; text-like fields are written through the native
// setter and emit input, change, blur in that order. Unmatched or missing
// fields are skipped.
func Fill(doc *dom.Document, mapping map[string]string) int {
	ids := make([]string, 0, len(mapping))
	for id := range mapping {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	count := 0
	for _, id := range ids {
		value := mapping[id]
		if value == "" {
			continue
		}

		el := doc.ByID(id)
		if el == nil {
			continue
		}

		if el.Tag() == "select" {
			if fillSelect(el, value) {
				count++
			}
			continue
		}

		el.SetValueNative(value)
		el.Dispatch(dom.EventInput)
		el.Dispatch(dom.EventChange)
		el.Dispatch(dom.EventBlur)
		count++
	}

	return count
}

func fillSelect(el *dom.Element, value string) bool {
	for _, opt := range el.Options() {
		if opt.Text == value || opt.Value == value {
			el.SelectOption(opt)
			el.Dispatch(dom.EventChange)
			return true
		}
	}
	return false
}
