package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message type tags. The set is closed: a tag outside this list is a
// protocol version mismatch and decoding fails loudly.
const (
	TypeStartAutofill    = "START_AUTOFILL"
	TypeScanAndFill      = "SCAN_AND_FILL"
	TypeAutofillRequest  = "AUTOFILL_REQUEST"
	TypeAutofillResponse = "AUTOFILL_RESPONSE"
	TypeAutofillResult   = "AUTOFILL_RESULT"
)

var ErrUnknownMessage = errors.New("unknown message type")

// FormFieldDescriptor is a serializable snapshot of one discovered form field.
// A field with no discoverable label carries an empty label, never an absent one.
type FormFieldDescriptor struct {
	ID           string   `json:"id"`
	TagName      string   `json:"tagName"`
	Type         string   `json:"type"`
	Name         string   `json:"name"`
	Label        string   `json:"label"`
	Placeholder  string   `json:"placeholder"`
	Autocomplete string   `json:"autocomplete"`
	Options      []string `json:"options"`
}

// Panel → Coordinator.
type StartAutofill struct{}

// Coordinator → Scanner.
type ScanAndFill struct{}

// Scanner → Coordinator.
type AutofillRequest struct {
	Fields []FormFieldDescriptor `json:"fields"`
}

// Coordinator → Scanner. Mapping is field id → replacement value; a field
// absent from the mapping is left untouched.
type AutofillResponse struct {
	Mapping map[string]string `json:"mapping"`
}

// Scanner → Coordinator → Panel. Terminal outcome of one run.
type AutofillResult struct {
	Success     bool   `json:"success"`
	FilledCount int    `json:"filledCount"`
	Error       string `json:"error,omitempty"`
}

// Message is the closed union exchanged between the three contexts.
type Message interface {
	messageType() string
}

func (StartAutofill) messageType() string    { return TypeStartAutofill }
func (ScanAndFill) messageType() string      { return TypeScanAndFill }
func (AutofillRequest) messageType() string  { return TypeAutofillRequest }
func (AutofillResponse) messageType() string { return TypeAutofillResponse }
func (AutofillResult) messageType() string   { return TypeAutofillResult }

type envelope struct {
	Type string `json:"type"`

	Fields  []FormFieldDescriptor `json:"fields,omitempty"`
	Mapping map[string]string     `json:"mapping,omitempty"`

	Success     *bool  `json:"success,omitempty"`
	FilledCount *int   `json:"filledCount,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Encode serializes a message with its type discriminant.
func Encode(msg Message) ([]byte, error) {
	env := envelope{Type: msg.messageType()}

	switch m := msg.(type) {
	case StartAutofill, ScanAndFill:
	case AutofillRequest:
		env.Fields = m.Fields
	case AutofillResponse:
		env.Mapping = m.Mapping
	case AutofillResult:
		env.Success = &m.Success
		env.FilledCount = &m.FilledCount
		env.Error = m.Error
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
	}

	return json.Marshal(env)
}

// Decode deserializes a message, dispatching on the type discriminant.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	switch env.Type {
	case TypeStartAutofill:
		return StartAutofill{}, nil
	case TypeScanAndFill:
		return ScanAndFill{}, nil
	case TypeAutofillRequest:
		return AutofillRequest{Fields: env.Fields}, nil
	case TypeAutofillResponse:
		mapping := env.Mapping
		if mapping == nil {
			mapping = map[string]string{}
		}
		return AutofillResponse{Mapping: mapping}, nil
	case TypeAutofillResult:
		res := AutofillResult{Error: env.Error}
		if env.Success != nil {
			res.Success = *env.Success
		}
		if env.FilledCount != nil {
			res.FilledCount = *env.FilledCount
		}
		return res, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
}

// Failure builds a failed result with a human-readable message.
func Failure(format string, args ...any) AutofillResult {
	return AutofillResult{Success: false, FilledCount: 0, Error: fmt.Sprintf(format, args...)}
}
