// Package dom wraps a parsed HTML document with the mutation semantics the
// page scanner relies on: element lookup, visibility checks, value writes
// through either an installed accessor or the native path underneath it, and
// synthetic event dispatch to registered listeners.
//
// Reactive front-ends wrap an input's value accessor and re-render from
// their own state; a write that goes through the wrapper alone is either
// unseen or reset. The native path models the underlying platform setter
// those frameworks sit on top of.
package dom

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Event types dispatched by fills.
const (
	EventInput  = "input"
	EventChange = "change"
	EventBlur   = "blur"
)

// Event is one synthetic DOM notification.
type Event struct {
	TargetID string
	Type     string
}

// ValueSetter is an accessor a framework installs around an element's value.
type ValueSetter func(el *Element, value string)

// Listener observes synthetic events on one element.
type Listener func(ev Event)

// Document is a mutable, single-threaded view of one page.
type Document struct {
	doc *goquery.Document

	setters    map[string]ValueSetter
	listeners  map[string]map[string][]Listener
	dispatched []Event
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return &Document{
		doc:       doc,
		setters:   make(map[string]ValueSetter),
		listeners: make(map[string]map[string][]Listener),
	}, nil
}

// ParseString reads an HTML document from a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Html renders the current state of the document.
func (d *Document) Html() (string, error) {
	return d.doc.Html()
}

// Each walks elements matching the selector in document order.
func (d *Document) Each(selector string, fn func(el *Element)) {
	d.doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		fn(&Element{doc: d, sel: sel})
	})
}

// ByID returns the element with the given id, or nil.
func (d *Document) ByID(id string) *Element {
	if id == "" {
		return nil
	}

	var found *Element
	d.doc.Find("*").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if v, ok := sel.Attr("id"); ok && v == id {
			found = &Element{doc: d, sel: sel}
			return false
		}
		return true
	})

	return found
}

// LabelFor returns the text of an explicit <label for=id>, or "".
func (d *Document) LabelFor(id string) string {
	if id == "" {
		return ""
	}

	var text string
	d.doc.Find("label").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if v, ok := sel.Attr("for"); ok && v == id {
			text = strings.TrimSpace(sel.Text())
			return text == ""
		}
		return true
	})

	return text
}

// InstallValueSetter wraps the element's value accessor, the way a reactive
// framework does. Subsequent SetValue calls on that element go through the
// wrapper; SetValueNative does not.
func (d *Document) InstallValueSetter(id string, setter ValueSetter) {
	d.setters[id] = setter
}

// AddEventListener registers a listener for one event type on one element.
func (d *Document) AddEventListener(id, eventType string, l Listener) {
	byType, ok := d.listeners[id]
	if !ok {
		byType = make(map[string][]Listener)
		d.listeners[id] = byType
	}
	byType[eventType] = append(byType[eventType], l)
}

// Dispatched returns every synthetic event dispatched so far, in order.
func (d *Document) Dispatched() []Event {
	return d.dispatched
}

func (d *Document) dispatch(id, eventType string) {
	ev := Event{TargetID: id, Type: eventType}
	d.dispatched = append(d.dispatched, ev)

	for _, l := range d.listeners[id][eventType] {
		l(ev)
	}
}

// Element is a handle on one node of the document.
type Element struct {
	doc *Document
	sel *goquery.Selection
}

// Tag returns the lowercase tag name.
func (e *Element) Tag() string {
	return strings.ToLower(goquery.NodeName(e.sel))
}

// ID returns the element's id attribute, or "".
func (e *Element) ID() string {
	return e.Attr("id")
}

// SetID assigns the element's id attribute.
func (e *Element) SetID(id string) {
	e.sel.SetAttr("id", id)
}

// Attr returns the attribute's value, or "" when absent.
func (e *Element) Attr(name string) string {
	v, _ := e.sel.Attr(name)
	return v
}

// Type returns the input's type attribute, or the tag name for non-inputs.
// Inputs with no explicit type default to text.
func (e *Element) Type() string {
	if e.Tag() != "input" {
		return e.Tag()
	}
	if t := strings.ToLower(strings.TrimSpace(e.Attr("type"))); t != "" {
		return t
	}
	return "text"
}

// Text returns the element's trimmed text content.
func (e *Element) Text() string {
	return strings.TrimSpace(e.sel.Text())
}

// Rendered reports whether the element has a layout box: false when the
// element or any ancestor is hidden or styled display:none.
func (e *Element) Rendered() bool {
	for sel := e.sel; sel.Length() > 0; sel = sel.Parent() {
		if goquery.NodeName(sel) == "#document" {
			break
		}
		if _, hidden := sel.Attr("hidden"); hidden {
			return false
		}
		if style, ok := sel.Attr("style"); ok {
			if strings.Contains(strings.ReplaceAll(strings.ToLower(style), " ", ""), "display:none") {
				return false
			}
		}
	}
	return true
}

// Closest returns the nearest ancestor (or self) matching the selector, or nil.
func (e *Element) Closest(selector string) *Element {
	sel := e.sel.Closest(selector)
	if sel.Length() == 0 {
		return nil
	}
	return &Element{doc: e.doc, sel: sel}
}

// PrevSibling returns the immediately preceding sibling element, or nil.
func (e *Element) PrevSibling() *Element {
	sel := e.sel.Prev()
	if sel.Length() == 0 {
		return nil
	}
	return &Element{doc: e.doc, sel: sel}
}

// Option is one selectable entry of a select control.
type Option struct {
	Value string
	Text  string
}

// Options returns the element's <option> children in document order. Empty
// for non-select elements.
func (e *Element) Options() []Option {
	var opts []Option
	e.sel.Find("option").Each(func(_ int, sel *goquery.Selection) {
		value, _ := sel.Attr("value")
		opts = append(opts, Option{
			Value: value,
			Text:  strings.TrimSpace(sel.Text()),
		})
	})
	return opts
}

// Value returns the element's current value.
func (e *Element) Value() string {
	if e.Tag() == "textarea" {
		return e.sel.Text()
	}
	return e.Attr("value")
}

// SetValue writes the value through any installed accessor, falling back to
// the native path when none is installed.
func (e *Element) SetValue(value string) {
	if setter, ok := e.doc.setters[e.ID()]; ok {
		setter(e, value)
		return
	}
	e.SetValueNative(value)
}

// SetValueNative writes the value through the underlying node, bypassing any
// installed accessor.
func (e *Element) SetValueNative(value string) {
	if e.Tag() == "textarea" {
		e.sel.SetText(value)
		return
	}
	e.sel.SetAttr("value", value)
}

// SelectOption marks the option as selected and sets the select's value.
func (e *Element) SelectOption(opt Option) {
	e.sel.SetAttr("value", opt.Value)
	e.sel.Find("option").Each(func(_ int, sel *goquery.Selection) {
		v, _ := sel.Attr("value")
		if v == opt.Value && strings.TrimSpace(sel.Text()) == opt.Text {
			sel.SetAttr("selected", "selected")
		} else {
			sel.RemoveAttr("selected")
		}
	})
}

// Dispatch emits a synthetic event on this element.
func (e *Element) Dispatch(eventType string) {
	e.doc.dispatch(e.ID(), eventType)
}
