package dom

import (
	"strings"
	"testing"
)

const fixture = `
<html><body>
  <label for="name">Full name</label>
  <input id="name" type="text" name="name">
  <div hidden>
    <input id="ghost" type="text">
  </div>
  <div style="display: none">
    <input id="styled-away" type="text">
  </div>
  <textarea id="bio" name="bio">old bio</textarea>
  <select id="country" name="country">
    <option value="">Choose one</option>
    <option value="br">Brazil</option>
    <option value="pt">Portugal</option>
  </select>
</body></html>`

func mustParse(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := ParseString(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestByID(t *testing.T) {
	doc := mustParse(t, fixture)

	if el := doc.ByID("name"); el == nil || el.Tag() != "input" {
		t.Fatalf("expected to find input#name, got %v", el)
	}

	if el := doc.ByID("missing"); el != nil {
		t.Fatal("expected nil for unknown id")
	}

	if el := doc.ByID(""); el != nil {
		t.Fatal("expected nil for empty id")
	}
}

func TestRendered(t *testing.T) {
	doc := mustParse(t, fixture)

	if !doc.ByID("name").Rendered() {
		t.Fatal("visible input reported as not rendered")
	}

	if doc.ByID("ghost").Rendered() {
		t.Fatal("input under hidden ancestor reported as rendered")
	}

	if doc.ByID("styled-away").Rendered() {
		t.Fatal("input under display:none ancestor reported as rendered")
	}
}

func TestTypeDefaultsToText(t *testing.T) {
	doc := mustParse(t, `<input id="plain">`)

	if got := doc.ByID("plain").Type(); got != "text" {
		t.Fatalf("expected text, got %q", got)
	}
}

func TestOptions(t *testing.T) {
	doc := mustParse(t, fixture)

	opts := doc.ByID("country").Options()
	if len(opts) != 3 {
		t.Fatalf("expected 3 options, got %d", len(opts))
	}

	if opts[0].Value != "" || opts[1].Text != "Brazil" || opts[2].Value != "pt" {
		t.Fatalf("unexpected options: %v", opts)
	}
}

func TestSetValueNative(t *testing.T) {
	doc := mustParse(t, fixture)

	doc.ByID("name").SetValueNative("Maria Silva")
	if got := doc.ByID("name").Value(); got != "Maria Silva" {
		t.Fatalf("unexpected input value: %q", got)
	}

	doc.ByID("bio").SetValueNative("new bio")
	if got := doc.ByID("bio").Value(); got != "new bio" {
		t.Fatalf("unexpected textarea value: %q", got)
	}
}

func TestSetValueGoesThroughInstalledSetter(t *testing.T) {
	doc := mustParse(t, fixture)

	var wrapped []string
	doc.InstallValueSetter("name", func(el *Element, value string) {
		wrapped = append(wrapped, value)
		// A framework wrapper that swallows the write entirely.
	})

	doc.ByID("name").SetValue("through wrapper")
	if len(wrapped) != 1 || wrapped[0] != "through wrapper" {
		t.Fatalf("wrapper not invoked: %v", wrapped)
	}
	if got := doc.ByID("name").Value(); got != "" {
		t.Fatalf("swallowed write still landed: %q", got)
	}

	doc.ByID("name").SetValueNative("around wrapper")
	if len(wrapped) != 1 {
		t.Fatal("native write went through the wrapper")
	}
	if got := doc.ByID("name").Value(); got != "around wrapper" {
		t.Fatalf("native write did not land: %q", got)
	}
}

func TestDispatchOrderAndListeners(t *testing.T) {
	doc := mustParse(t, fixture)

	var seen []string
	doc.AddEventListener("name", EventChange, func(ev Event) {
		seen = append(seen, ev.Type)
	})

	el := doc.ByID("name")
	el.Dispatch(EventInput)
	el.Dispatch(EventChange)
	el.Dispatch(EventBlur)

	events := doc.Dispatched()
	if len(events) != 3 {
		t.Fatalf("expected 3 dispatched events, got %d", len(events))
	}
	for i, expected := range []string{EventInput, EventChange, EventBlur} {
		if events[i].Type != expected || events[i].TargetID != "name" {
			t.Fatalf("unexpected event %d: %+v", i, events[i])
		}
	}

	if len(seen) != 1 || seen[0] != EventChange {
		t.Fatalf("listener saw %v, expected only change", seen)
	}
}

func TestSelectOption(t *testing.T) {
	doc := mustParse(t, fixture)

	el := doc.ByID("country")
	el.SelectOption(Option{Value: "br", Text: "Brazil"})

	if got := el.Value(); got != "br" {
		t.Fatalf("unexpected select value: %q", got)
	}

	rendered, err := doc.Html()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(rendered, `value="br"`) {
		t.Fatal("selected value not rendered")
	}
}

func TestLabelFor(t *testing.T) {
	doc := mustParse(t, fixture)

	if got := doc.LabelFor("name"); got != "Full name" {
		t.Fatalf("unexpected label: %q", got)
	}

	if got := doc.LabelFor("country"); got != "" {
		t.Fatalf("expected empty label, got %q", got)
	}
}
