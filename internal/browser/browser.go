// Package browser owns tab lifecycle: opening pages, tracking the active
// tab, and injecting the page scanner into a tab. Injection is asynchronous
// and the scanner's listener registration lags it by an unspecified amount,
// which is why delivery to a just-injected tab must be retried.
package browser

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dlemos/formfill/internal/bus"
	"github.com/dlemos/formfill/internal/dom"
	"github.com/dlemos/formfill/internal/scanner"
)

const (
	defaultUserAgent   = "formfill (+https://github.com/dlemos/formfill)"
	defaultHTTPTimeout = 10 * time.Second
)

var ErrNoActiveTab = errors.New("no active tab found")

// Tab is one open page. Globals is the page's global scope; the scanner uses
// it as the rendezvous for its re-injection guard.
type Tab struct {
	ID       int
	Location string
	Document *dom.Document

	mu      sync.Mutex
	globals map[string]any
}

// GetGlobal reads a key from the tab's global scope.
func (t *Tab) GetGlobal(key string) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.globals[key]
	return v, ok
}

// SetGlobal writes a key into the tab's global scope.
func (t *Tab) SetGlobal(key string, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.globals[key] = value
}

// Browser tracks open tabs and injects scanners into them.
type Browser struct {
	router *bus.Router
	logger *zap.Logger

	HTTPClient *http.Client
	UserAgent  string

	// InjectLag delays the scanner's listener registration after injection,
	// modelling the gap between script injection and listener setup.
	InjectLag time.Duration

	mu     sync.Mutex
	tabs   []*Tab
	active *Tab
	nextID int
}

func New(router *bus.Router, logger *zap.Logger) *Browser {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Browser{
		router: router,
		logger: logger,
		HTTPClient: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
		UserAgent: defaultUserAgent,
		nextID:    1,
	}
}

// OpenTab loads the target (an http(s) URL or a local file path), parses it,
// and makes the new tab the active one.
func (b *Browser) OpenTab(target string) (*Tab, error) {
	doc, err := b.loadDocument(target)
	if err != nil {
		return nil, err
	}

	return b.AddTab(target, doc), nil
}

// AddTab registers an already-parsed document as the new active tab.
func (b *Browser) AddTab(location string, doc *dom.Document) *Tab {
	b.mu.Lock()
	defer b.mu.Unlock()

	tab := &Tab{
		ID:       b.nextID,
		Location: location,
		Document: doc,
		globals:  make(map[string]any),
	}
	b.nextID++
	b.tabs = append(b.tabs, tab)
	b.active = tab

	b.logger.Debug("opened tab", zap.Int("tab_id", tab.ID), zap.String("location", location))

	return tab
}

// ActiveTab returns the currently focused tab.
func (b *Browser) ActiveTab() (*Tab, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.active == nil {
		return nil, ErrNoActiveTab
	}
	return b.active, nil
}

// Inject installs the page scanner into the tab. Registration happens on the
// tab's own context after the configured lag; the returned error covers only
// failures to start the injection.
func (b *Browser) Inject(tab *Tab) error {
	if tab == nil || tab.Document == nil {
		return errors.New("cannot inject into an empty tab")
	}

	lag := b.InjectLag
	endpoint := bus.TabEndpoint(tab.ID)
	logger := b.logger.With(zap.Int("tab_id", tab.ID))

	go func() {
		if lag > 0 {
			time.Sleep(lag)
		}
		scanner.Attach(b.router, endpoint, tab.Document, tab, logger)
		logger.Debug("scanner attached", zap.String("endpoint", endpoint))
	}()

	return nil
}

func (b *Browser) loadDocument(target string) (*dom.Document, error) {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return b.fetchDocument(target)
	}

	f, err := os.Open(target)
	if err != nil {
		return nil, fmt.Errorf("open page file: %w", err)
	}
	defer f.Close()

	return dom.Parse(f)
}

func (b *Browser) fetchDocument(url string) (*dom.Document, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", b.UserAgent)

	b.logger.Debug("fetching page", zap.String("url", url))

	resp, err := b.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch page: bad status: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read page body: %w", err)
	}

	return dom.ParseString(string(body))
}
