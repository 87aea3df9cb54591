package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Scripter evaluates JavaScript in the page and returns the result as raw
// JSON. player, overlay and navwatch depend on this seam instead of Rod
// directly so their logic is testable against fakes.
type Scripter interface {
	Eval(ctx context.Context, js string, args ...any) (json.RawMessage, error)
}

// Tab wraps the Rod page vidmark follows.
type Tab struct {
	Page    *rod.Page
	PageURL string
	manager *Manager
}

// OpenTab creates a stealth tab and navigates it to the start URL.
func OpenTab(ctx context.Context, mgr *Manager, pageURL string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	return &Tab{Page: page, PageURL: pageURL, manager: mgr}, nil
}

// Eval implements Scripter.
func (t *Tab) Eval(ctx context.Context, js string, args ...any) (json.RawMessage, error) {
	res, err := t.Page.Context(ctx).Eval(js, args...)
	if err != nil {
		return nil, fmt.Errorf("browser: eval: %w", err)
	}
	return json.Marshal(res.Value)
}

// AddBinding installs a page→Go binding. Bindings survive navigations, so
// this runs once per tab.
func (t *Tab) AddBinding(name string) error {
	if err := (proto.RuntimeAddBinding{Name: name}).Call(t.Page); err != nil {
		return fmt.Errorf("browser: add binding %s: %w", name, err)
	}
	return nil
}

// EachLoadFired blocks, invoking fn with the page URL after every full
// document load, until ctx is cancelled. SPA transitions never fire it;
// they are reported by the in-page hooks instead.
func (t *Tab) EachLoadFired(ctx context.Context, fn func(url string)) {
	t.Page.Context(ctx).EachEvent(func(e *proto.PageLoadEventFired) {
		info, err := t.Page.Info()
		if err != nil {
			return
		}
		fn(info.URL)
	})()
}

// EachBindingCall blocks, invoking fn with the payload of every call to
// the named binding, until ctx is cancelled.
func (t *Tab) EachBindingCall(ctx context.Context, name string, fn func(payload string)) {
	t.Page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != name {
			return
		}
		fn(e.Payload)
	})()
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
