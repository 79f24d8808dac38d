// Package recovery polls the backend for abandoned-cart offers and drives
// the recovery popup. Polling is deliberate: the widget embeds in hosts
// with no inbound connectivity, so a pull on a tunable interval is the
// portable choice.
package recovery

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/revahq/reva-widget/api"
	"github.com/revahq/reva-widget/store"
)

// DismissalWindow is how long a dismissed popup stays suppressed. Within
// it, poll cycles skip the network call entirely.
const DismissalWindow = 24 * time.Hour

// RecoveryAPI is the slice of the API client the poller needs.
type RecoveryAPI interface {
	CheckRecovery(ctx context.Context, sessionID string) (*api.RecoveryOffer, error)
}

// PollCounter receives per-cycle telemetry. May be nil.
type PollCounter interface {
	CountRecoveryPoll(result string)
}

// Config wires a Poller.
type Config struct {
	Client   RecoveryAPI
	Identity *store.Store

	// ChatOpen reports whether the chat window is visible; the popup never
	// shows over an open chat. Required.
	ChatOpen func() bool

	// OnShow/OnHide drive the popup presentation. Either may be nil.
	OnShow func(offer api.RecoveryOffer)
	OnHide func()

	// InitialDelay before the first poll; Interval between polls.
	// Defaults: 5s and 30s.
	InitialDelay time.Duration
	Interval     time.Duration

	Counter PollCounter
}

// Poller periodically checks for a recovery offer. One Poller serves one
// widget instance; Run stops when its context is cancelled.
type Poller struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	visible bool
	offer   *api.RecoveryOffer
}

func New(cfg Config) *Poller {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 5 * time.Second
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &Poller{
		cfg:    cfg,
		logger: slog.Default().With("component", "recovery_poller"),
	}
}

// Run polls until ctx is done. The first check happens after the initial
// delay; the ticker is released on exit. In-flight checks complete but
// their outcome is discarded once ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(p.cfg.InitialDelay):
	}
	p.poll(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) count(result string) {
	if p.cfg.Counter != nil {
		p.cfg.Counter.CountRecoveryPoll(result)
	}
}

// poll runs one cycle: dismissal check first (no network while
// suppressed), then the backend call, then show/hide.
func (p *Poller) poll(ctx context.Context) {
	dismissedAt := p.cfg.Identity.RecoveryDismissedAt(ctx)
	if !dismissedAt.IsZero() && time.Since(dismissedAt) < DismissalWindow {
		p.count("skipped")
		p.hide()
		return
	}

	offer, err := p.cfg.Client.CheckRecovery(ctx, p.cfg.Identity.SessionID(ctx))
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		p.logger.Debug("recovery check failed", "error", err)
		p.count("error")
		p.hide()
		return
	}

	if offer.HasRecovery && offer.CheckoutURL != nil && *offer.CheckoutURL != "" && !p.cfg.ChatOpen() {
		p.count("shown")
		p.show(*offer)
		return
	}
	p.count("hidden")
	p.hide()
}

func (p *Poller) show(offer api.RecoveryOffer) {
	p.mu.Lock()
	wasVisible := p.visible
	p.visible = true
	p.offer = &offer
	p.mu.Unlock()

	if !wasVisible && p.cfg.OnShow != nil {
		p.cfg.OnShow(offer)
	}
}

func (p *Poller) hide() {
	p.mu.Lock()
	wasVisible := p.visible
	p.visible = false
	p.offer = nil
	p.mu.Unlock()

	if wasVisible && p.cfg.OnHide != nil {
		p.cfg.OnHide()
	}
}

// Visible reports whether the popup is currently shown.
func (p *Poller) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

// Dismiss hides the popup and records the suppression timestamp for this
// store. Session and conversation identity are untouched.
func (p *Poller) Dismiss(ctx context.Context) {
	p.cfg.Identity.SetRecoveryDismissed(ctx)
	p.hide()
}

// CheckoutURL returns the current offer's checkout URL with tracking
// parameters appended, or "" when no offer is visible. Proceeding to
// checkout counts as a dismissal; callers should follow up with Dismiss.
func (p *Poller) CheckoutURL(ctx context.Context) string {
	p.mu.Lock()
	offer := p.offer
	p.mu.Unlock()

	if offer == nil || offer.CheckoutURL == nil || *offer.CheckoutURL == "" {
		return ""
	}

	u, err := url.Parse(*offer.CheckoutURL)
	if err != nil {
		return *offer.CheckoutURL
	}
	q := u.Query()
	q.Set("utm_source", "reva")
	q.Set("utm_medium", "recovery_popup")
	q.Set("session_id", p.cfg.Identity.SessionID(ctx))
	u.RawQuery = q.Encode()
	return u.String()
}
