package recovery

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revahq/reva-widget/api"
	"github.com/revahq/reva-widget/store"
	"github.com/revahq/reva-widget/store/db/memory"
)

type fakeRecoveryAPI struct {
	calls atomic.Int32
	offer *api.RecoveryOffer
	err   *api.Error
}

func (f *fakeRecoveryAPI) CheckRecovery(ctx context.Context, sessionID string) (*api.RecoveryOffer, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.offer, nil
}

func activeOffer() *api.RecoveryOffer {
	checkout := "https://shop.example.com/checkout/abc?cart=1"
	return &api.RecoveryOffer{HasRecovery: true, CheckoutURL: &checkout}
}

func newPoller(f *fakeRecoveryAPI, chatOpen bool) (*Poller, *store.Store) {
	identity := store.New(memory.NewDB(), "store_1")
	p := New(Config{
		Client:   f,
		Identity: identity,
		ChatOpen: func() bool { return chatOpen },
	})
	return p, identity
}

func TestPoll_ShowsActiveOffer(t *testing.T) {
	f := &fakeRecoveryAPI{offer: activeOffer()}
	p, _ := newPoller(f, false)

	p.poll(context.Background())

	assert.True(t, p.Visible())
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestPoll_HidesWhenNoOffer(t *testing.T) {
	f := &fakeRecoveryAPI{offer: &api.RecoveryOffer{HasRecovery: false}}
	p, _ := newPoller(f, false)

	p.poll(context.Background())
	assert.False(t, p.Visible())
}

func TestPoll_HidesWithoutCheckoutURL(t *testing.T) {
	f := &fakeRecoveryAPI{offer: &api.RecoveryOffer{HasRecovery: true}}
	p, _ := newPoller(f, false)

	p.poll(context.Background())
	assert.False(t, p.Visible())
}

func TestPoll_NeverShowsOverOpenChat(t *testing.T) {
	f := &fakeRecoveryAPI{offer: activeOffer()}
	p, _ := newPoller(f, true)

	p.poll(context.Background())
	assert.False(t, p.Visible())
}

func TestPoll_ErrorHides(t *testing.T) {
	f := &fakeRecoveryAPI{err: &api.Error{Type: api.ErrorServer, Message: "boom", Retryable: true}}
	p, _ := newPoller(f, false)

	p.poll(context.Background())
	assert.False(t, p.Visible())
}

func TestPoll_FreshDismissalSkipsNetworkCall(t *testing.T) {
	f := &fakeRecoveryAPI{offer: activeOffer()}
	p, identity := newPoller(f, false)

	identity.SetRecoveryDismissed(context.Background())
	p.poll(context.Background())

	assert.Equal(t, int32(0), f.calls.Load(), "a dismissal under 24h old must suppress the network call")
	assert.False(t, p.Visible())
}

func TestDismiss_RecordsTimestampAndHides(t *testing.T) {
	f := &fakeRecoveryAPI{offer: activeOffer()}
	p, identity := newPoller(f, false)

	p.poll(context.Background())
	require.True(t, p.Visible())

	p.Dismiss(context.Background())

	assert.False(t, p.Visible())
	assert.False(t, identity.RecoveryDismissedAt(context.Background()).IsZero())
	// Identity is untouched by a dismissal.
	assert.NotEmpty(t, identity.SessionID(context.Background()))
}

func TestCheckoutURL_AppendsTracking(t *testing.T) {
	f := &fakeRecoveryAPI{offer: activeOffer()}
	p, identity := newPoller(f, false)

	assert.Empty(t, p.CheckoutURL(context.Background()), "no URL before an offer is shown")

	p.poll(context.Background())
	u := p.CheckoutURL(context.Background())

	assert.Contains(t, u, "utm_source=reva")
	assert.Contains(t, u, "utm_medium=recovery_popup")
	assert.Contains(t, u, "session_id="+identity.SessionID(context.Background()))
	assert.Contains(t, u, "cart=1", "existing query parameters survive")
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := &fakeRecoveryAPI{offer: &api.RecoveryOffer{}}
	identity := store.New(memory.NewDB(), "store_1")
	p := New(Config{
		Client:       f,
		Identity:     identity,
		ChatOpen:     func() bool { return false },
		InitialDelay: time.Millisecond,
		Interval:     5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return f.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancellation")
	}

	// No further polls after shutdown.
	settled := f.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, settled, f.calls.Load())
}

func TestRun_ShowAndHideCallbacks(t *testing.T) {
	f := &fakeRecoveryAPI{offer: activeOffer()}
	identity := store.New(memory.NewDB(), "store_1")

	var shows, hides atomic.Int32
	p := New(Config{
		Client:   f,
		Identity: identity,
		ChatOpen: func() bool { return false },
		OnShow:   func(api.RecoveryOffer) { shows.Add(1) },
		OnHide:   func() { hides.Add(1) },
	})

	p.poll(context.Background())
	p.poll(context.Background())
	assert.Equal(t, int32(1), shows.Load(), "repeat polls do not re-fire OnShow")

	p.Dismiss(context.Background())
	assert.Equal(t, int32(1), hides.Load())
}
