// Package widget implements the chat session controller: the state
// machine behind the conversation UI of one embedded widget instance.
package widget

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/revahq/reva-widget/api"
	"github.com/revahq/reva-widget/markdown"
	"github.com/revahq/reva-widget/pagectx"
	"github.com/revahq/reva-widget/store"
)

// State is the controller's UI-visible state.
type State int

const (
	StateIdle State = iota
	StateSending
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the visible thread. User messages carry plain
// text only; assistant messages additionally carry sanitized HTML.
type Message struct {
	ID      string
	Role    string
	Content string
	HTML    string
	// CitationsHTML renders Sources as a list of links; anchors open in a
	// new tab like all rendered links.
	CitationsHTML string
	Sources       []api.SourceReference
	Products      []api.Product
	Streaming     bool
}

// renderCitations turns source references into a sanitized HTML list.
// Sources without a URL render as plain titles.
func renderCitations(sources []api.SourceReference) string {
	if len(sources) == 0 {
		return ""
	}
	var b strings.Builder
	for _, s := range sources {
		title := s.Title
		if title == "" {
			title = "Source"
		}
		if s.URL != nil && *s.URL != "" {
			fmt.Fprintf(&b, "- [%s](%s)\n", title, *s.URL)
		} else {
			fmt.Fprintf(&b, "- %s\n", title)
		}
	}
	return markdown.Render(b.String())
}

// UIError is the inline error element's model.
type UIError struct {
	Message   string
	Retryable bool
}

// Snapshot is an immutable view of the controller handed to listeners.
type Snapshot struct {
	State    State
	Messages []Message
	Input    string
	Err      *UIError
	Open     bool
}

// ChatAPI is the slice of the API client the controller needs.
type ChatAPI interface {
	SendMessage(ctx context.Context, req api.SendMessageRequest) (*api.SendMessageResponse, error)
	GetConversation(ctx context.Context, conversationID string) (*api.Conversation, error)
}

// MessageCounter receives per-message telemetry. May be nil.
type MessageCounter interface {
	CountMessage(role string)
}

// ContextProvider recomputes the page context; called on every send,
// never cached.
type ContextProvider func() pagectx.PageContext

// Controller orchestrates message send/receive for one widget instance.
// At most one send is in flight at a time; a submit while sending is a
// no-op. All exported methods are safe for concurrent use.
type Controller struct {
	client   ChatAPI
	identity *store.Store
	pageCtx  ContextProvider
	counter  MessageCounter
	logger   *slog.Logger

	mu       sync.Mutex
	state    State
	messages []Message
	input    string
	errState *UIError
	open     bool
	// generation invalidates in-flight sends when the thread is reset:
	// their results complete but are discarded.
	generation int
	onChange   func(Snapshot)
}

// New creates a controller. pageCtx must not be nil; counter may be nil.
func New(client ChatAPI, identity *store.Store, pageCtx ContextProvider, counter MessageCounter) *Controller {
	return &Controller{
		client:   client,
		identity: identity,
		pageCtx:  pageCtx,
		counter:  counter,
		logger:   slog.Default().With("component", "chat_controller"),
	}
}

// OnChange registers the single listener notified after every state
// change. The listener runs outside the controller lock.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *Controller) snapshotLocked() Snapshot {
	msgs := make([]Message, len(c.messages))
	copy(msgs, c.messages)
	var errCopy *UIError
	if c.errState != nil {
		e := *c.errState
		errCopy = &e
	}
	return Snapshot{
		State:    c.state,
		Messages: msgs,
		Input:    c.input,
		Err:      errCopy,
		Open:     c.open,
	}
}

func (c *Controller) notifyLocked() (func(), Snapshot) {
	snap := c.snapshotLocked()
	fn := c.onChange
	if fn == nil {
		return func() {}, snap
	}
	return func() { fn(snap) }, snap
}

// Snapshot returns the current view of the controller.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// SetInput replaces the pending input text.
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	c.input = text
	notify, _ := c.notifyLocked()
	c.mu.Unlock()
	notify()
}

// Open marks the chat window visible. The recovery popup defers to an
// open chat.
func (c *Controller) Open() {
	c.setOpen(true)
}

// Close marks the chat window hidden.
func (c *Controller) Close() {
	c.setOpen(false)
}

func (c *Controller) setOpen(open bool) {
	c.mu.Lock()
	c.open = open
	notify, _ := c.notifyLocked()
	c.mu.Unlock()
	notify()
}

// IsOpen reports whether the chat window is visible.
func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Submit sends the pending input. The user message is appended
// immediately and never rolled back; the input clears at once. Returns
// false without side effects when the trimmed input is empty or a send is
// already in flight. The call blocks until the exchange finishes; hosts
// drive it from their own event goroutine.
func (c *Controller) Submit(ctx context.Context) bool {
	c.mu.Lock()
	text := strings.TrimSpace(c.input)
	if text == "" || c.state == StateSending {
		c.mu.Unlock()
		return false
	}

	c.messages = append(c.messages, Message{
		ID:      uuid.NewString(),
		Role:    RoleUser,
		Content: text,
	})
	c.input = ""
	c.errState = nil
	c.state = StateSending
	generation := c.generation
	notify, _ := c.notifyLocked()
	c.mu.Unlock()
	notify()

	if c.counter != nil {
		c.counter.CountMessage(RoleUser)
	}

	conversationID := c.identity.ConversationID(ctx)
	resp, err := c.client.SendMessage(ctx, api.SendMessageRequest{
		ConversationID: conversationID,
		Message:        text,
		SessionID:      c.identity.SessionID(ctx),
		Context:        c.pageCtx(),
	})

	c.mu.Lock()
	if c.generation != generation {
		// The thread was reset while the request was in flight; drop the
		// result, whatever it was.
		if c.state == StateSending {
			c.state = StateIdle
		}
		c.mu.Unlock()
		return true
	}

	if err != nil {
		uiErr := &UIError{Message: err.Error(), Retryable: false}
		if apiErr, ok := err.(*api.Error); ok {
			uiErr.Message = apiErr.Message
			uiErr.Retryable = apiErr.Retryable
		}
		c.state = StateError
		c.errState = uiErr
		notify, _ := c.notifyLocked()
		c.mu.Unlock()
		notify()
		return true
	}

	if conversationID == "" && resp.ConversationID != "" {
		c.identity.SetConversationID(ctx, resp.ConversationID)
	}

	c.messages = append(c.messages, Message{
		ID:            resp.MessageID,
		Role:          RoleAssistant,
		Content:       resp.Response,
		HTML:          markdown.Render(resp.Response),
		CitationsHTML: renderCitations(resp.Sources),
		Sources:       resp.Sources,
		Products:      resp.Products,
	})
	c.state = StateIdle
	notify, _ = c.notifyLocked()
	c.mu.Unlock()
	notify()

	if c.counter != nil {
		c.counter.CountMessage(RoleAssistant)
	}
	return true
}

// Send is a convenience for SetInput followed by Submit.
func (c *Controller) Send(ctx context.Context, text string) bool {
	c.SetInput(text)
	return c.Submit(ctx)
}

// Retry re-submits after a retryable failure: the most recent user
// message's text moves back into the input and the message leaves the
// thread so the re-attempt does not show twice. A no-op unless the
// controller is in a retryable error state.
func (c *Controller) Retry(ctx context.Context) bool {
	c.mu.Lock()
	if c.state != StateError || c.errState == nil || !c.errState.Retryable {
		c.mu.Unlock()
		return false
	}

	restored := false
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == RoleUser {
			c.input = c.messages[i].Content
			c.messages = append(c.messages[:i], c.messages[i+1:]...)
			restored = true
			break
		}
	}
	c.errState = nil
	c.state = StateIdle
	c.mu.Unlock()

	if !restored {
		return false
	}
	return c.Submit(ctx)
}

// NewConversation clears the visible thread and the cached conversation
// id. The session id stays; the next send starts a fresh backend thread.
func (c *Controller) NewConversation(ctx context.Context) {
	c.mu.Lock()
	c.messages = nil
	c.errState = nil
	c.state = StateIdle
	c.input = ""
	c.generation++
	notify, _ := c.notifyLocked()
	c.mu.Unlock()
	notify()

	c.identity.ClearConversation(ctx)
}

// LoadHistory refetches the cached conversation, replacing the visible
// thread. Silently keeps the current thread when no conversation is
// cached or the fetch fails: history is a convenience, not a requirement.
func (c *Controller) LoadHistory(ctx context.Context) {
	conversationID := c.identity.ConversationID(ctx)
	if conversationID == "" {
		return
	}

	conv, err := c.client.GetConversation(ctx, conversationID)
	if err != nil {
		c.logger.Warn("conversation history fetch failed", "error", err)
		return
	}

	msgs := make([]Message, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		msg := Message{
			ID:       m.ID,
			Role:     m.Role,
			Content:  m.Content,
			Sources:  m.Sources,
			Products: m.Products,
		}
		if m.Role == RoleAssistant {
			msg.HTML = markdown.Render(m.Content)
			msg.CitationsHTML = renderCitations(m.Sources)
		}
		msgs = append(msgs, msg)
	}

	c.mu.Lock()
	if c.state == StateSending {
		// Do not clobber an in-flight exchange.
		c.mu.Unlock()
		return
	}
	c.messages = msgs
	notify, _ := c.notifyLocked()
	c.mu.Unlock()
	notify()
}
