package coordinator

import (
	"context"
	"net/url"
	"strconv"

	"github.com/nostrvault/nostrvault/internal/vault/models"
)

// PromptKind distinguishes the two windows the coordinator drives.
type PromptKind string

const (
	PromptAuthorization PromptKind = "authorization"
	PromptUnlock        PromptKind = "unlock"
)

// Prompt describes a window shown to the user. QueueDepth is the number of
// further requests waiting behind this one, so the window can show a
// "1 of N" indicator.
type Prompt struct {
	ID         string
	Kind       PromptKind
	Host       string
	Method     models.Method
	EventKind  *int
	QueueDepth int
}

// URL renders the page the browser side should load for this prompt.
func (p Prompt) URL() string {
	v := url.Values{}
	v.Set("id", p.ID)
	if p.Kind == PromptUnlock {
		return "unlock.html?" + v.Encode()
	}
	v.Set("host", p.Host)
	v.Set("method", string(p.Method))
	if p.EventKind != nil {
		v.Set("kind", strconv.Itoa(*p.EventKind))
	}
	if p.QueueDepth > 0 {
		v.Set("queued", strconv.Itoa(p.QueueDepth))
	}
	return "prompt.html?" + v.Encode()
}

// WindowHandle represents an open prompt window.
type WindowHandle interface {
	// Close dismisses the window. Safe to call more than once.
	Close()
	// Closed is closed when the user dismisses the window without
	// responding.
	Closed() <-chan struct{}
}

// WindowOpener is the injected popup-creation API. Open must return
// promptly; the user's eventual response arrives through
// Coordinator.Resolve or Coordinator.Unlock, not through Open.
type WindowOpener interface {
	Open(ctx context.Context, p Prompt) (WindowHandle, error)
}
