// Package gatewayboundary names the one external collaborator the core
// dispatch engine actually calls out to: the channel adapter that delivers
// a cron job's result text to a user outside the
// current conversation. Per §1 the HTTP/WebSocket gateway and channel
// adapters (Telegram, Discord, web chat, ...) are external collaborators
// represented only as named interfaces — this is that interface.
package gatewayboundary

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/nextlevelbuilder/clade/internal/clerr"
)

// OutboundMessage is the shape handed to a Deliverer: a channel name, a
// channel-specific target (chat id, user id, ...), and the text to send.
type OutboundMessage struct {
	Channel string
	Target  string
	Text    string
}

// Deliverer sends one OutboundMessage to an external channel. Real
// implementations (Telegram bot API, Discord webhook, web chat socket)
// live outside this repo; the core only holds this interface.
type Deliverer interface {
	Deliver(ctx context.Context, msg OutboundMessage) error
}

// Registry maps a channel name to the Deliverer that handles it. The Cron
// Scheduler (§4.10) dispatches through the Registry instance the Host
// constructs; the messaging tool server does not use it (it relays to
// other agents over IPC instead).
type Registry struct {
	mu   sync.RWMutex
	byCh map[string]Deliverer
}

// NewRegistry returns an empty Registry; channel adapters register
// themselves at host startup via Register.
func NewRegistry() *Registry {
	return &Registry{byCh: make(map[string]Deliverer)}
}

// Register binds name to d, replacing any prior registration.
func (r *Registry) Register(name string, d Deliverer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byCh[name] = d
}

// Deliver looks up the Deliverer for channel and forwards msg. Failure is
// a clerr.NotFound when no adapter is registered for the channel, or the
// adapter's own error otherwise — per §4.10, the caller logs and never
// fails the job on a delivery error.
func (r *Registry) Deliver(ctx context.Context, channel, target, text string) error {
	r.mu.RLock()
	d, ok := r.byCh[channel]
	r.mu.RUnlock()
	if !ok {
		return clerr.NotFoundf("no channel adapter registered for %q", channel)
	}
	return d.Deliver(ctx, OutboundMessage{Channel: channel, Target: target, Text: text})
}

// ParseDeliverTo splits a "<channel>:<target>" string per §4.10/CronJob's
// deliverTo field. ok is false when sep is absent or either half is empty.
func ParseDeliverTo(deliverTo string) (channel, target string, ok bool) {
	idx := strings.IndexByte(deliverTo, ':')
	if idx <= 0 || idx == len(deliverTo)-1 {
		return "", "", false
	}
	return deliverTo[:idx], deliverTo[idx+1:], true
}

// FormatDeliverTo is ParseDeliverTo's inverse, used by callers constructing
// a CronJob.DeliverTo value programmatically.
func FormatDeliverTo(channel, target string) string {
	return fmt.Sprintf("%s:%s", channel, target)
}
