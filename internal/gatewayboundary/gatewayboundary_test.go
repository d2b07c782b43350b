package gatewayboundary

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/clade/internal/clerr"
)

type fakeDeliverer struct {
	msg OutboundMessage
	err error
}

func (f *fakeDeliverer) Deliver(ctx context.Context, msg OutboundMessage) error {
	f.msg = msg
	return f.err
}

func TestDeliverRoutesToRegisteredChannel(t *testing.T) {
	r := NewRegistry()
	d := &fakeDeliverer{}
	r.Register("webchat", d)

	err := r.Deliver(context.Background(), "webchat", "user-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, OutboundMessage{Channel: "webchat", Target: "user-1", Text: "hello"}, d.msg)
}

func TestDeliverUnknownChannelIsNotFound(t *testing.T) {
	r := NewRegistry()
	err := r.Deliver(context.Background(), "telegram", "u1", "hi")
	assert.Equal(t, clerr.NotFound, clerr.KindOf(err))
}

func TestDeliverPropagatesAdapterError(t *testing.T) {
	r := NewRegistry()
	d := &fakeDeliverer{err: assertErr}
	r.Register("webchat", d)

	err := r.Deliver(context.Background(), "webchat", "u1", "hi")
	assert.ErrorIs(t, err, assertErr)
}

func TestRegisterReplacesPriorRegistration(t *testing.T) {
	r := NewRegistry()
	first := &fakeDeliverer{}
	second := &fakeDeliverer{}
	r.Register("webchat", first)
	r.Register("webchat", second)

	require.NoError(t, r.Deliver(context.Background(), "webchat", "u1", "hi"))
	assert.Equal(t, "hi", second.msg.Text)
	assert.Empty(t, first.msg.Text)
}

func TestParseDeliverToSplitsChannelAndTarget(t *testing.T) {
	channel, target, ok := ParseDeliverTo("webchat:user-1")
	require.True(t, ok)
	assert.Equal(t, "webchat", channel)
	assert.Equal(t, "user-1", target)
}

func TestParseDeliverToRejectsMissingSeparator(t *testing.T) {
	_, _, ok := ParseDeliverTo("webchat")
	assert.False(t, ok)
}

func TestParseDeliverToRejectsEmptyChannelOrTarget(t *testing.T) {
	_, _, ok := ParseDeliverTo(":user-1")
	assert.False(t, ok)

	_, _, ok = ParseDeliverTo("webchat:")
	assert.False(t, ok)
}

func TestFormatDeliverToIsParseInverse(t *testing.T) {
	formatted := FormatDeliverTo("webchat", "user-1")
	channel, target, ok := ParseDeliverTo(formatted)
	require.True(t, ok)
	assert.Equal(t, "webchat", channel)
	assert.Equal(t, "user-1", target)
}

var assertErr = context.DeadlineExceeded
