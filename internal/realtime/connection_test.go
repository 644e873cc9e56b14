package realtime

import (
	"bytes"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestConnectionSendFraming(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	conn := NewConnection("42", ChannelNotificationFeed, &buf)

	err := conn.Send(Message{Event: EventNotification, Data: map[string]string{"type": "LIKE"}})
	require.NoError(t, err)

	frame := buf.String()
	assert.Regexp(t, regexp.MustCompile(`^event: notification\nid: \d+\ndata: \{"type":"LIKE"\}\n\n$`), frame)
}

func TestConnectionSendAfterClose(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	conn := NewConnection("42", ChannelPublicFeed, &buf)
	conn.Close()

	err := conn.Send(Message{Event: EventPing, Data: PingPayload{Status: "ok"}})
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.Zero(t, buf.Len())
}

func TestConnectionSendPropagatesWriteError(t *testing.T) {
	t.Parallel()

	conn := NewConnection("42", ChannelPublicFeed, failingWriter{})
	err := conn.Send(Message{Event: EventPing, Data: PingPayload{Status: "ok"}})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConnectionClosed)
}

func TestConnectionSendUnmarshalableData(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	conn := NewConnection("42", ChannelPublicFeed, &buf)
	err := conn.Send(Message{Event: EventPing, Data: func() {}})
	require.Error(t, err)
	assert.Zero(t, buf.Len())
}

func TestConnectionCloseIdempotentAndSignalsDone(t *testing.T) {
	t.Parallel()

	var teardowns int
	conn := NewConnection("42", ChannelFollowerFeed, &bytes.Buffer{})
	conn.bindTeardown(func() { teardowns++ })

	select {
	case <-conn.Done():
		t.Fatal("done closed before Close")
	default:
	}

	conn.Close()
	conn.Close()
	conn.Close()

	select {
	case <-conn.Done():
	default:
		t.Fatal("done not closed after Close")
	}
	assert.Equal(t, 1, teardowns)
}

func TestUserKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "7", UserKey(7))
	assert.Equal(t, "0", UserKey(0))
}
