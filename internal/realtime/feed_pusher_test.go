package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/micro-blog/backend/internal/events"
	"github.com/anonto42/micro-blog/backend/internal/models"
)

type fakeFollowerResolver struct {
	followers map[uint][]models.User
	err       error
}

func (f *fakeFollowerResolver) GetFollowers(userID uint) ([]models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.followers[userID], nil
}

func newPostCreated() events.PostCreated {
	return events.PostCreated{
		Post: events.PostRef{
			ID:        "66f0c7",
			Content:   "hello world",
			AuthorID:  1,
			CreatedAt: time.Now(),
		},
		Author: models.UserCompact{ID: 1, Username: "alice"},
	}
}

// decodeFrame extracts the JSON body of the first SSE frame in buf.
func decodeFrame(t *testing.T, buf *bytes.Buffer, into any) {
	t.Helper()
	for _, line := range strings.Split(buf.String(), "\n") {
		if rest, ok := strings.CutPrefix(line, "data: "); ok {
			require.NoError(t, json.Unmarshal([]byte(rest), into))
			return
		}
	}
	t.Fatalf("no data line in frame: %q", buf.String())
}

func TestFeedPusherBroadcastsToPublicFeed(t *testing.T) {
	t.Parallel()

	public := NewRegistry(ChannelPublicFeed, nil)
	following := NewRegistry(ChannelFollowerFeed, nil)
	resolver := &fakeFollowerResolver{}

	var anon1, anon2 bytes.Buffer
	public.Register("anon-a", NewConnection("anon-a", ChannelPublicFeed, &anon1))
	public.Register("anon-b", NewConnection("anon-b", ChannelPublicFeed, &anon2))

	bus := events.NewBus(nil)
	NewFeedPusher(public, following, resolver, nil).RegisterHandlers(bus)
	bus.Publish(newPostCreated())

	for _, buf := range []*bytes.Buffer{&anon1, &anon2} {
		assert.Contains(t, buf.String(), "event: NEW_POST\n")
		var payload NewPostPayload
		decodeFrame(t, buf, &payload)
		assert.Equal(t, EventNewPost, payload.Type)
		assert.Equal(t, "66f0c7", payload.Post.ID)
		assert.Equal(t, "hello world", payload.Post.Content)
		assert.Equal(t, ActorPayload{ID: 1, Username: "alice"}, payload.Post.Author)
	}
}

func TestFeedPusherTargetsConnectedFollowers(t *testing.T) {
	t.Parallel()

	public := NewRegistry(ChannelPublicFeed, nil)
	following := NewRegistry(ChannelFollowerFeed, nil)
	resolver := &fakeFollowerResolver{followers: map[uint][]models.User{
		1: {{ID: 2}, {ID: 3}, {ID: 4}},
	}}

	// Only followers 2 and 4 are online; 3 is silently skipped.
	var feed2, feed4 bytes.Buffer
	following.Register(UserKey(2), NewConnection(UserKey(2), ChannelFollowerFeed, &feed2))
	following.Register(UserKey(4), NewConnection(UserKey(4), ChannelFollowerFeed, &feed4))

	bus := events.NewBus(nil)
	NewFeedPusher(public, following, resolver, nil).RegisterHandlers(bus)
	bus.Publish(newPostCreated())

	assert.Contains(t, feed2.String(), "event: following-feed\n")
	assert.Contains(t, feed4.String(), "event: following-feed\n")

	var payload NewPostPayload
	decodeFrame(t, &feed2, &payload)
	assert.Equal(t, "66f0c7", payload.Post.ID)
}

func TestFeedPusherResolverErrorSkipsFollowerFanout(t *testing.T) {
	t.Parallel()

	public := NewRegistry(ChannelPublicFeed, nil)
	following := NewRegistry(ChannelFollowerFeed, nil)
	resolver := &fakeFollowerResolver{err: errors.New("db down")}

	var pub, fol bytes.Buffer
	public.Register("anon-a", NewConnection("anon-a", ChannelPublicFeed, &pub))
	following.Register(UserKey(2), NewConnection(UserKey(2), ChannelFollowerFeed, &fol))

	bus := events.NewBus(nil)
	NewFeedPusher(public, following, resolver, nil).RegisterHandlers(bus)
	bus.Publish(newPostCreated())

	// Public broadcast already happened; the follower leg is dropped.
	assert.Contains(t, pub.String(), "event: NEW_POST\n")
	assert.Zero(t, fol.Len())
}

func TestFeedPusherNoFollowersIsSilent(t *testing.T) {
	t.Parallel()

	public := NewRegistry(ChannelPublicFeed, nil)
	following := NewRegistry(ChannelFollowerFeed, nil)
	bus := events.NewBus(nil)
	NewFeedPusher(public, following, &fakeFollowerResolver{}, nil).RegisterHandlers(bus)

	require.NotPanics(t, func() { bus.Publish(newPostCreated()) })
}
