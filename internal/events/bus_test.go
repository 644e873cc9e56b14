package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/micro-blog/backend/internal/models"
)

func TestBusPublishRunsHandlersInRegistrationOrder(t *testing.T) {
	t.Parallel()

	bus := NewBus(nil)
	var order []int
	bus.Subscribe(PostCreatedName, func(Event) { order = append(order, 1) })
	bus.Subscribe(PostCreatedName, func(Event) { order = append(order, 2) })
	bus.Subscribe(PostCreatedName, func(Event) { order = append(order, 3) })

	bus.Publish(PostCreated{})

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestBusPublishIsolatesPanickingHandler(t *testing.T) {
	t.Parallel()

	bus := NewBus(nil)
	var ran []string
	bus.Subscribe(LikedName, func(Event) { ran = append(ran, "first") })
	bus.Subscribe(LikedName, func(Event) { panic("boom") })
	bus.Subscribe(LikedName, func(Event) { ran = append(ran, "last") })

	require.NotPanics(t, func() {
		bus.Publish(Liked{Actor: models.UserCompact{ID: 1, Username: "alice"}})
	})
	assert.Equal(t, []string{"first", "last"}, ran)
}

func TestBusPublishOnlyMatchingName(t *testing.T) {
	t.Parallel()

	bus := NewBus(nil)
	var likes, follows int
	bus.Subscribe(LikedName, func(Event) { likes++ })
	bus.Subscribe(FollowedName, func(Event) { follows++ })

	bus.Publish(Followed{Follower: models.UserCompact{ID: 2, Username: "bob"}, FolloweeID: 3})

	assert.Zero(t, likes)
	assert.Equal(t, 1, follows)
}

func TestBusPublishNoHandlersIsNoop(t *testing.T) {
	t.Parallel()

	bus := NewBus(nil)
	require.NotPanics(t, func() {
		bus.Publish(Unliked{})
		bus.Publish(nil)
	})
}

func TestBusSubscribeNilHandlerIgnored(t *testing.T) {
	t.Parallel()

	bus := NewBus(nil)
	bus.Subscribe(UnfollowedName, nil)
	require.NotPanics(t, func() { bus.Publish(Unfollowed{}) })
}

func TestEventNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "post.created", PostCreated{}.Name())
	assert.Equal(t, "post.liked", Liked{}.Name())
	assert.Equal(t, "post.unliked", Unliked{}.Name())
	assert.Equal(t, "user.followed", Followed{}.Name())
	assert.Equal(t, "user.unfollowed", Unfollowed{}.Name())
}
