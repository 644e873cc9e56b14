package notifications

import (
	"bytes"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/anonto42/micro-blog/backend/internal/events"
	"github.com/anonto42/micro-blog/backend/internal/models"
	"github.com/anonto42/micro-blog/backend/internal/realtime"
)

// fakeNotificationRepository is an in-memory NotificationRepository.
type fakeNotificationRepository struct {
	mu        sync.Mutex
	records   map[string]*models.Notification
	createErr error
}

func newFakeRepo() *fakeNotificationRepository {
	return &fakeNotificationRepository{records: make(map[string]*models.Notification)}
}

func (f *fakeNotificationRepository) CreateNotification(n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	cp := *n
	f.records[n.ID] = &cp
	return nil
}

func (f *fakeNotificationRepository) GetByID(id string) (*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.records[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *n
	return &cp, nil
}

func (f *fakeNotificationRepository) GetByRecipientID(recipientID uint, page, limit int) ([]models.Notification, int64, error) {
	all := f.byRecipient(recipientID, false)
	total := int64(len(all))
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (f *fakeNotificationRepository) GetUnreadByRecipientID(recipientID uint) ([]models.Notification, error) {
	return f.byRecipient(recipientID, true), nil
}

func (f *fakeNotificationRepository) GetUnreadCount(recipientID uint) (int64, error) {
	return int64(len(f.byRecipient(recipientID, true))), nil
}

func (f *fakeNotificationRepository) MarkAsRead(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.records[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	n.IsRead = true
	return nil
}

func (f *fakeNotificationRepository) MarkAllAsRead(recipientID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.records {
		if n.RecipientID == recipientID {
			n.IsRead = true
		}
	}
	return nil
}

func (f *fakeNotificationRepository) byRecipient(recipientID uint, unreadOnly bool) []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for _, n := range f.records {
		if n.RecipientID != recipientID {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeNotificationRepository, *realtime.Registry, *events.Bus) {
	t.Helper()
	repo := newFakeRepo()
	registry := realtime.NewRegistry(realtime.ChannelNotificationFeed, nil)
	coordinator := NewCoordinator(repo, registry, nil)
	bus := events.NewBus(nil)
	coordinator.RegisterHandlers(bus)
	return coordinator, repo, registry, bus
}

func TestCoordinatorLikePersistsAndPushes(t *testing.T) {
	t.Parallel()

	_, repo, registry, bus := newTestCoordinator(t)

	var stream bytes.Buffer
	registry.Register(realtime.UserKey(3), realtime.NewConnection(realtime.UserKey(3), realtime.ChannelNotificationFeed, &stream))

	bus.Publish(events.Liked{
		Actor: models.UserCompact{ID: 2, Username: "bob"},
		Post:  events.PostRef{ID: "p1", AuthorID: 3},
	})

	require.Len(t, repo.records, 1)
	for _, n := range repo.records {
		assert.Equal(t, models.NotificationLike, n.Type)
		assert.Equal(t, uint(2), n.ActorID)
		assert.Equal(t, "bob", n.ActorUsername)
		assert.Equal(t, uint(3), n.RecipientID)
		assert.Equal(t, "p1", n.PostID)
		assert.False(t, n.IsRead)
		assert.NotEmpty(t, n.ID)
	}

	frame := stream.String()
	assert.Contains(t, frame, "event: notification\n")
	assert.Contains(t, frame, `"type":"LIKE"`)
	assert.Contains(t, frame, `"actorUsername":"bob"`)
	assert.Contains(t, frame, `"isRead":false`)
}

func TestCoordinatorSelfActionProducesNothing(t *testing.T) {
	t.Parallel()

	_, repo, registry, bus := newTestCoordinator(t)

	var stream bytes.Buffer
	registry.Register(realtime.UserKey(2), realtime.NewConnection(realtime.UserKey(2), realtime.ChannelNotificationFeed, &stream))

	bus.Publish(events.Liked{
		Actor: models.UserCompact{ID: 2, Username: "bob"},
		Post:  events.PostRef{ID: "p1", AuthorID: 2},
	})
	bus.Publish(events.Followed{
		Follower:   models.UserCompact{ID: 2, Username: "bob"},
		FolloweeID: 2,
	})

	assert.Empty(t, repo.records)
	assert.Zero(t, stream.Len())
}

func TestCoordinatorPersistFailureSuppressesPush(t *testing.T) {
	t.Parallel()

	_, repo, registry, bus := newTestCoordinator(t)
	repo.createErr = errors.New("db down")

	var stream bytes.Buffer
	registry.Register(realtime.UserKey(3), realtime.NewConnection(realtime.UserKey(3), realtime.ChannelNotificationFeed, &stream))

	bus.Publish(events.Followed{
		Follower:   models.UserCompact{ID: 2, Username: "bob"},
		FolloweeID: 3,
	})

	assert.Empty(t, repo.records)
	assert.Zero(t, stream.Len())
}

func TestCoordinatorOfflineRecipientStillPersists(t *testing.T) {
	t.Parallel()

	_, repo, _, bus := newTestCoordinator(t)

	bus.Publish(events.Unfollowed{
		Follower:   models.UserCompact{ID: 2, Username: "bob"},
		FolloweeID: 3,
	})

	require.Len(t, repo.records, 1)
	for _, n := range repo.records {
		assert.Equal(t, models.NotificationUnfollow, n.Type)
		assert.Empty(t, n.PostID)
	}
}

func TestCoordinatorUnlikeNotification(t *testing.T) {
	t.Parallel()

	_, repo, _, bus := newTestCoordinator(t)

	bus.Publish(events.Unliked{
		Actor: models.UserCompact{ID: 5, Username: "carol"},
		Post:  events.PostRef{ID: "p9", AuthorID: 6},
	})

	require.Len(t, repo.records, 1)
	for _, n := range repo.records {
		assert.Equal(t, models.NotificationUnlike, n.Type)
		assert.Equal(t, "p9", n.PostID)
	}
}

func TestCoordinatorMarkAsRead(t *testing.T) {
	t.Parallel()

	coordinator, repo, _, bus := newTestCoordinator(t)

	bus.Publish(events.Liked{
		Actor: models.UserCompact{ID: 2, Username: "bob"},
		Post:  events.PostRef{ID: "p1", AuthorID: 3},
	})
	var id string
	for k := range repo.records {
		id = k
	}

	t.Run("not found", func(t *testing.T) {
		err := coordinator.MarkAsRead("missing", 3)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("wrong caller leaves record untouched", func(t *testing.T) {
		err := coordinator.MarkAsRead(id, 99)
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.False(t, repo.records[id].IsRead)
	})

	t.Run("recipient marks read", func(t *testing.T) {
		require.NoError(t, coordinator.MarkAsRead(id, 3))
		assert.True(t, repo.records[id].IsRead)
	})

	t.Run("already read is a no-op", func(t *testing.T) {
		require.NoError(t, coordinator.MarkAsRead(id, 3))
		assert.True(t, repo.records[id].IsRead)
	})
}

func TestCoordinatorMarkAllAsReadAndQueries(t *testing.T) {
	t.Parallel()

	coordinator, _, _, bus := newTestCoordinator(t)

	for i := 0; i < 3; i++ {
		bus.Publish(events.Followed{
			Follower:   models.UserCompact{ID: uint(10 + i), Username: "f"},
			FolloweeID: 3,
		})
	}
	bus.Publish(events.Followed{
		Follower:   models.UserCompact{ID: 20, Username: "g"},
		FolloweeID: 4,
	})

	count, err := coordinator.UnreadCount(3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	unread, err := coordinator.ListUnread(3)
	require.NoError(t, err)
	assert.Len(t, unread, 3)

	views, total, err := coordinator.List(3, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, views, 2)

	require.NoError(t, coordinator.MarkAllAsRead(3))

	count, err = coordinator.UnreadCount(3)
	require.NoError(t, err)
	assert.Zero(t, count)

	unread, err = coordinator.ListUnread(3)
	require.NoError(t, err)
	assert.Empty(t, unread)

	// The other recipient's notifications are unaffected.
	count, err = coordinator.UnreadCount(4)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
