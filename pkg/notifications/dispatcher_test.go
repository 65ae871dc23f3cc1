package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStorage for testing Dispatcher
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) InsertMany(ctx context.Context, records []Notification) ([]Notification, error) {
	args := m.Called(ctx, records)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	if fn, ok := args.Get(0).(func([]Notification) []Notification); ok {
		return fn(records), args.Error(1)
	}
	return args.Get(0).([]Notification), args.Error(1)
}

func (m *MockStorage) UpdateDeliveryStatus(ctx context.Context, status DeliveryStatus, ids ...string) error {
	args := m.Called(ctx, status, ids)
	return args.Error(0)
}

func (m *MockStorage) Get(ctx context.Context, id string) (*Notification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Notification), args.Error(1)
}

func (m *MockStorage) List(ctx context.Context, r Recipient, opts ListOptions) ([]Notification, error) {
	args := m.Called(ctx, r, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Notification), args.Error(1)
}

func (m *MockStorage) CountUnread(ctx context.Context, r Recipient) (int, error) {
	args := m.Called(ctx, r)
	return args.Int(0), args.Error(1)
}

func (m *MockStorage) MarkRead(ctx context.Context, r Recipient, ids ...string) error {
	args := m.Called(ctx, r, ids)
	return args.Error(0)
}

func (m *MockStorage) MarkAllRead(ctx context.Context, r Recipient) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func orderMessage(status string, prio Priority, chs ...Channel) Message {
	return Message{
		Event:    Event{Type: EventOrderUpdate, Status: status},
		Title:    "Order " + status,
		Body:     "Your order is " + status,
		Priority: prio,
		Channels: chs,
		Metadata: map[string]any{"order_id": "O1"},
	}
}

func TestDispatcher_SingleBatchInsert(t *testing.T) {
	t.Parallel()

	store := new(MockStorage)
	recipients := []Recipient{Customer("c1"), Customer("c2"), Volunteer("v1")}

	store.On("InsertMany", mock.Anything, mock.MatchedBy(func(rs []Notification) bool {
		if len(rs) != 3 {
			return false
		}
		for _, r := range rs {
			if r.DeliveryStatus != DeliveryPending || r.ID == "" {
				return false
			}
		}
		return true
	})).Return(func(rs []Notification) []Notification { return rs }, nil).Once()
	store.On("UpdateDeliveryStatus", mock.Anything, DeliverySent, mock.MatchedBy(func(ids []string) bool { return len(ids) == 3 })).Return(nil).Once()

	d := NewDispatcher(store, NewGate(nil))
	res, err := d.Dispatch(context.Background(), recipients, orderMessage(StatusPreparing, PriorityMedium))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Created)
	assert.Zero(t, res.Failed)

	for _, n := range res.Notifications {
		assert.Equal(t, DeliveryPending, n.DeliveryStatus)
		assert.Equal(t, CategoryOrder, n.Category)
		assert.Equal(t, "O1", n.Metadata["order_id"])
	}
	store.AssertExpectations(t)
}

func TestDispatcher_StoreFailurePropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	store := NewMemoryStorage()
	store.FailInsert = boom
	pool := &collectingPool{}
	d := NewDispatcher(store, nil,
		WithChannelSender(newFuncSender(ChannelEmail, nil)),
		WithSendPool(pool))

	res, err := d.Dispatch(context.Background(),
		[]Recipient{Customer("c1").WithEmail("c1@example.com")},
		orderMessage(StatusConfirmed, PriorityHigh, ChannelInApp, ChannelEmail))
	require.ErrorIs(t, err, ErrStoreInsert)
	require.ErrorIs(t, err, boom)
	assert.Zero(t, res.Created)
	assert.Empty(t, pool.Tasks(), "no channel attempt without a persisted record")
}

func TestDispatcher_InvalidMessage(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(NewMemoryStorage(), nil)
	_, err := d.Dispatch(context.Background(), []Recipient{Customer("c1")}, Message{Event: Event{Type: EventOrderCreated}, Priority: PriorityLow})
	require.ErrorIs(t, err, ErrInvalidMessage)

	_, err = d.Dispatch(context.Background(), []Recipient{Customer("c1")}, Message{Event: Event{Type: EventOrderCreated}, Title: "x"})
	require.ErrorIs(t, err, ErrInvalidMessage)
}

func TestDispatcher_EmptyRecipients(t *testing.T) {
	t.Parallel()

	store := &countingStore{MemoryStorage: NewMemoryStorage()}
	d := NewDispatcher(store, nil)
	res, err := d.Dispatch(context.Background(), nil, orderMessage(StatusConfirmed, PriorityHigh))
	require.NoError(t, err)
	assert.Zero(t, res.Created)
	assert.Zero(t, store.Inserts())
}

func TestDispatcher_ChannelFailureIsolation(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	pool := NewSendPool(store, WithWorkers(2), WithRate(0))
	pool.Start()

	sender := newFuncSender(ChannelEmail, func(_ context.Context, d Delivery) error {
		if d.Recipient.ID == "c2" {
			return errors.New("mailbox unavailable")
		}
		return nil
	})
	d := NewDispatcher(store, NewGate(NewMemoryDirectory()),
		WithChannelSender(sender),
		WithSendPool(pool))

	res, err := d.Dispatch(context.Background(), []Recipient{
		Customer("c1").WithEmail("c1@example.com"),
		Customer("c2").WithEmail("c2@example.com"),
		Customer("c3").WithEmail("c3@example.com"),
	}, orderMessage(StatusConfirmed, PriorityHigh, ChannelInApp, ChannelEmail))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Created)
	require.NoError(t, pool.Stop(context.Background()))

	byRecipient := map[string]Notification{}
	for _, n := range store.All() {
		byRecipient[n.RecipientID] = n
		assert.Equal(t, []Channel{ChannelInApp, ChannelEmail}, n.Channels)
	}
	assert.Equal(t, DeliverySent, byRecipient["c1"].DeliveryStatus)
	assert.Equal(t, DeliveryFailed, byRecipient["c2"].DeliveryStatus)
	assert.Equal(t, DeliverySent, byRecipient["c3"].DeliveryStatus)
	assert.Len(t, sender.Calls(), 3)
}

func TestDispatcher_PublicAndAdminBypassGate(t *testing.T) {
	t.Parallel()

	dir := NewMemoryDirectory()
	dir.Err = errors.New("preference store must not be consulted")
	store := NewMemoryStorage()
	pool := &collectingPool{}
	d := NewDispatcher(store, NewGate(dir),
		WithChannelSender(newFuncSender(ChannelEmail, nil)),
		WithSendPool(pool))

	res, err := d.Dispatch(context.Background(),
		[]Recipient{Public(), Admin("a1").WithEmail("ops@example.com")},
		Message{
			Event:    Event{Type: EventSystemAnnouncement},
			Title:    "Maintenance",
			Priority: PriorityMedium,
			Channels: []Channel{ChannelInApp, ChannelEmail},
		})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)

	for _, n := range store.All() {
		switch n.RecipientRole {
		case RolePublic:
			assert.Equal(t, []Channel{ChannelInApp}, n.Channels)
			assert.Equal(t, DeliverySent, n.DeliveryStatus)
		case RoleAdmin:
			assert.Equal(t, []Channel{ChannelInApp, ChannelEmail}, n.Channels)
			assert.Equal(t, DeliveryPending, n.DeliveryStatus)
		}
	}
	require.Len(t, pool.Tasks(), 1)
	assert.Equal(t, "a1", pool.Tasks()[0].Delivery.Recipient.ID)
}

func TestDispatcher_Suppression(t *testing.T) {
	t.Parallel()

	dir := NewMemoryDirectory().
		SetPreferences("c2", RoleCustomer, Preferences{PushNotifications: Bool(false)}).
		SetPreferences("c3", RoleCustomer, Preferences{EmailNotifications: Bool(false)})
	store := NewMemoryStorage()
	pool := &collectingPool{}
	d := NewDispatcher(store, NewGate(dir),
		WithChannelSender(newFuncSender(ChannelEmail, nil)),
		WithSendPool(pool))
	ctx := context.Background()
	c2 := Customer("c2").WithEmail("c2@example.com")
	c3 := Customer("c3").WithEmail("c3@example.com")

	res, err := d.Dispatch(ctx, []Recipient{c2, c3}, orderMessage(StatusConfirmed, PriorityHigh, ChannelInApp, ChannelEmail))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Suppressed)
	assert.Empty(t, pool.Tasks(), "email opted out")

	list, err := store.List(ctx, Customer("c2"), ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list)

	res, err = d.Dispatch(ctx, []Recipient{c2}, Message{
		Event:    Event{Type: EventPaymentFailed},
		Title:    "Payment failed",
		Priority: PriorityCritical,
		Channels: []Channel{ChannelInApp, ChannelEmail},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Len(t, pool.Tasks(), 1)
}

func TestDispatcher_UnconfiguredEmailDegradesToInApp(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	pool := &collectingPool{}
	d := NewDispatcher(store, nil,
		WithChannelSender(NewEmailChannel(nil)),
		WithSendPool(pool))

	res, err := d.Dispatch(context.Background(),
		[]Recipient{Customer("c1").WithEmail("c1@example.com"), Customer("c2")},
		orderMessage(StatusConfirmed, PriorityHigh, ChannelInApp, ChannelEmail, ChannelSMS))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Zero(t, res.Failed)
	assert.Empty(t, pool.Tasks())

	for _, n := range store.All() {
		assert.Equal(t, []Channel{ChannelInApp}, n.Channels)
		assert.Equal(t, DeliverySent, n.DeliveryStatus)
	}
}

func TestDispatcher_RejectedSubmitMarksFailed(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	d := NewDispatcher(store, nil,
		WithChannelSender(newFuncSender(ChannelEmail, nil)),
		WithSendPool(rejectingPool{err: ErrPoolFull}))

	res, err := d.Dispatch(context.Background(),
		[]Recipient{Customer("c1").WithEmail("c1@example.com"), Customer("c2")},
		orderMessage(StatusConfirmed, PriorityHigh, ChannelInApp, ChannelEmail))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Failed)

	for _, n := range store.All() {
		if n.RecipientID == "c1" {
			assert.Equal(t, DeliveryFailed, n.DeliveryStatus)
		} else {
			assert.Equal(t, DeliverySent, n.DeliveryStatus)
		}
	}
}

func TestDispatcher_PublishesToFeed(t *testing.T) {
	t.Parallel()

	feed := NewFeed(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := feed.Subscribe(ctx, Customer("c1"))

	d := NewDispatcher(NewMemoryStorage(), nil, WithFeed(feed))
	_, err := d.Dispatch(ctx, []Recipient{Customer("c1")}, orderMessage(StatusPreparing, PriorityMedium))
	require.NoError(t, err)

	select {
	case n := <-sub:
		assert.Equal(t, "Order preparing", n.Title)
	case <-time.After(time.Second):
		t.Fatal("notification not published")
	}
}

func TestDispatcher_DuplicateRecipientsProduceOneRecord(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	d := NewDispatcher(store, nil)
	res, err := d.Dispatch(context.Background(),
		[]Recipient{Customer("c1"), Customer("c1"), {Role: RoleCustomer}},
		orderMessage(StatusPreparing, PriorityMedium))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
}
