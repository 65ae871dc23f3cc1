package notify

import (
	"context"
	"sync"
	"testing"

	"github.com/harvestlane/notifykit/pkg/email"
	"github.com/harvestlane/notifykit/pkg/logger"
	"github.com/harvestlane/notifykit/pkg/notifications"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []email.SendEmailParams
}

func (m *fakeMailer) SendEmail(_ context.Context, p email.SendEmailParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, p)
	return nil
}

func (m *fakeMailer) Sent() []email.SendEmailParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]email.SendEmailParams(nil), m.sent...)
}

type testEnv struct {
	store  *notifications.MemoryStorage
	dir    *notifications.MemoryDirectory
	source *MemorySource
	mailer *fakeMailer
	feed   *notifications.Feed
	svc    *Service
}

// newTestEnv wires the full pipeline over in-memory collaborators:
//
//	volunteers: V1 (auth-v1, Vera, has email), V2 (never signed in)
//	customers:  C1 (Carl, has email), C2 (Cleo, push notifications off)
//	admins:     auth-admin (ops@example.com)
//	orders:     O1 #1001 for C1 referred by V1, O2 #1002 for C2, O3 guest order
//	zones:      Z1 North
func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	dir := notifications.NewMemoryDirectory().
		AddVolunteer(notifications.VolunteerRecord{ID: "V1", AuthID: "auth-v1", Email: "vera@example.com", Name: "Vera"}).
		AddVolunteer(notifications.VolunteerRecord{ID: "V2", Name: "Vic"}).
		AddCustomer(notifications.CustomerRecord{ID: "C1", Email: "carl@example.com", Name: "Carl"}).
		AddCustomer(notifications.CustomerRecord{ID: "C2", Email: "cleo@example.com", Name: "Cleo"}).
		AddAuthUser(notifications.AuthUser{ID: "auth-admin", Email: "ops@example.com"}).
		AddAuthUser(notifications.AuthUser{ID: "auth-v1", Email: "vera@example.com"}).
		SetPreferences("C2", notifications.RoleCustomer, notifications.Preferences{PushNotifications: notifications.Bool(false)})

	source := NewMemorySource().
		AddVolunteer(Volunteer{ID: "V1", AuthID: "auth-v1", Name: "Vera", Email: "vera@example.com"}).
		AddVolunteer(Volunteer{ID: "V2", Name: "Vic"}).
		AddCustomer(Customer{ID: "C1", Name: "Carl", Email: "carl@example.com"}).
		AddCustomer(Customer{ID: "C2", Name: "Cleo", Email: "cleo@example.com"}).
		AddOrder(Order{ID: "O1", Number: "1001", CustomerID: "C1", CustomerName: "Carl", ReferredBy: "V1", Status: "pending", Total: 42.5}).
		AddOrder(Order{ID: "O2", Number: "1002", CustomerID: "C2", CustomerName: "Cleo", Status: "pending", Total: 10}).
		AddOrder(Order{ID: "O3", CustomerName: "Guest", Status: "pending", Total: 5}).
		AddZone(Zone{ID: "Z1", Name: "North"})

	store := notifications.NewMemoryStorage()
	mailer := &fakeMailer{}
	feed := notifications.NewFeed(8)
	t.Cleanup(feed.Close)

	pool := notifications.NewSendPool(store,
		notifications.WithRate(0),
		notifications.WithSendPoolLogger(logger.Discard()))
	pool.Start()
	t.Cleanup(func() { _ = pool.Stop(context.Background()) })

	dispatcher := notifications.NewDispatcher(store, notifications.NewGate(dir, notifications.WithGateLogger(logger.Discard())),
		notifications.WithChannelSender(notifications.NewEmailChannel(mailer)),
		notifications.WithSendPool(pool),
		notifications.WithFeed(feed),
		notifications.WithDispatcherLogger(logger.Discard()))
	resolver := notifications.NewResolver(dir, []string{"ops@example.com"},
		notifications.WithResolverLogger(logger.Discard()))
	notifier := notifications.NewNotifier(resolver, dispatcher,
		notifications.WithNotifierLogger(logger.Discard()))

	svc := NewService(notifier, source, append([]Option{WithLogger(logger.Discard())}, opts...)...)
	return &testEnv{store: store, dir: dir, source: source, mailer: mailer, feed: feed, svc: svc}
}

func (e *testEnv) recordsFor(r notifications.Recipient) []notifications.Notification {
	var out []notifications.Notification
	for _, n := range e.store.All() {
		if n.Recipient().Key() == r.Key() {
			out = append(out, n)
		}
	}
	return out
}
