package notifications

import (
	"context"
	"sync"

	"github.com/harvestlane/notifykit/pkg/email"
)

// funcSender is a ChannelSender backed by a function.
type funcSender struct {
	ch Channel
	fn func(ctx context.Context, d Delivery) error

	mu    sync.Mutex
	calls []Delivery
}

func newFuncSender(ch Channel, fn func(ctx context.Context, d Delivery) error) *funcSender {
	return &funcSender{ch: ch, fn: fn}
}

func (s *funcSender) Channel() Channel { return s.ch }

func (s *funcSender) Send(ctx context.Context, d Delivery) error {
	s.mu.Lock()
	s.calls = append(s.calls, d)
	s.mu.Unlock()
	if s.fn == nil {
		return nil
	}
	return s.fn(ctx, d)
}

func (s *funcSender) Calls() []Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Delivery(nil), s.calls...)
}

// recordingMailer captures emails handed to the provider.
type recordingMailer struct {
	mu   sync.Mutex
	sent []email.SendEmailParams
	err  error
}

func (m *recordingMailer) SendEmail(ctx context.Context, p email.SendEmailParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, p)
	return nil
}

func (m *recordingMailer) Sent() []email.SendEmailParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]email.SendEmailParams(nil), m.sent...)
}

// countingDirectory wraps a MemoryDirectory and counts lookups.
type countingDirectory struct {
	*MemoryDirectory
	mu    sync.Mutex
	calls int
}

func (d *countingDirectory) inc() {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
}

func (d *countingDirectory) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *countingDirectory) ListVolunteers(ctx context.Context) ([]VolunteerRecord, error) {
	d.inc()
	return d.MemoryDirectory.ListVolunteers(ctx)
}

func (d *countingDirectory) ListCustomers(ctx context.Context) ([]CustomerRecord, error) {
	d.inc()
	return d.MemoryDirectory.ListCustomers(ctx)
}

func (d *countingDirectory) ListAdminAuthUsers(ctx context.Context) ([]AuthUser, error) {
	d.inc()
	return d.MemoryDirectory.ListAdminAuthUsers(ctx)
}

// countingStore wraps MemoryStorage and counts InsertMany calls.
type countingStore struct {
	*MemoryStorage
	mu      sync.Mutex
	inserts int
}

func (s *countingStore) InsertMany(ctx context.Context, records []Notification) ([]Notification, error) {
	s.mu.Lock()
	s.inserts++
	s.mu.Unlock()
	return s.MemoryStorage.InsertMany(ctx, records)
}

func (s *countingStore) Inserts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts
}

// rejectingPool refuses every task.
type rejectingPool struct{ err error }

func (p rejectingPool) Submit(SendTask) error { return p.err }

// collectingPool keeps tasks without running them.
type collectingPool struct {
	mu    sync.Mutex
	tasks []SendTask
}

func (p *collectingPool) Submit(t SendTask) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, t)
	return nil
}

func (p *collectingPool) Tasks() []SendTask {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SendTask(nil), p.tasks...)
}

// sampleDirectory has three volunteers (two with auth identities), two
// customers and two auth users of which one is on the admin allow-list.
func sampleDirectory() *MemoryDirectory {
	return NewMemoryDirectory().
		AddVolunteer(VolunteerRecord{ID: "vol-1", AuthID: "auth-v1", Email: "v1@example.com", Name: "Vera"}).
		AddVolunteer(VolunteerRecord{ID: "vol-2", AuthID: "auth-v2", Email: "v2@example.com"}).
		AddVolunteer(VolunteerRecord{ID: "vol-3"}).
		AddCustomer(CustomerRecord{ID: "cust-1", Email: "c1@example.com", Name: "Carl"}).
		AddCustomer(CustomerRecord{ID: "cust-2", Email: "c2@example.com"}).
		AddAuthUser(AuthUser{ID: "auth-admin", Email: "Ops@Example.com"}).
		AddAuthUser(AuthUser{ID: "auth-v1", Email: "v1@example.com"})
}
