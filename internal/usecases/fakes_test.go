package usecases

import (
	"context"
	"fmt"
	"sync"
	"time"

	"evolution_relay/internal/entities"
)

type memInstances struct {
	mu      sync.Mutex
	owners  map[string]string
	rows    map[string]*entities.Instance
	updates map[string][]entities.InstanceUpdate
	err     error
}

func newMemInstances() *memInstances {
	return &memInstances{
		owners:  map[string]string{},
		rows:    map[string]*entities.Instance{},
		updates: map[string][]entities.InstanceUpdate{},
	}
}

func (m *memInstances) ApplyUpdate(_ context.Context, name string, u entities.InstanceUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.updates[name] = append(m.updates[name], u)
	return nil
}

func (m *memInstances) TenantForInstance(_ context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.owners[name]; ok {
		return t, nil
	}
	return "", entities.ErrNotFound
}

func (m *memInstances) GetByName(_ context.Context, name string) (*entities.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[name]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, entities.ErrNotFound
}

func (m *memInstances) ListByTenant(_ context.Context, tenantID string) ([]entities.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Instance
	for _, row := range m.rows {
		if row.TenantID == tenantID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (m *memInstances) Create(_ context.Context, inst *entities.Instance) (*entities.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if _, ok := m.rows[inst.Name]; ok {
		return nil, entities.ErrAlreadyExists
	}
	row := *inst
	row.ID = "inst-" + inst.Name
	m.rows[inst.Name] = &row
	m.owners[inst.Name] = inst.TenantID
	cp := row
	return &cp, nil
}

func (m *memInstances) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[name]; !ok {
		return entities.ErrNotFound
	}
	delete(m.rows, name)
	delete(m.owners, name)
	return nil
}

type memTenants struct {
	active []string
}

func (m *memTenants) FirstActive(context.Context) (string, error) {
	if len(m.active) == 0 {
		return "", entities.ErrNotFound
	}
	return m.active[0], nil
}

type memContacts struct {
	mu      sync.Mutex
	byPhone map[string]*entities.Contact
	seq     int
	creates int
}

func newMemContacts() *memContacts {
	return &memContacts{byPhone: map[string]*entities.Contact{}}
}

func (m *memContacts) Get(_ context.Context, id string) (*entities.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byPhone {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, entities.ErrNotFound
}

func (m *memContacts) GetByPhone(_ context.Context, phone string) (*entities.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.byPhone[phone]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, entities.ErrNotFound
}

func (m *memContacts) Create(_ context.Context, c *entities.Contact) (*entities.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byPhone[c.Phone]; ok {
		cp := *existing
		return &cp, nil
	}
	m.seq++
	m.creates++
	row := *c
	row.ID = fmt.Sprintf("contact-%d", m.seq)
	m.byPhone[c.Phone] = &row
	cp := row
	return &cp, nil
}

func (m *memContacts) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byPhone)
}

type memConversations struct {
	mu    sync.Mutex
	rows  []*entities.Conversation
	seq   int
	clock time.Time
}

func newMemConversations() *memConversations {
	return &memConversations{clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *memConversations) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memConversations) latestOpen(contactID string) *entities.Conversation {
	var best *entities.Conversation
	for _, c := range m.rows {
		if c.ContactID != contactID || !entities.IsOpen(c.Status) {
			continue
		}
		if best == nil || c.UpdatedAt.After(best.UpdatedAt) {
			best = c
		}
	}
	return best
}

func (m *memConversations) LatestOpen(_ context.Context, contactID string) (*entities.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c := m.latestOpen(contactID); c != nil {
		cp := *c
		return &cp, nil
	}
	return nil, entities.ErrNotFound
}

func (m *memConversations) Create(_ context.Context, c *entities.Conversation) (*entities.Conversation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing := m.latestOpen(c.ContactID); existing != nil && entities.IsOpen(c.Status) {
		cp := *existing
		return &cp, false, nil
	}
	m.seq++
	row := *c
	row.ID = fmt.Sprintf("conv-%d", m.seq)
	row.CreatedAt = m.tick()
	row.UpdatedAt = row.CreatedAt
	m.rows = append(m.rows, &row)
	cp := row
	return &cp, true, nil
}

func (m *memConversations) Get(_ context.Context, tenantID, id string) (*entities.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if c.ID == id && c.TenantID == tenantID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, entities.ErrNotFound
}

func (m *memConversations) ListByTenant(_ context.Context, tenantID, status string, _ int) ([]entities.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Conversation
	for _, c := range m.rows {
		if c.TenantID == tenantID && (status == "" || c.Status == status) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memConversations) SetStatus(_ context.Context, tenantID, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if c.ID == id && c.TenantID == tenantID {
			c.Status = status
			c.UpdatedAt = m.tick()
			return nil
		}
	}
	return entities.ErrNotFound
}

// add inserts a conversation directly, bypassing the open-set guard.
func (m *memConversations) add(c entities.Conversation) *entities.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := c
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = m.tick()
	}
	m.rows = append(m.rows, &row)
	return &row
}

func (m *memConversations) openCount(contactID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.rows {
		if c.ContactID == contactID && entities.IsOpen(c.Status) {
			n++
		}
	}
	return n
}

type memMessages struct {
	mu   sync.Mutex
	rows []entities.Message
	err  error
}

func (m *memMessages) Create(_ context.Context, msg *entities.Message) (*entities.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	row := *msg
	row.ID = fmt.Sprintf("msg-%d", len(m.rows)+1)
	m.rows = append(m.rows, row)
	return &row, nil
}

func (m *memMessages) ListByConversation(_ context.Context, conversationID string, _ int) ([]entities.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Message
	for _, r := range m.rows {
		if r.ConversationID == conversationID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memMessages) all() []entities.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entities.Message(nil), m.rows...)
}

type memSessions struct {
	active map[string]bool
}

func (m *memSessions) HasActive(_ context.Context, conversationID string) (bool, error) {
	return m.active[conversationID], nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []entities.AuditEntry
}

func (m *memAudit) Log(_ context.Context, e entities.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

type memUsage struct {
	mu       sync.Mutex
	received map[string]int
	sent     map[string]int
}

func newMemUsage() *memUsage {
	return &memUsage{received: map[string]int{}, sent: map[string]int{}}
}

func (m *memUsage) IncrementSent(_ context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[tenantID]++
	return nil
}

func (m *memUsage) IncrementReceived(_ context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received[tenantID]++
	return nil
}

func (m *memUsage) GetUsageHistory(_ context.Context, tenantID string, _ int) ([]entities.DailyUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return []entities.DailyUsage{{
		Date:             time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		MessagesSent:     m.sent[tenantID],
		MessagesReceived: m.received[tenantID],
	}}, nil
}

type engineCall struct {
	conversationID string
	start          bool
	content        string
	kind           string
}

type fakeEngine struct {
	mu    sync.Mutex
	calls []engineCall
	err   error
}

func (f *fakeEngine) StartFlow(_ context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, engineCall{conversationID: conversationID, start: true})
	return f.err
}

func (f *fakeEngine) ContinueFlow(_ context.Context, conversationID, content, kind string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, engineCall{conversationID: conversationID, content: content, kind: kind})
	return f.err
}

type fakeNotifier struct {
	mu       sync.Mutex
	previews []string
}

func (f *fakeNotifier) NotifyNewConversation(_ context.Context, _, _, preview string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.previews = append(f.previews, preview)
	return nil
}

// inlineDispatcher runs jobs synchronously and records their names.
type inlineDispatcher struct {
	mu   sync.Mutex
	jobs []string
}

func (d *inlineDispatcher) Go(name string, run func(ctx context.Context) error) bool {
	d.mu.Lock()
	d.jobs = append(d.jobs, name)
	d.mu.Unlock()
	_ = run(context.Background())
	return true
}

func (d *inlineDispatcher) names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.jobs...)
}

type mutexLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *mutexLocker) Lock(key string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = map[string]*sync.Mutex{}
	}
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

type memJournal struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (j *memJournal) Seen(_ context.Context, instance, id string) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.seen[instance+"/"+id], nil
}

func (j *memJournal) Remember(_ context.Context, instance, id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.seen == nil {
		j.seen = map[string]bool{}
	}
	j.seen[instance+"/"+id] = true
	return nil
}

type countingObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *countingObserver) ObserveEvent(kind, disposition string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = map[string]int{}
	}
	o.counts[kind+"/"+disposition]++
}

func (o *countingObserver) ObservePipeline(time.Time) {}

type relayFixture struct {
	svc           *RelayService
	instances     *memInstances
	tenants       *memTenants
	contacts      *memContacts
	conversations *memConversations
	messages      *memMessages
	sessions      *memSessions
	audit         *memAudit
	usage         *memUsage
	engine        *fakeEngine
	notifier      *fakeNotifier
	dispatcher    *inlineDispatcher
	journal       *memJournal
	observer      *countingObserver
}

func newRelayFixture(fallback string) *relayFixture {
	f := &relayFixture{
		instances:     newMemInstances(),
		tenants:       &memTenants{active: []string{"tenant-1", "tenant-2"}},
		contacts:      newMemContacts(),
		conversations: newMemConversations(),
		messages:      &memMessages{},
		sessions:      &memSessions{active: map[string]bool{}},
		audit:         &memAudit{},
		usage:         newMemUsage(),
		engine:        &fakeEngine{},
		notifier:      &fakeNotifier{},
		dispatcher:    &inlineDispatcher{},
		journal:       &memJournal{},
		observer:      &countingObserver{},
	}
	f.instances.owners["inst-owned"] = "tenant-9"
	f.svc = NewRelayService(RelayDeps{
		Instances:      f.instances,
		Tenants:        f.tenants,
		Contacts:       f.contacts,
		Conversations:  f.conversations,
		Messages:       f.messages,
		Sessions:       f.sessions,
		Audit:          f.audit,
		Usage:          f.usage,
		Chatbot:        f.engine,
		Notifier:       f.notifier,
		Dispatcher:     f.dispatcher,
		Locker:         &mutexLocker{},
		Journal:        f.journal,
		Observer:       f.observer,
		TenantFallback: fallback,
	})
	f.svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return f
}
