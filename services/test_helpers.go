package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ceramicnetwork/go-pulse/common/db"
	"github.com/ceramicnetwork/go-pulse/common/loggers"
	"github.com/ceramicnetwork/go-pulse/models"
)

type sentMessage struct {
	Recipient string
	Text      string
}

type MockMessenger struct {
	lock   sync.Mutex
	sent   []sentMessage
	errors map[string]error
	onSend func(recipientId, text string)
}

func (m *MockMessenger) SendMessage(_ context.Context, recipientId, text string) error {
	m.lock.Lock()
	err := m.errors[recipientId]
	if err == nil {
		m.sent = append(m.sent, sentMessage{recipientId, text})
	}
	onSend := m.onSend
	m.lock.Unlock()

	if err == nil && onSend != nil {
		onSend(recipientId, text)
	}
	return err
}

func (m *MockMessenger) failFor(recipientId string, err error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.errors == nil {
		m.errors = make(map[string]error)
	}
	m.errors[recipientId] = err
}

func (m *MockMessenger) messagesTo(recipientId string) []string {
	m.lock.Lock()
	defer m.lock.Unlock()
	texts := make([]string, 0)
	for _, msg := range m.sent {
		if msg.Recipient == recipientId {
			texts = append(texts, msg.Text)
		}
	}
	return texts
}

func (m *MockMessenger) count(recipientId, text string) int {
	n := 0
	for _, sent := range m.messagesTo(recipientId) {
		if sent == text {
			n++
		}
	}
	return n
}

type MockNotifier struct {
	lock     sync.Mutex
	alerts   []string
	warnings []string
}

func (n *MockNotifier) SendAlert(_, _, content string) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.alerts = append(n.alerts, content)
	return nil
}

func (n *MockNotifier) SendWarning(_, _, content string) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.warnings = append(n.warnings, content)
	return nil
}

func (n *MockNotifier) numWarnings() int {
	n.lock.Lock()
	defer n.lock.Unlock()
	return len(n.warnings)
}

type MockMetricService struct {
	lock   sync.Mutex
	counts map[models.MetricName]int
}

func (m *MockMetricService) Count(_ context.Context, name models.MetricName, val int) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.counts == nil {
		m.counts = make(map[models.MetricName]int)
	}
	m.counts[name] += val
	return nil
}

func (m *MockMetricService) Distribution(_ context.Context, _ models.MetricName, _ int) error {
	return nil
}

func (m *MockMetricService) Shutdown(_ context.Context) {}

func (m *MockMetricService) countOf(name models.MetricName) int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.counts[name]
}

type FakePublisher struct {
	lock   sync.Mutex
	events []models.PollEvent
}

func (f *FakePublisher) GetUrl() string {
	return "fake"
}

func (f *FakePublisher) SendMessage(_ context.Context, event any) (string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.events = append(f.events, event.(models.PollEvent))
	return "msgId", nil
}

func (f *FakePublisher) eventsOf(eventType models.PollEventType) []models.PollEvent {
	f.lock.Lock()
	defer f.lock.Unlock()
	events := make([]models.PollEvent, 0)
	for _, event := range f.events {
		if event.Type == eventType {
			events = append(events, event)
		}
	}
	return events
}

type FakeArchive struct {
	lock   sync.Mutex
	stored map[string]interface{}
}

func (f *FakeArchive) Store(_ context.Context, key string, value interface{}) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.stored == nil {
		f.stored = make(map[string]interface{})
	}
	f.stored[key] = value
	return nil
}

// FailingStore fails reads and poll writes once failing is set, and SetEx for the keys in failSetEx.
type FailingStore struct {
	models.KeyValueStore
	lock      sync.Mutex
	failing   bool
	failSetEx map[string]bool
}

var errStoreDown = errors.New("store unavailable")

func (f *FailingStore) setFailing(failing bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.failing = failing
}

func (f *FailingStore) err() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.failing {
		return errStoreDown
	}
	return nil
}

func (f *FailingStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := f.err(); err != nil {
		return "", false, err
	}
	return f.KeyValueStore.Get(ctx, key)
}

func (f *FailingStore) HSetAll(ctx context.Context, key string, fields map[string]string) error {
	if err := f.err(); err != nil {
		return err
	}
	return f.KeyValueStore.HSetAll(ctx, key, fields)
}

func (f *FailingStore) failSetExFor(key string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.failSetEx == nil {
		f.failSetEx = make(map[string]bool)
	}
	f.failSetEx[key] = true
}

func (f *FailingStore) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	f.lock.Lock()
	failKey := f.failSetEx[key]
	f.lock.Unlock()
	if failKey {
		return errStoreDown
	}
	if err := f.err(); err != nil {
		return err
	}
	return f.KeyValueStore.SetEx(ctx, key, value, ttl)
}

// fixedClock hands out increasing times a second apart.
type fixedClock struct {
	lock sync.Mutex
	next time.Time
}

func (c *fixedClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	now := c.next
	c.next = c.next.Add(time.Second)
	return now
}

type testEnv struct {
	store      models.KeyValueStore
	polls      *PollStore
	identities *IdentityDirectory
	directory  *PollDirectory
	messenger  *MockMessenger
	notif      *MockNotifier
	metrics    *MockMetricService
	publisher  *FakePublisher
	archive    *FakeArchive
	reminders  *ReminderScheduler
	pulse      *PulseService

	// ctx bounds every reminder loop the test starts through startPoll
	ctx      context.Context
	stop     context.CancelFunc
	stopping bool
}

const testBotId = "1000"

func newTestEnv(store models.KeyValueStore, reminderConfig models.ReminderConfig) *testEnv {
	if store == nil {
		store = db.NewMemoryStore()
	}
	logger := loggers.NewTestLogger()
	env := testEnv{
		store:     store,
		messenger: &MockMessenger{},
		notif:     &MockNotifier{},
		metrics:   &MockMetricService{},
		publisher: &FakePublisher{},
		archive:   &FakeArchive{},
	}
	env.ctx, env.stop = context.WithCancel(context.Background())
	env.polls = NewPollStore(store)
	env.polls.now = (&fixedClock{next: time.Unix(1_700_000_000, 250_000_000)}).Now
	env.identities = NewIdentityDirectory(store)
	env.directory = NewPollDirectory(store, env.polls, env.identities)
	events := NewEventService(env.publisher, env.metrics, logger)
	env.reminders = NewReminderScheduler(env.polls, env.messenger, env.notif, events, env.metrics, logger, reminderConfig)
	env.pulse = NewPulseService(
		env.polls,
		env.reminders,
		env.directory,
		env.identities,
		env.messenger,
		env.notif,
		events,
		env.archive,
		env.metrics,
		logger,
		PulseConfig{
			HostnameUrl:         "https://pulse.example.com",
			BotId:               testBotId,
			Staff:               []string{"900"},
			EscalationThreshold: models.DefaultEscalationThreshold,
		},
	)
	return &env
}

// stopOnCleanup cancels the env's reminder loops and waits for them once the test ends. It registers a single cleanup
// however often it is called, so that no loop is left running while another is waited on.
func (e *testEnv) stopOnCleanup(t *testing.T) {
	if e.stopping {
		return
	}
	e.stopping = true
	t.Cleanup(func() {
		e.stop()
		e.reminders.Wait()
	})
}

// joinChannel adds users to a channel's roster.
func (e *testEnv) joinChannel(ctx context.Context, channel models.Channel, users ...models.User) {
	if err := e.identities.RememberChannel(ctx, channel); err != nil {
		panic(err)
	}
	for _, user := range users {
		if err := e.identities.Remember(ctx, channel.Id, user); err != nil {
			panic(err)
		}
	}
}

// slowReminders keeps reminder loops from firing during a test.
var slowReminders = models.ReminderConfig{BaseInterval: time.Hour, MaxAttempts: models.DefaultReminderMaxAttempts}
