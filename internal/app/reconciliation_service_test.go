package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"testing"
	"time"

	"release_notification_bot/internal/domain/catalog"
	"release_notification_bot/internal/domain/messaging"
	"release_notification_bot/internal/domain/release"
	"release_notification_bot/internal/domain/tracking"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEntryRepo hands out copies so the service cannot mutate stored state
// except through Save.
type fakeEntryRepo struct {
	entries map[int64]*tracking.Entry
	order   []int64
	loadErr error
	saveErr map[int64]error
	saves   int
}

func newFakeEntryRepo(entries ...*tracking.Entry) *fakeEntryRepo {
	r := &fakeEntryRepo{entries: make(map[int64]*tracking.Entry), saveErr: make(map[int64]error)}
	for _, e := range entries {
		r.entries[e.ID] = e
		r.order = append(r.order, e.ID)
	}
	return r
}

func (r *fakeEntryRepo) LoadAll(ctx context.Context) ([]*tracking.Entry, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	out := make([]*tracking.Entry, 0, len(r.order))
	for _, id := range r.order {
		cp := *r.entries[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeEntryRepo) Save(ctx context.Context, id int64, patch tracking.Patch) error {
	if err := r.saveErr[id]; err != nil {
		return err
	}
	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("entry %d not found", id)
	}
	e.Apply(patch)
	r.saves++
	return nil
}

func (r *fakeEntryRepo) Create(ctx context.Context, entry *tracking.Entry) error {
	entry.ID = int64(len(r.order) + 1)
	r.entries[entry.ID] = entry
	r.order = append(r.order, entry.ID)
	return nil
}

func (r *fakeEntryRepo) GetByID(ctx context.Context, id int64) (*tracking.Entry, error) {
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("entry %d not found", id)
	}
	cp := *e
	return &cp, nil
}

func (r *fakeEntryRepo) ListBySubscriber(ctx context.Context, subscriberID int64) ([]*tracking.Entry, error) {
	var out []*tracking.Entry
	for _, id := range r.order {
		if e := r.entries[id]; e.SubscriberID == subscriberID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeLookup struct {
	results map[string][]catalog.RawItem
	errs    map[string]error
}

func (l *fakeLookup) Search(ctx context.Context, title, author string) ([]catalog.RawItem, error) {
	if err := l.errs[title]; err != nil {
		return nil, err
	}
	return l.results[title], nil
}

type delivery struct {
	subscriberID int64
	notices      []messaging.Notice
}

type fakeMessenger struct {
	failFor    map[int64]bool
	deliveries []delivery
}

func (m *fakeMessenger) Deliver(ctx context.Context, subscriberID int64, notices []messaging.Notice) error {
	if m.failFor[subscriberID] {
		return fmt.Errorf("chat %d: bot was blocked by the user", subscriberID)
	}
	m.deliveries = append(m.deliveries, delivery{subscriberID: subscriberID, notices: notices})
	return nil
}

func salesText(offset int) string {
	return testToday.AddDate(0, 0, offset).Format("2006年01月02日")
}

func newTestService(t *testing.T, repo tracking.Repository, lookup catalog.Lookup, messenger messaging.Client) *ReconciliationServiceImpl {
	t.Helper()
	filter, err := NewCandidateFilter(release.DefaultRules(), time.UTC)
	require.NoError(t, err)

	l := logrus.New()
	l.SetOutput(io.Discard)

	svc := NewReconciliationServiceImpl(repo, lookup, messenger,
		NewNormalizer(release.DefaultRules()), filter, NewDecider(DefaultReminderDays),
		time.UTC, logrus.NewEntry(l))
	svc.now = func() time.Time { return testToday.Add(10 * time.Hour) }
	return svc
}

// fixture covers every notifying and state-only transition across two subscribers.
func fixture() (*fakeEntryRepo, *fakeLookup) {
	repo := newFakeEntryRepo(
		&tracking.Entry{ID: 1, SubscriberID: 100, TitleKey: "Foo", LastISBN: "0"},
		&tracking.Entry{ID: 2, SubscriberID: 100, TitleKey: "Bar", LastISBN: "222", LastSalesDate: day(7)},
		&tracking.Entry{ID: 3, SubscriberID: 200, TitleKey: "Baz", LastISBN: "333", LastSalesDate: day(3)},
		&tracking.Entry{ID: 4, SubscriberID: 200, TitleKey: "Qux", LastISBN: "444", LastSalesDate: day(-1), IsReserved: true, LastPurchasedVolume: 5},
	)
	lookup := &fakeLookup{results: map[string][]catalog.RawItem{
		"Foo": {{Title: "Foo 5", ISBN: "111", SalesDate: salesText(20)}},
		"Bar": {{Title: "Bar 3", ISBN: "222", SalesDate: salesText(7)}},
		"Baz": {{Title: "Baz 2", ISBN: "333", SalesDate: salesText(10)}},
		"Qux": {{Title: "Qux 6", ISBN: "444", SalesDate: salesText(-1)}},
	}}
	return repo, lookup
}

func TestRunReconciliationPassIsIdempotent(t *testing.T) {
	repo, lookup := fixture()
	messenger := &fakeMessenger{}
	svc := newTestService(t, repo, lookup, messenger)

	summary, err := svc.RunReconciliationPass(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 4, summary.Entries)
	assert.Equal(t, 3, summary.EventsDispatched)
	assert.Equal(t, 4, summary.StateUpdates)
	assert.Zero(t, summary.TotalDeliveryFailures())

	require.Len(t, messenger.deliveries, 3)
	assert.Equal(t, int64(100), messenger.deliveries[0].subscriberID)
	assert.Equal(t, release.EventNewRelease, messenger.deliveries[0].notices[0].Event.Kind)
	assert.Equal(t, release.EventCountdownReminder, messenger.deliveries[1].notices[0].Event.Kind)
	assert.Equal(t, int64(200), messenger.deliveries[2].subscriberID)
	assert.Equal(t, release.EventMetadataUpdated, messenger.deliveries[2].notices[0].Event.Kind)

	assert.Equal(t, "111", repo.entries[1].LastISBN)
	assert.True(t, repo.entries[1].LastNotifiedDay.Valid)
	assert.True(t, repo.entries[3].LastSalesDate.Time.Equal(day(10).Time))
	assert.False(t, repo.entries[4].IsReserved)
	assert.Equal(t, 6, repo.entries[4].LastPurchasedVolume)

	second, err := svc.RunReconciliationPass(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.EventsDispatched)
	assert.Zero(t, second.StateUpdates)
	assert.Len(t, messenger.deliveries, 3)
	assert.NotEqual(t, summary.RunID, second.RunID)
}

func TestRunReconciliationPassGroupsReminders(t *testing.T) {
	repo := newFakeEntryRepo(
		&tracking.Entry{ID: 1, SubscriberID: 100, TitleKey: "Foo", LastISBN: "111", LastSalesDate: day(30)},
		&tracking.Entry{ID: 2, SubscriberID: 100, TitleKey: "Bar", LastISBN: "222", LastSalesDate: day(0)},
	)
	lookup := &fakeLookup{results: map[string][]catalog.RawItem{
		"Foo": {{Title: "Foo 1", ISBN: "111", SalesDate: salesText(30)}},
		"Bar": {{Title: "Bar 1", ISBN: "222", SalesDate: salesText(0)}},
	}}
	messenger := &fakeMessenger{}

	summary, err := newTestService(t, repo, lookup, messenger).RunReconciliationPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.EventsDispatched)

	require.Len(t, messenger.deliveries, 1)
	notices := messenger.deliveries[0].notices
	require.Len(t, notices, 2)
	assert.Equal(t, 30, notices[0].Event.DaysLeft)
	assert.Equal(t, 0, notices[1].Event.DaysLeft)
	assert.Equal(t, "Bar", notices[1].TitleKey)
}

func TestRunReconciliationPassDeliveryFailure(t *testing.T) {
	repo, lookup := fixture()
	messenger := &fakeMessenger{failFor: map[int64]bool{100: true}}
	svc := newTestService(t, repo, lookup, messenger)

	summary, err := svc.RunReconciliationPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.DeliveryFailures[100])
	assert.Equal(t, 1, summary.EventsDispatched, "subscriber 200 is unaffected")

	// The new ISBN is tracked even though the notice never arrived.
	assert.Equal(t, "111", repo.entries[1].LastISBN)
	assert.False(t, repo.entries[1].LastNotifiedDay.Valid)
	// The reminder was not delivered, so nothing records it.
	assert.False(t, repo.entries[2].LastNotifiedDay.Valid)

	messenger.failFor = nil
	retry, err := svc.RunReconciliationPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, retry.EventsDispatched)
	require.Len(t, messenger.deliveries, 2)
	last := messenger.deliveries[1]
	assert.Equal(t, int64(100), last.subscriberID)
	require.Len(t, last.notices, 1)
	assert.Equal(t, int64(2), last.notices[0].EntryID)
	assert.Equal(t, release.EventCountdownReminder, last.notices[0].Event.Kind)
	assert.True(t, repo.entries[2].LastNotifiedDay.Valid)
}

func TestRunReconciliationPassIsolatesLookupFailures(t *testing.T) {
	repo, lookup := fixture()
	lookup.errs = map[string]error{"Foo": fmt.Errorf("status 503")}
	messenger := &fakeMessenger{}

	summary, err := newTestService(t, repo, lookup, messenger).RunReconciliationPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.LookupFailures)
	assert.Equal(t, 2, summary.EventsDispatched)
	assert.Equal(t, 3, summary.StateUpdates)
	assert.Equal(t, "0", repo.entries[1].LastISBN)
}

func TestRunReconciliationPassPersistenceFailure(t *testing.T) {
	repo, lookup := fixture()
	repo.saveErr[4] = sql.ErrConnDone
	messenger := &fakeMessenger{}
	svc := newTestService(t, repo, lookup, messenger)

	summary, err := svc.RunReconciliationPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.PersistenceFailures)
	assert.Equal(t, 3, summary.StateUpdates)
	assert.True(t, repo.entries[4].IsReserved)

	// Source state is unchanged, so the lost mutation is decided again.
	delete(repo.saveErr, 4)
	retry, err := svc.RunReconciliationPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, retry.StateUpdates)
	assert.False(t, repo.entries[4].IsReserved)
	assert.Equal(t, 6, repo.entries[4].LastPurchasedVolume)
}

func TestRunReconciliationPassLoadFailure(t *testing.T) {
	repo := newFakeEntryRepo()
	repo.loadErr = sql.ErrConnDone

	_, err := newTestService(t, repo, &fakeLookup{}, &fakeMessenger{}).RunReconciliationPass(context.Background())
	assert.ErrorIs(t, err, ErrPersistenceFailure)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestRunReconciliationPassWithoutEntries(t *testing.T) {
	messenger := &fakeMessenger{}
	summary, err := newTestService(t, newFakeEntryRepo(), &fakeLookup{}, messenger).RunReconciliationPass(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Entries)
	assert.Empty(t, messenger.deliveries)
}

func TestRunReconciliationPassSkipsSpecialEditions(t *testing.T) {
	repo := newFakeEntryRepo(&tracking.Entry{ID: 1, SubscriberID: 100, TitleKey: "Foo"})
	lookup := &fakeLookup{results: map[string][]catalog.RawItem{
		"Foo": {{Title: "Foo 9 特装版", ISBN: "999", SalesDate: salesText(5)}},
	}}
	messenger := &fakeMessenger{}

	summary, err := newTestService(t, repo, lookup, messenger).RunReconciliationPass(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.EventsDispatched)
	assert.Empty(t, repo.entries[1].LastISBN)
}

func TestRunReconciliationPassSearchesBracketOnlyTitles(t *testing.T) {
	repo := newFakeEntryRepo(&tracking.Entry{
		ID: 1, SubscriberID: 100, TitleKey: "【推しの子】",
		Author: sql.NullString{String: "赤坂アカ", Valid: true},
	})
	lookup := &fakeLookup{results: map[string][]catalog.RawItem{
		"推しの子": {{Title: "【推しの子】 16", Author: "赤坂 アカ／横槍 メンゴ", ISBN: "9784088840000", SalesDate: salesText(12)}},
	}}
	messenger := &fakeMessenger{}

	summary, err := newTestService(t, repo, lookup, messenger).RunReconciliationPass(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.LookupFailures)
	assert.Equal(t, 1, summary.EventsDispatched)
	assert.Equal(t, "9784088840000", repo.entries[1].LastISBN)
}
