package delivery

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/stepwise/internal/store"
	"github.com/abhisek/stepwise/internal/store/storetest"
)

var deliveredAt = time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)

func newDeliverer(st *store.Store, primary Notifier) *Deliverer {
	d := New(st, primary, nil)
	d.Now = func() time.Time { return deliveredAt }
	return d
}

func parentUser(t *testing.T, st *store.Store, username, contact string) *store.User {
	t.Helper()
	u := &store.User{
		Username:       username,
		Name:           "Sam",
		Grade:          8,
		Language:       "English",
		PasswordHash:   "x",
		CurrentSubject: "Mathematics",
		ParentContact:  contact,
	}
	require.NoError(t, st.Users().Create(context.Background(), u))
	return u
}

func summary(t *testing.T, st *store.Store, userID int64, content string) *store.ParentSummary {
	t.Helper()
	s := &store.ParentSummary{UserID: userID, SessionID: 1, Content: content}
	require.NoError(t, st.Summaries().Create(context.Background(), s))
	return s
}

// recorder is a Notifier that remembers what it sent and fails for
// selected users.
type recorder struct {
	mu    sync.Mutex
	sent  []int64
	fails map[int64]error
}

func (r *recorder) Notify(_ context.Context, u *store.User, s store.ParentSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fails[u.ID]; err != nil {
		return err
	}
	r.sent = append(r.sent, s.ID)
	return nil
}

func TestDeliverPendingFallsBackToLog(t *testing.T) {
	st := storetest.New(t)
	u := storetest.User(t, st, "alice")
	summary(t, st, u.ID, "first")
	summary(t, st, u.ID, "second")

	res, err := newDeliverer(st, nil).DeliverPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Sent: 2}, res)

	pending, err := st.Summaries().Pending(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, pending)

	all, err := st.Summaries().ListForUser(context.Background(), u.ID)
	require.NoError(t, err)
	for _, s := range all {
		assert.True(t, s.Sent)
		require.NotNil(t, s.SentAt)
		assert.True(t, s.SentAt.Equal(deliveredAt))
	}
}

func TestDeliverPendingContinuesAfterFailure(t *testing.T) {
	st := storetest.New(t)
	ok := parentUser(t, st, "okuser", "1001")
	bad := parentUser(t, st, "baduser", "1002")
	s1 := summary(t, st, bad.ID, "will fail")
	s2 := summary(t, st, ok.ID, "will send")

	rec := &recorder{fails: map[int64]error{bad.ID: errors.New("chat blocked")}}
	res, err := newDeliverer(st, rec).DeliverPending(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat blocked")
	assert.Equal(t, Result{Sent: 1, Failed: 1}, res)
	assert.Equal(t, []int64{s2.ID}, rec.sent)

	pending, err := st.Summaries().Pending(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, s1.ID, pending[0].ID)
}

func TestDeliverPendingNoRecipientUsesFallback(t *testing.T) {
	st := storetest.New(t)
	u := storetest.User(t, st, "nocontact")
	summary(t, st, u.ID, "hello")

	rec := &recorder{fails: map[int64]error{u.ID: ErrNoRecipient}}
	res, err := newDeliverer(st, rec).DeliverPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Empty(t, rec.sent)
}

func TestDeliverPendingUnknownUser(t *testing.T) {
	st := storetest.New(t)
	summary(t, st, 999, "orphan")

	res, err := newDeliverer(st, nil).DeliverPending(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 1, res.Failed)
}

func TestChatID(t *testing.T) {
	tests := []struct {
		contact string
		want    int64
		ok      bool
	}{
		{"12345", 12345, true},
		{" -100200 ", -100200, true},
		{"", 0, false},
		{"0", 0, false},
		{"parent@example.com", 0, false},
	}
	for _, tt := range tests {
		got, ok := ChatID(tt.contact)
		assert.Equal(t, tt.want, got, tt.contact)
		assert.Equal(t, tt.ok, ok, tt.contact)
	}
}

func TestTelegramNotifier(t *testing.T) {
	var (
		mu   sync.Mutex
		sent []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Stepwise","username":"stepwise_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			r.ParseForm()
			mu.Lock()
			sent = append(sent, r.FormValue("chat_id")+":"+r.FormValue("text"))
			mu.Unlock()
			io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":4242,"type":"private"},"text":"ok"}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"ok":false,"error_code":404,"description":"Not Found"}`)
		}
	}))
	defer srv.Close()

	n, err := NewTelegramNotifierWithEndpoint("token", srv.URL+"/bot%s/%s")
	require.NoError(t, err)

	u := &store.User{ID: 1, Name: "Sam", ParentContact: "4242"}
	s := store.ParentSummary{ID: 3, Content: "Sam practised Fractions.", CreatedAt: deliveredAt}
	require.NoError(t, n.Notify(context.Background(), u, s))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, sent, 1)
	assert.True(t, strings.HasPrefix(sent[0], "4242:"))
	assert.Contains(t, sent[0], "Sam practised Fractions.")

	u.ParentContact = "not-a-chat"
	assert.ErrorIs(t, n.Notify(context.Background(), u, s), ErrNoRecipient)
}

type countingSweeper struct {
	mu     sync.Mutex
	calls  int
	maxAge time.Duration
}

func (c *countingSweeper) SweepIdle(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.maxAge = maxAge
	return 2
}

func TestSchedulerJobs(t *testing.T) {
	st := storetest.New(t)
	sw := &countingSweeper{}

	s := NewScheduler(newDeliverer(st, nil), sw, SchedulerConfig{
		DeliveryInterval: time.Hour,
		SessionIdleTTL:   2 * time.Hour,
	}, nil)
	require.NoError(t, s.Start())
	defer s.Stop()
	assert.Equal(t, 2, s.Jobs())

	s.runSweep()
	sw.mu.Lock()
	defer sw.mu.Unlock()
	assert.GreaterOrEqual(t, sw.calls, 1)
	assert.Equal(t, 2*time.Hour, sw.maxAge)
}

func TestSchedulerSkipsDisabledJobs(t *testing.T) {
	s := NewScheduler(nil, nil, SchedulerConfig{DeliveryInterval: time.Minute}, nil)
	require.NoError(t, s.Start())
	defer s.Stop()
	assert.Equal(t, 0, s.Jobs())
}
