package reminders

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"subsplit_app_echo/internal/apperr"
	"subsplit_app_echo/internal/dbtest"
	"subsplit_app_echo/internal/models"
	"subsplit_app_echo/internal/services"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func reminderPtr(t models.ReminderType) *models.ReminderType { return &t }

func TestClassify(t *testing.T) {
	today := time.Date(2024, 6, 10, 23, 30, 0, 0, time.UTC)

	cases := []struct {
		name string
		due  time.Time
		last *models.ReminderType
		want models.ReminderType
	}{
		{"five days ahead", date(2024, 6, 15), nil, models.ReminderPre},
		{"due today", date(2024, 6, 10), nil, models.ReminderDue},
		{"five days late", date(2024, 6, 5), nil, models.ReminderOverdue},
		{"four days ahead", date(2024, 6, 14), nil, models.ReminderNone},
		{"six days late", date(2024, 6, 4), nil, models.ReminderNone},
		{"pre already sent", date(2024, 6, 15), reminderPtr(models.ReminderPre), models.ReminderNone},
		{"pre sent before due", date(2024, 6, 10), reminderPtr(models.ReminderPre), models.ReminderDue},
		{"manual sent before pre", date(2024, 6, 15), reminderPtr(models.ReminderManual), models.ReminderPre},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := models.Charge{DueDate: tc.due, LastReminderType: tc.last}
			assert.Equal(t, tc.want, Classify(c, today))
		})
	}
}

func TestDaysUntilCrossesMonth(t *testing.T) {
	assert.Equal(t, 5, DaysUntil(date(2024, 3, 2), date(2024, 2, 26)))
	assert.Equal(t, -5, DaysUntil(date(2024, 12, 29), date(2025, 1, 3)))
}

func TestFormatting(t *testing.T) {
	assert.Contains(t, FormatCurrency(decimal.NewFromInt(10000)), "10.000")
	assert.True(t, strings.HasPrefix(FormatCurrency(decimal.NewFromInt(30000)), "$ "))
	assert.Equal(t, "05 de marzo de 2024", FormatDate(date(2024, 3, 5)))
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("Ana", []string{"Netflix", "Spotify"}, models.ReminderOverdue)
	assert.Contains(t, prompt, "Ana")
	assert.Contains(t, prompt, "Netflix, Spotify")
	assert.Contains(t, prompt, "Están atrasadas")
	assert.Contains(t, prompt, `"subject"`)

	assert.Contains(t, BuildPrompt("Ana", nil, models.ReminderManual), "Recordatorio general")
}

func TestRenderEmail(t *testing.T) {
	b := Batch{
		Member: models.Member{Name: "Ana <script>"},
		Type:   models.ReminderOverdue,
		Charges: []models.Charge{
			{Amount: decimal.NewFromInt(10000), DueDate: date(2024, 6, 20), Platform: models.Platform{Name: "Netflix"}},
			{Amount: decimal.NewFromInt(20000), DueDate: date(2024, 6, 5), Platform: models.Platform{Name: "Spotify"}},
		},
	}

	html, err := RenderEmail(b, "Hola\nPaga pronto")
	require.NoError(t, err)
	assert.Contains(t, html, "⚠️ Pago vencido")
	assert.Contains(t, html, "#ef4444")
	assert.Contains(t, html, "Hola<br>Paga pronto")
	assert.Contains(t, html, "30.000")
	assert.Contains(t, html, "05 de junio de 2024")
	assert.Contains(t, html, "Ana &lt;script&gt;")
	assert.NotContains(t, html, "<script>")
}

func TestWhatsAppMessageAndLink(t *testing.T) {
	s := PendingSummary{
		Member: models.Member{Name: "Ana", Phone: "300 123 4567"},
		Charges: []models.Charge{
			{Amount: decimal.NewFromInt(15000), Platform: models.Platform{Name: "Netflix"}},
		},
		Total:   decimal.NewFromInt(15000),
		DueDate: date(2024, 7, 1),
	}

	msg := WhatsAppMessage(s)
	assert.Contains(t, msg, "*STRIMO - RECORDATORIO DE PAGO*")
	assert.Contains(t, msg, "• *Netflix:* $ 15.000")
	assert.Contains(t, msg, "01 de julio de 2024")

	link, err := WhatsAppLink(s.Member.Phone, "Hola Ana")
	require.NoError(t, err)
	assert.Equal(t, "https://wa.me/573001234567?text=Hola%20Ana", link)

	_, err = WhatsAppLink("", "Hola")
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

type fakeComposer struct {
	err error
}

func (f fakeComposer) ComposeMessage(_ context.Context, prompt string) (services.ComposedMessage, error) {
	if f.err != nil {
		return services.ComposedMessage{}, f.err
	}
	return services.ComposedMessage{Subject: "Recordatorio", Message: "Hola, tienes pagos pendientes"}, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []services.Email
	err  error
}

func (f *fakeMailer) SendEmail(_ context.Context, e services.Email) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, e)
	return nil
}

func (f *fakeMailer) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var to []string
	for _, e := range f.sent {
		to = append(to, e.To...)
	}
	return to
}

type deniedLocker struct{}

func (deniedLocker) TryLock(context.Context, string, time.Duration) (services.ReleaseFunc, bool, error) {
	return nil, false, nil
}

// memLocker is a process-local Locker keyed like the Redis one.
type memLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *memLocker) TryLock(_ context.Context, key string, _ time.Duration) (services.ReleaseFunc, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		return nil
	}, true, nil
}

// gatedLocker reports when a run reaches the lock and holds it there until
// the gate opens.
type gatedLocker struct {
	inner   services.Locker
	entered chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func (g *gatedLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (services.ReleaseFunc, bool, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.gate
	return g.inner.TryLock(ctx, key, ttl)
}

type fixture struct {
	db       *gorm.DB
	platform models.Platform
	members  map[string]models.Member
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)

	platform := models.Platform{Name: "Netflix", Cost: decimal.NewFromInt(30000), PaymentStrategy: models.PaymentStrategyEqual}
	require.NoError(t, db.Create(&platform).Error)

	f := &fixture{db: db, platform: platform, members: map[string]models.Member{}}
	for _, name := range []string{"ana", "bob", "cam"} {
		m := models.Member{Name: name, Email: name + "@example.com", Active: true}
		if name == "bob" {
			m.Email = ""
		}
		require.NoError(t, db.Create(&m).Error)
		f.members[name] = m
	}
	return f
}

func (f *fixture) charge(t *testing.T, member string, due time.Time, status models.ChargeStatus, last *models.ReminderType) models.Charge {
	t.Helper()
	c := models.Charge{
		MemberID:         f.members[member].ID,
		PlatformID:       f.platform.ID,
		Amount:           decimal.NewFromInt(10000),
		Month:            int(due.Month()),
		Year:             due.Year(),
		DueDate:          due,
		Status:           status,
		LastReminderType: last,
	}
	require.NoError(t, f.db.Create(&c).Error)
	return c
}

func (f *fixture) dispatcher(t *testing.T, composer Composer, mailer services.Mailer, locker services.Locker) *Dispatcher {
	t.Helper()
	loc, err := time.LoadLocation("America/Bogota")
	require.NoError(t, err)

	d, err := NewDispatcher(DispatcherParams{
		DB:          f.db,
		Composer:    composer,
		Mailer:      mailer,
		Locker:      locker,
		Logger:      zerolog.Nop(),
		From:        "Strimo <recordatorios@example.com>",
		Location:    loc,
		Concurrency: 2,
	})
	require.NoError(t, err)
	d.now = func() time.Time { return time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC) }
	return d
}

func reload(t *testing.T, db *gorm.DB, id uint) models.Charge {
	t.Helper()
	var c models.Charge
	require.NoError(t, db.First(&c, id).Error)
	return c
}

func TestProcessRemindersAuto(t *testing.T) {
	f := newFixture(t)
	anaPre := f.charge(t, "ana", date(2024, 6, 15), models.ChargeStatusPending, nil)
	anaDue := f.charge(t, "ana", date(2024, 6, 10), models.ChargeStatusPending, nil)
	f.charge(t, "bob", date(2024, 6, 15), models.ChargeStatusPending, nil)
	camSent := f.charge(t, "cam", date(2024, 6, 15), models.ChargeStatusPending, reminderPtr(models.ReminderPre))
	f.charge(t, "cam", date(2024, 6, 5), models.ChargeStatusPaid, nil)
	f.charge(t, "cam", date(2024, 6, 20), models.ChargeStatusPending, nil)

	mailer := &fakeMailer{}
	d := f.dispatcher(t, fakeComposer{}, mailer, nil)

	report, err := d.ProcessReminders(context.Background(), Trigger{})
	require.NoError(t, err)
	assert.Equal(t, 5, report.Candidates)
	assert.Equal(t, 2, report.Processed())

	require.Len(t, report.Batches, 3)
	ana, bob := f.members["ana"].ID, f.members["bob"].ID
	assert.Equal(t, BatchResult{MemberID: ana, Type: models.ReminderPre, ChargesSent: 1, Status: BatchSent}, report.Batches[0])
	assert.Equal(t, BatchResult{MemberID: ana, Type: models.ReminderDue, ChargesSent: 1, Status: BatchSent}, report.Batches[1])
	assert.Equal(t, BatchResult{MemberID: bob, Type: models.ReminderPre, Status: BatchNoEmail}, report.Batches[2])

	assert.Equal(t, []string{"ana@example.com", "ana@example.com"}, mailer.recipients())

	stamped := reload(t, f.db, anaPre.ID)
	require.NotNil(t, stamped.LastReminderAt)
	assert.Equal(t, models.ReminderPre, stamped.LastReminded())
	assert.Equal(t, models.ReminderDue, reload(t, f.db, anaDue.ID).LastReminded())
	assert.Nil(t, reload(t, f.db, camSent.ID).LastReminderAt)

	// a second run on the same day finds nothing new to send
	again, err := d.ProcessReminders(context.Background(), Trigger{})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Processed())
	assert.Len(t, mailer.recipients(), 2)
}

func TestProcessRemindersOverlappingRunsSendOnce(t *testing.T) {
	f := newFixture(t)
	pre := f.charge(t, "ana", date(2024, 6, 15), models.ChargeStatusPending, nil)

	mailer := &fakeMailer{}
	shared := &memLocker{}
	gated := &gatedLocker{inner: shared, entered: make(chan struct{}), gate: make(chan struct{})}
	first := f.dispatcher(t, fakeComposer{}, mailer, shared)
	late := f.dispatcher(t, fakeComposer{}, mailer, gated)

	type outcome struct {
		report *Report
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := late.ProcessReminders(context.Background(), Trigger{})
		done <- outcome{r, err}
	}()

	// the late run has loaded and classified its candidates
	<-gated.entered

	report, err := first.ProcessReminders(context.Background(), Trigger{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed())

	close(gated.gate)
	out := <-done
	require.NoError(t, out.err)
	assert.Equal(t, 0, out.report.Processed())
	require.Len(t, out.report.Batches, 1)
	assert.Equal(t, BatchStale, out.report.Batches[0].Status)
	assert.Equal(t, models.ReminderPre, out.report.Batches[0].Type)

	assert.Equal(t, []string{"ana@example.com"}, mailer.recipients())
	assert.Equal(t, models.ReminderPre, reload(t, f.db, pre.ID).LastReminded())
}

func TestProcessRemindersSkipsChargePaidBeforeLock(t *testing.T) {
	f := newFixture(t)
	due := f.charge(t, "ana", date(2024, 6, 10), models.ChargeStatusPending, nil)

	mailer := &fakeMailer{}
	gated := &gatedLocker{inner: &memLocker{}, entered: make(chan struct{}), gate: make(chan struct{})}
	d := f.dispatcher(t, fakeComposer{}, mailer, gated)

	done := make(chan *Report, 1)
	go func() {
		r, err := d.ProcessReminders(context.Background(), Trigger{})
		assert.NoError(t, err)
		done <- r
	}()

	<-gated.entered
	require.NoError(t, f.db.Model(&models.Charge{}).Where("id = ?", due.ID).
		Update("status", models.ChargeStatusPaid).Error)
	close(gated.gate)

	report := <-done
	require.NotNil(t, report)
	require.Len(t, report.Batches, 1)
	assert.Equal(t, BatchStale, report.Batches[0].Status)
	assert.Empty(t, mailer.recipients())
}

func TestProcessRemindersManual(t *testing.T) {
	f := newFixture(t)
	suppressed := f.charge(t, "cam", date(2024, 6, 15), models.ChargeStatusPending, reminderPtr(models.ReminderPre))
	later := f.charge(t, "cam", date(2024, 7, 30), models.ChargeStatusPending, nil)
	f.charge(t, "ana", date(2024, 6, 15), models.ChargeStatusPending, nil)

	mailer := &fakeMailer{}
	d := f.dispatcher(t, fakeComposer{}, mailer, nil)

	report, err := d.ProcessReminders(context.Background(), Trigger{ChargeID: &later.ID})
	require.NoError(t, err)
	require.Len(t, report.Batches, 1)
	assert.Equal(t, models.ReminderManual, report.Batches[0].Type)
	assert.Equal(t, 2, report.Batches[0].ChargesSent)
	assert.Equal(t, []string{"cam@example.com"}, mailer.recipients())

	assert.Equal(t, models.ReminderManual, reload(t, f.db, suppressed.ID).LastReminded())

	missing := uint(9999)
	_, err = d.ProcessReminders(context.Background(), Trigger{ChargeID: &missing})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	bob := f.members["bob"].ID
	empty, err := d.ProcessReminders(context.Background(), Trigger{MemberID: &bob})
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Candidates)
	assert.Empty(t, empty.Batches)
}

func TestProcessRemindersComposerFallback(t *testing.T) {
	f := newFixture(t)
	f.charge(t, "ana", date(2024, 6, 10), models.ChargeStatusPending, nil)

	mailer := &fakeMailer{}
	d := f.dispatcher(t, fakeComposer{err: errors.New("groq down")}, mailer, nil)

	report, err := d.ProcessReminders(context.Background(), Trigger{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed())
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "Strimo - Tu pago vence hoy", mailer.sent[0].Subject)
	assert.Contains(t, mailer.sent[0].HTML, "Netflix")
}

func TestProcessRemindersSendFailureLeavesChargeUntouched(t *testing.T) {
	f := newFixture(t)
	c := f.charge(t, "ana", date(2024, 6, 10), models.ChargeStatusPending, nil)

	d := f.dispatcher(t, fakeComposer{}, &fakeMailer{err: errors.New("resend 500")}, nil)

	report, err := d.ProcessReminders(context.Background(), Trigger{})
	require.NoError(t, err)
	require.Len(t, report.Batches, 1)
	assert.Equal(t, BatchFailed, report.Batches[0].Status)
	assert.Contains(t, report.Batches[0].Error, "resend 500")
	assert.Nil(t, reload(t, f.db, c.ID).LastReminderType)
}

func TestProcessRemindersLockedMember(t *testing.T) {
	f := newFixture(t)
	f.charge(t, "ana", date(2024, 6, 10), models.ChargeStatusPending, nil)

	mailer := &fakeMailer{}
	d := f.dispatcher(t, fakeComposer{}, mailer, deniedLocker{})

	report, err := d.ProcessReminders(context.Background(), Trigger{})
	require.NoError(t, err)
	require.Len(t, report.Batches, 1)
	assert.Equal(t, BatchLocked, report.Batches[0].Status)
	assert.Empty(t, mailer.recipients())
}

func TestLoadPendingSummary(t *testing.T) {
	f := newFixture(t)
	f.charge(t, "ana", date(2024, 7, 1), models.ChargeStatusPending, nil)
	f.charge(t, "ana", date(2024, 6, 1), models.ChargeStatusPending, nil)
	f.charge(t, "ana", date(2024, 5, 1), models.ChargeStatusPaid, nil)

	s, err := LoadPendingSummary(context.Background(), f.db, f.members["ana"].ID)
	require.NoError(t, err)
	assert.Len(t, s.Charges, 2)
	assert.True(t, s.Total.Equal(decimal.NewFromInt(20000)))
	assert.Equal(t, "2024-06-01", s.DueDate.Format("2006-01-02"))

	_, err = LoadPendingSummary(context.Background(), f.db, 9999)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}
