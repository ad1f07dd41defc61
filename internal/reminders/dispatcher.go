package reminders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"subsplit_app_echo/internal/apperr"
	"subsplit_app_echo/internal/metrics"
	"subsplit_app_echo/internal/models"
	"subsplit_app_echo/internal/services"
)

// Composer writes the subject and body of a reminder from a prompt.
type Composer interface {
	ComposeMessage(ctx context.Context, prompt string) (services.ComposedMessage, error)
}

// Trigger selects what a dispatcher run covers. With neither id set the run
// is automatic; either id makes it a manual run over one member.
type Trigger struct {
	ChargeID *uint `json:"charge_id"`
	MemberID *uint `json:"member_id"`
}

func (t Trigger) Manual() bool {
	return t.ChargeID != nil || t.MemberID != nil
}

type BatchStatus string

const (
	BatchSent    BatchStatus = "sent"
	BatchFailed  BatchStatus = "failed"
	BatchNoEmail BatchStatus = "skipped_no_email"
	BatchLocked  BatchStatus = "locked"
	// BatchStale means another run sent or settled every charge of the batch
	// between loading and locking.
	BatchStale BatchStatus = "skipped_already_sent"
)

// BatchResult is the outcome of one notification batch.
type BatchResult struct {
	MemberID    uint                `json:"member_id"`
	Type        models.ReminderType `json:"type"`
	ChargesSent int                 `json:"charges_sent"`
	Status      BatchStatus         `json:"status"`
	Error       string              `json:"error,omitempty"`
}

// Report summarises a dispatcher run.
type Report struct {
	// Candidates is the number of pending charges considered before classification.
	Candidates int           `json:"candidates"`
	Batches    []BatchResult `json:"details"`
}

// Processed counts the batches that were actually sent.
func (r Report) Processed() int {
	n := 0
	for _, b := range r.Batches {
		if b.Status == BatchSent {
			n++
		}
	}
	return n
}

type DispatcherParams struct {
	DB          *gorm.DB
	Composer    Composer
	Mailer      services.Mailer
	Locker      services.Locker
	Logger      zerolog.Logger
	From        string
	Location    *time.Location
	Concurrency int
	LockTTL     time.Duration
}

// Dispatcher sends reminder emails for pending charges.
type Dispatcher struct {
	db          *gorm.DB
	composer    Composer
	mailer      services.Mailer
	locker      services.Locker
	log         zerolog.Logger
	from        string
	loc         *time.Location
	concurrency int
	lockTTL     time.Duration
	now         func() time.Time
}

func NewDispatcher(p DispatcherParams) (*Dispatcher, error) {
	if p.DB == nil || p.Composer == nil || p.Mailer == nil {
		return nil, errors.New("reminders: db, composer and mailer are required")
	}
	if p.Locker == nil {
		p.Locker = services.NoopLocker{}
	}
	if p.Location == nil {
		p.Location = time.UTC
	}
	if p.Concurrency < 1 {
		p.Concurrency = 1
	}
	if p.LockTTL <= 0 {
		p.LockTTL = 2 * time.Minute
	}
	return &Dispatcher{
		db:          p.DB,
		composer:    p.Composer,
		mailer:      p.Mailer,
		locker:      p.Locker,
		log:         p.Logger.With().Str("component", "reminder_dispatcher").Logger(),
		from:        p.From,
		loc:         p.Location,
		concurrency: p.Concurrency,
		lockTTL:     p.LockTTL,
		now:         time.Now,
	}, nil
}

// ProcessReminders sends every reminder due under trigger.
// Only loading the candidate charges can fail the run; a batch whose email
// cannot be rendered or sent is reported as failed in its BatchResult.
func (d *Dispatcher) ProcessReminders(ctx context.Context, trigger Trigger) (*Report, error) {
	charges, err := d.candidates(ctx, trigger)
	if err != nil {
		return nil, err
	}
	report := &Report{Candidates: len(charges)}
	if len(charges) == 0 {
		return report, nil
	}

	var byMember [][]Batch
	if trigger.Manual() {
		byMember = groupManual(charges)
	} else {
		byMember = groupAuto(charges, d.now().In(d.loc))
	}

	results := make([][]BatchResult, len(byMember))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, batches := range byMember {
		g.Go(func() error {
			results[i] = d.processMember(gctx, batches)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		report.Batches = append(report.Batches, r...)
	}

	d.log.Info().
		Bool("manual", trigger.Manual()).
		Int("candidates", report.Candidates).
		Int("batches", len(report.Batches)).
		Int("sent", report.Processed()).
		Msg("reminder run finished")
	return report, nil
}

func (d *Dispatcher) candidates(ctx context.Context, trigger Trigger) ([]models.Charge, error) {
	q := d.db.WithContext(ctx).
		Preload("Member").Preload("Platform").
		Where("status = ?", models.ChargeStatusPending)

	switch {
	case trigger.ChargeID != nil:
		var anchor models.Charge
		if err := d.db.WithContext(ctx).Select("id", "member_id").First(&anchor, *trigger.ChargeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.NotFound("charge %d not found", *trigger.ChargeID)
			}
			return nil, apperr.Wrap(err, apperr.CodeInternal, "loading trigger charge")
		}
		q = q.Where("member_id = ?", anchor.MemberID)
	case trigger.MemberID != nil:
		q = q.Where("member_id = ?", *trigger.MemberID)
	}

	var charges []models.Charge
	if err := q.Order("member_id ASC").Order("due_date ASC").Order("id ASC").Find(&charges).Error; err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "loading pending charges")
	}
	return charges, nil
}

// groupManual puts each member's whole pending set in one manual batch.
func groupManual(charges []models.Charge) [][]Batch {
	var out [][]Batch
	index := map[uint]int{}
	for _, c := range charges {
		i, ok := index[c.MemberID]
		if !ok {
			i = len(out)
			index[c.MemberID] = i
			out = append(out, []Batch{{Member: c.Member, Type: models.ReminderManual}})
		}
		out[i][0].Charges = append(out[i][0].Charges, c)
	}
	return out
}

var typeRank = map[models.ReminderType]int{
	models.ReminderPre:     0,
	models.ReminderDue:     1,
	models.ReminderOverdue: 2,
}

// groupAuto classifies every charge and groups the eligible ones by
// (member, type). Batches of one member stay together so they share a lock.
func groupAuto(charges []models.Charge, today time.Time) [][]Batch {
	type key struct {
		member uint
		kind   models.ReminderType
	}
	batches := map[key]*Batch{}
	var keys []key
	for _, c := range charges {
		t := Classify(c, today)
		if t == models.ReminderNone {
			continue
		}
		k := key{member: c.MemberID, kind: t}
		b, ok := batches[k]
		if !ok {
			b = &Batch{Member: c.Member, Type: t}
			batches[k] = b
			keys = append(keys, k)
		}
		b.Charges = append(b.Charges, c)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].member != keys[j].member {
			return keys[i].member < keys[j].member
		}
		return typeRank[keys[i].kind] < typeRank[keys[j].kind]
	})

	var out [][]Batch
	for i, k := range keys {
		if i == 0 || keys[i-1].member != k.member {
			out = append(out, nil)
		}
		out[len(out)-1] = append(out[len(out)-1], *batches[k])
	}
	return out
}

func (d *Dispatcher) processMember(ctx context.Context, batches []Batch) []BatchResult {
	results := make([]BatchResult, 0, len(batches))
	member := batches[0].Member
	log := d.log.With().Uint("member_id", member.ID).Logger()

	record := func(b Batch, status BatchStatus, err error) {
		r := BatchResult{MemberID: member.ID, Type: b.Type, Status: status}
		if status == BatchSent {
			r.ChargesSent = len(b.Charges)
		}
		if err != nil {
			r.Error = err.Error()
		}
		metrics.Reminders.WithLabelValues(string(b.Type), string(status)).Inc()
		results = append(results, r)
	}

	if !member.HasEmail() {
		log.Debug().Msg("member has no email, skipping reminders")
		for _, b := range batches {
			record(b, BatchNoEmail, nil)
		}
		return results
	}

	release, ok, err := d.locker.TryLock(ctx, fmt.Sprintf("reminder:member:%d", member.ID), d.lockTTL)
	if err != nil || !ok {
		if err != nil {
			log.Warn().Err(err).Msg("reminder lock unavailable")
		} else {
			log.Info().Msg("another run holds the reminder lock, skipping")
		}
		for _, b := range batches {
			record(b, BatchLocked, err)
		}
		return results
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("releasing reminder lock")
		}
	}()

	for _, b := range batches {
		fresh, err := d.refresh(ctx, b)
		if err != nil {
			log.Error().Err(err).Str("type", string(b.Type)).Msg("reloading reminder batch")
			record(b, BatchFailed, err)
			continue
		}
		if len(fresh.Charges) == 0 {
			log.Info().Str("type", string(b.Type)).Msg("reminder already handled by another run")
			record(b, BatchStale, nil)
			continue
		}
		b = fresh

		if err := d.send(ctx, b); err != nil {
			log.Error().Err(err).Str("type", string(b.Type)).Int("charges", len(b.Charges)).Msg("reminder not sent")
			record(b, BatchFailed, err)
			continue
		}
		record(b, BatchSent, nil)
	}
	return results
}

// refresh reloads the batch's charges once the member lock is held and keeps
// only those still pending and, for automatic batches, still due for the
// batch's milestone.
func (d *Dispatcher) refresh(ctx context.Context, b Batch) (Batch, error) {
	var charges []models.Charge
	err := d.db.WithContext(ctx).
		Preload("Member").Preload("Platform").
		Where("id IN ? AND status = ?", b.ChargeIDs(), models.ChargeStatusPending).
		Order("due_date ASC").Order("id ASC").
		Find(&charges).Error
	if err != nil {
		return b, fmt.Errorf("reload charges: %w", err)
	}

	today := d.now().In(d.loc)
	kept := charges[:0]
	for _, c := range charges {
		if b.Type == models.ReminderManual || Classify(c, today) == b.Type {
			kept = append(kept, c)
		}
	}
	b.Charges = kept
	return b, nil
}

func (d *Dispatcher) send(ctx context.Context, b Batch) error {
	platforms := b.PlatformNames()

	msg, err := d.composer.ComposeMessage(ctx, BuildPrompt(b.Member.Name, platforms, b.Type))
	if err != nil {
		d.log.Warn().Err(err).Uint("member_id", b.Member.ID).Msg("composing reminder failed, using fallback text")
		msg = FallbackMessage(b.Member.Name, platforms, b.Type)
	}
	if msg.Subject == "" {
		msg.Subject = FallbackMessage(b.Member.Name, platforms, b.Type).Subject
	}

	html, err := RenderEmail(b, msg.Message)
	if err != nil {
		return fmt.Errorf("render email: %w", err)
	}

	err = d.mailer.SendEmail(ctx, services.Email{
		From:    d.from,
		To:      []string{b.Member.Email},
		Subject: msg.Subject,
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	// The email is out; a stamping failure means the next run may repeat it.
	err = d.db.WithContext(context.WithoutCancel(ctx)).
		Model(&models.Charge{}).
		Where("id IN ?", b.ChargeIDs()).
		Updates(map[string]interface{}{
			"last_reminder_at":   d.now().UTC(),
			"last_reminder_type": string(b.Type),
		}).Error
	if err != nil {
		d.log.Error().Err(err).Uint("member_id", b.Member.ID).Msg("stamping reminded charges")
	}
	return nil
}
