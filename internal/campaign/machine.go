// Package campaign implements the email workflows: the stateful candidate digest
// and content newsletter, the stateless job roundup and single article sends.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/talentmail/internal/models"
	"github.com/garnizeh/talentmail/pkg/repository"
)

var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by campaign. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Mailer is the mail platform surface the workflows use.
type Mailer interface {
	OptInRecipients(ctx context.Context) ([]models.Recipient, error)
	TestRecipient() (models.Recipient, bool)
	Send(ctx context.Context, recipients []models.Recipient, templateID int64, params any) error
}

// Notifier receives operator-facing messages. Delivery failures are only logged.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Source produces the payload of one stateful campaign.
type Source interface {
	Campaign() models.Campaign
	// Label is the human name used in result messages.
	Label() string
	TemplateID() int64
	// Generate fills the payload fields of s and returns a summary message. An
	// empty pool is reported as ErrNoMaterial.
	Generate(ctx context.Context, s *models.CampaignState) (string, error)
	// Params builds the mail template params from a generated snapshot.
	Params(s models.CampaignState) any
}

const persistTimeout = 10 * time.Second

// Machine serializes the transitions of one campaign:
// EMPTY -> GENERATED -> TESTED -> SENT -> (after ResetDelay) EMPTY.
type Machine struct {
	src        Source
	repo       repository.StateRepo
	mailer     Mailer
	notifier   Notifier
	resetDelay time.Duration
	now        func() time.Time

	mu     sync.Mutex
	timer  *time.Timer
	resets sync.WaitGroup
	closed bool

	// timerSeq identifies the most recently scheduled reset.
	timerSeq uint64
}

type MachineConfig struct {
	ResetDelay time.Duration
	Notifier   Notifier
}

func NewMachine(src Source, repo repository.StateRepo, mailer Mailer, cfg MachineConfig) *Machine {
	if cfg.ResetDelay <= 0 {
		cfg.ResetDelay = 2 * time.Second
	}
	return &Machine{
		src:        src,
		repo:       repo,
		mailer:     mailer,
		notifier:   cfg.Notifier,
		resetDelay: cfg.ResetDelay,
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

func (m *Machine) Campaign() models.Campaign { return m.src.Campaign() }

func (m *Machine) log() *slog.Logger {
	return logger.With(slog.String("campaign", string(m.src.Campaign())))
}

// State returns the persisted snapshot.
func (m *Machine) State(ctx context.Context) (models.CampaignState, error) {
	return m.repo.LoadState(ctx, m.src.Campaign())
}

// stopTimerLocked cancels a pending deferred reset. Callers hold m.mu.
func (m *Machine) stopTimerLocked() {
	if m.timer == nil {
		return
	}
	if m.timer.Stop() {
		m.resets.Done()
	}
	m.timer = nil
}

func (m *Machine) notify(ctx context.Context, text string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(ctx, text); err != nil {
		m.log().Warn("notify failed", slog.Any("err", err))
	}
}

// Generate gathers fresh material and moves to GENERATED. It is legal from
// every state and cancels a pending deferred reset.
func (m *Machine) Generate(ctx context.Context) Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimerLocked()

	c := m.src.Campaign()
	next := models.EmptyState(c)
	msg, err := m.src.Generate(ctx, &next)
	if err != nil {
		m.log().Warn("generate failed", slog.Any("err", err))
		return failed(err, nil)
	}

	now := m.now()
	next.Campaign = c
	next.State = models.StateGenerated
	next.RunID = uuid.NewString()
	next.GeneratedAt = &now

	if err := m.repo.SaveState(ctx, next); err != nil {
		m.log().Error("persist generated state", slog.Any("err", err))
		return failed(fmt.Errorf("persist state: %w", err), nil)
	}

	m.log().Info("generated", slog.String("run_id", next.RunID), slog.Int("pool_size", next.PoolSize))
	return ok(msg, next)
}

func (m *Machine) templateID() (int64, error) {
	id := m.src.TemplateID()
	if id <= 0 {
		return 0, fmt.Errorf("%w: no mail template configured for %s", ErrConfig, m.src.Campaign())
	}
	return id, nil
}

// SendTest mails the generated content to the test recipient and moves to TESTED.
func (m *Machine) SendTest(ctx context.Context) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.repo.LoadState(ctx, m.src.Campaign())
	if err != nil {
		return failed(fmt.Errorf("load state: %w", err), nil)
	}
	if s.State != models.StateGenerated && s.State != models.StateTested {
		return failed(fmt.Errorf("%w: no %s generated, generate first (state is %s)", ErrInvalidState, m.src.Label(), s.State), s)
	}

	to, okRecipient := m.mailer.TestRecipient()
	if !okRecipient {
		return failed(fmt.Errorf("%w: test email not configured", ErrConfig), s)
	}
	tpl, err := m.templateID()
	if err != nil {
		return failed(err, s)
	}

	if err := m.mailer.Send(ctx, []models.Recipient{to}, tpl, m.src.Params(s)); err != nil {
		m.log().Error("test send failed", slog.Any("err", err))
		return failed(fmt.Errorf("send test: %w", err), s)
	}

	now := m.now()
	s.State = models.StateTested
	s.TestSentAt = &now
	m.persistAfterSend(s)

	m.log().Info("test sent", slog.String("email", to.Email))
	return ok("Test email sent to "+to.Email, s)
}

// SendToAll mails every opt-in recipient and moves to SENT. The state returns
// to EMPTY after the reset delay unless a newer generation happened meanwhile.
func (m *Machine) SendToAll(ctx context.Context) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.repo.LoadState(ctx, m.src.Campaign())
	if err != nil {
		return failed(fmt.Errorf("load state: %w", err), nil)
	}
	if s.State != models.StateTested {
		return failed(fmt.Errorf("%w: must send test email first before sending to all recipients (state is %s)", ErrInvalidState, s.State), s)
	}
	tpl, err := m.templateID()
	if err != nil {
		return failed(err, s)
	}

	recipients, err := m.mailer.OptInRecipients(ctx)
	if err != nil {
		return failed(fmt.Errorf("fetch recipients: %w", err), s)
	}
	if len(recipients) == 0 {
		return failed(fmt.Errorf("%w: no contacts opted in", ErrNoRecipients), s)
	}

	if err := m.mailer.Send(ctx, recipients, tpl, m.src.Params(s)); err != nil {
		m.log().Error("bulk send failed", slog.Any("err", err))
		return failed(fmt.Errorf("send: %w", err), s)
	}

	now := m.now()
	s.State = models.StateSent
	s.SentAt = &now
	m.persistAfterSend(s)
	m.scheduleResetLocked(now, s.RunID)

	msg := fmt.Sprintf("%s sent to %d recipients", m.src.Label(), len(recipients))
	m.log().Info("sent to all", slog.Int("count", len(recipients)))
	m.notify(ctx, msg)
	return ok(msg, s)
}

// persistAfterSend saves a post-send snapshot. The email is already out, so a
// failure is logged and does not fail the transition.
func (m *Machine) persistAfterSend(s models.CampaignState) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := m.repo.SaveState(ctx, s); err != nil {
		m.log().Error("persist state after send", slog.String("state", string(s.State)), slog.Any("err", err))
	}
}

func (m *Machine) scheduleResetLocked(sentAt time.Time, runID string) {
	m.stopTimerLocked()
	if m.closed {
		return
	}
	m.resets.Add(1)
	m.timerSeq++
	seq := m.timerSeq
	m.timer = time.AfterFunc(m.resetDelay, func() {
		defer m.resets.Done()
		m.deferredReset(seq, sentAt, runID)
	})
}

// deferredReset clears the snapshot only if it still belongs to the run that
// was sent. A callback that lost the race to a newer schedule leaves m.timer alone.
func (m *Machine) deferredReset(seq uint64, sentAt time.Time, runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq == m.timerSeq {
		m.timer = nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	s, err := m.repo.LoadState(ctx, m.src.Campaign())
	if err != nil {
		m.log().Error("deferred reset: load state", slog.Any("err", err))
		return
	}
	if s.RunID != runID || (s.SentAt != nil && !s.SentAt.Equal(sentAt)) {
		m.log().Info("deferred reset skipped, state changed", slog.String("state", string(s.State)))
		return
	}
	if err := m.repo.SaveState(ctx, models.EmptyState(m.src.Campaign())); err != nil {
		m.log().Error("deferred reset: persist", slog.Any("err", err))
		return
	}
	m.log().Info("state reset after send")
}

// Reset returns to EMPTY. It always succeeds; persistence is best effort.
func (m *Machine) Reset(ctx context.Context) Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimerLocked()

	empty := models.EmptyState(m.src.Campaign())
	if err := m.repo.SaveState(ctx, empty); err != nil {
		m.log().Error("persist reset", slog.Any("err", err))
	}
	return ok("State reset successfully", empty)
}

// Close cancels a pending deferred reset and waits for a running one.
func (m *Machine) Close() {
	m.mu.Lock()
	m.closed = true
	m.stopTimerLocked()
	m.mu.Unlock()
	m.resets.Wait()
}

// IsKind reports whether r failed with target.
func (r Result) IsKind(target error) bool {
	return r.Err != nil && errors.Is(r.Err, target)
}
