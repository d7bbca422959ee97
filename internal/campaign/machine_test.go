package campaign_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garnizeh/talentmail/internal/campaign"
	"github.com/garnizeh/talentmail/internal/models"
	"github.com/garnizeh/talentmail/pkg/repository/mock"
)

func newDigest(t *testing.T, n int, delay time.Duration) (*campaign.Machine, *mock.StateRepo, *fakeMailer) {
	t.Helper()
	repo := mock.NewStateRepo()
	mailer := newMailer(3)
	src := &campaign.DigestSource{Discoverer: &fakeDiscoverer{pool: pool(n)}, Template: 42}
	m := campaign.NewMachine(src, repo, mailer, campaign.MachineConfig{ResetDelay: delay})
	t.Cleanup(m.Close)
	return m, repo, mailer
}

func state(t *testing.T, repo *mock.StateRepo) models.CampaignState {
	t.Helper()
	s, err := repo.LoadState(context.Background(), models.CampaignDigest)
	require.NoError(t, err)
	return s
}

func TestMachine_Guards(t *testing.T) {
	ctx := context.Background()
	m, repo, mailer := newDigest(t, 5, time.Hour)

	r := m.SendTest(ctx)
	assert.False(t, r.Success)
	assert.True(t, r.IsKind(campaign.ErrInvalidState), r.Message)

	require.True(t, m.Generate(ctx).Success)

	r = m.SendToAll(ctx)
	assert.False(t, r.Success)
	assert.True(t, r.IsKind(campaign.ErrInvalidState), r.Message)
	assert.Empty(t, mailer.Sends())
	assert.Equal(t, models.StateGenerated, state(t, repo).State)
}

func TestMachine_FullCycleResetsAfterDelay(t *testing.T) {
	ctx := context.Background()
	m, repo, mailer := newDigest(t, 5, 50*time.Millisecond)

	require.True(t, m.Generate(ctx).Success)

	r := m.SendTest(ctx)
	require.True(t, r.Success, r.Message)
	assert.Equal(t, "Test email sent to qa@example.com", r.Message)
	assert.Equal(t, models.StateTested, state(t, repo).State)

	// repeat test sends are allowed
	require.True(t, m.SendTest(ctx).Success)

	r = m.SendToAll(ctx)
	require.True(t, r.Success, r.Message)
	assert.Equal(t, "A-List sent to 3 recipients", r.Message)

	sends := mailer.Sends()
	require.Len(t, sends, 3)
	assert.Len(t, sends[2].To, 3)
	assert.Equal(t, int64(42), sends[2].Template)

	s := state(t, repo)
	assert.Equal(t, models.StateSent, s.State)
	require.NotNil(t, s.SentAt)

	require.Eventually(t, func() bool {
		s, err := repo.LoadState(ctx, models.CampaignDigest)
		return err == nil && s.State == models.StateEmpty
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, models.EmptyState(models.CampaignDigest), state(t, repo))
}

func TestMachine_GenerateLegalFromSent(t *testing.T) {
	ctx := context.Background()
	m, repo, _ := newDigest(t, 5, time.Hour)

	require.True(t, m.Generate(ctx).Success)
	require.True(t, m.SendTest(ctx).Success)
	require.True(t, m.SendToAll(ctx).Success)
	first := state(t, repo).RunID

	require.True(t, m.Generate(ctx).Success)
	s := state(t, repo)
	assert.Equal(t, models.StateGenerated, s.State)
	assert.NotEqual(t, first, s.RunID)
	assert.Nil(t, s.SentAt)
}

func TestMachine_DeferredResetKeepsNewerState(t *testing.T) {
	ctx := context.Background()
	m, repo, _ := newDigest(t, 5, 30*time.Millisecond)

	require.True(t, m.Generate(ctx).Success)
	require.True(t, m.SendTest(ctx).Success)
	require.True(t, m.SendToAll(ctx).Success)

	// another writer replaces the snapshot before the reset fires
	now := time.Now().UTC()
	newer := models.CampaignState{
		Campaign:    models.CampaignDigest,
		State:       models.StateGenerated,
		RunID:       "newer-run",
		GeneratedAt: &now,
	}
	repo.Put(newer)

	time.Sleep(100 * time.Millisecond)
	s := state(t, repo)
	assert.Equal(t, models.StateGenerated, s.State)
	assert.Equal(t, "newer-run", s.RunID)
}

func TestMachine_ResetIdempotent(t *testing.T) {
	ctx := context.Background()
	m, repo, _ := newDigest(t, 5, time.Hour)

	require.True(t, m.Generate(ctx).Success)

	first := m.Reset(ctx)
	require.True(t, first.Success)
	assert.Equal(t, "State reset successfully", first.Message)
	a := state(t, repo)

	second := m.Reset(ctx)
	require.True(t, second.Success)
	b := state(t, repo)

	assert.Equal(t, a, b)
	assert.Equal(t, models.EmptyState(models.CampaignDigest), b)
}

func TestMachine_ResetSucceedsWhenPersistFails(t *testing.T) {
	m, repo, _ := newDigest(t, 5, time.Hour)
	repo.SetSaveErr(errors.New("disk full"))

	r := m.Reset(context.Background())
	assert.True(t, r.Success)
}

func TestMachine_PersistFailureAfterSendStillSucceeds(t *testing.T) {
	ctx := context.Background()
	m, repo, mailer := newDigest(t, 5, time.Hour)

	require.True(t, m.Generate(ctx).Success)
	repo.SetSaveErr(errors.New("disk full"))

	r := m.SendTest(ctx)
	assert.True(t, r.Success, r.Message)
	assert.Len(t, mailer.Sends(), 1)
	assert.Equal(t, models.StateGenerated, state(t, repo).State)
}

func TestMachine_GeneratePersistFailure(t *testing.T) {
	m, repo, _ := newDigest(t, 5, time.Hour)
	repo.SetSaveErr(errors.New("disk full"))

	r := m.Generate(context.Background())
	assert.False(t, r.Success)
	assert.Contains(t, r.Message, "disk full")
}

func TestMachine_SendTestWithoutRecipient(t *testing.T) {
	ctx := context.Background()
	m, _, mailer := newDigest(t, 5, time.Hour)
	mailer.test = nil

	require.True(t, m.Generate(ctx).Success)
	r := m.SendTest(ctx)
	assert.False(t, r.Success)
	assert.True(t, r.IsKind(campaign.ErrConfig))
	assert.Empty(t, mailer.Sends())
}

func TestMachine_SendToAllWithoutRecipients(t *testing.T) {
	ctx := context.Background()
	m, repo, mailer := newDigest(t, 5, time.Hour)
	mailer.recipients = nil

	require.True(t, m.Generate(ctx).Success)
	require.True(t, m.SendTest(ctx).Success)

	r := m.SendToAll(ctx)
	assert.False(t, r.Success)
	assert.True(t, r.IsKind(campaign.ErrNoRecipients))
	assert.Equal(t, models.StateTested, state(t, repo).State)
}

func TestMachine_MissingTemplate(t *testing.T) {
	ctx := context.Background()
	repo := mock.NewStateRepo()
	mailer := newMailer(1)
	src := &campaign.DigestSource{Discoverer: &fakeDiscoverer{pool: pool(2)}}
	m := campaign.NewMachine(src, repo, mailer, campaign.MachineConfig{})
	defer m.Close()

	require.True(t, m.Generate(ctx).Success)
	r := m.SendTest(ctx)
	assert.True(t, r.IsKind(campaign.ErrConfig))
	assert.Empty(t, mailer.Sends())
}

func TestMachine_SendFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	m, repo, mailer := newDigest(t, 5, time.Hour)
	require.True(t, m.Generate(ctx).Success)

	mailer.sendErr = errors.New("brevo down")
	r := m.SendTest(ctx)
	assert.False(t, r.Success)
	assert.Equal(t, models.StateGenerated, state(t, repo).State)
}

func TestMachine_NotifiesOnBulkSend(t *testing.T) {
	ctx := context.Background()
	repo := mock.NewStateRepo()
	n := &fakeNotifier{}
	src := &campaign.DigestSource{Discoverer: &fakeDiscoverer{pool: pool(1)}, Template: 1}
	m := campaign.NewMachine(src, repo, newMailer(2), campaign.MachineConfig{ResetDelay: time.Hour, Notifier: n})
	defer m.Close()

	require.True(t, m.Generate(ctx).Success)
	require.True(t, m.SendTest(ctx).Success)
	require.True(t, m.SendToAll(ctx).Success)
	assert.Equal(t, []string{"A-List sent to 2 recipients"}, n.Messages())
}
