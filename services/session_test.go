package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vnkhanh/companion-tutor-backend/models"
	"github.com/vnkhanh/companion-tutor-backend/testhelpers"
)

func newSessionService(t *testing.T) (*SessionService, *gorm.DB, *fakeFetcher, *recordingPublisher) {
	t.Helper()
	db := testhelpers.SetupTestDB(t)
	fetcher := &fakeFetcher{transcripts: map[string]string{}}
	events := &recordingPublisher{}
	return NewSessionService(db, fetcher, events, zap.NewNop()), db, fetcher, events
}

func TestSessionStart(t *testing.T) {
	svc, db, _, _ := newSessionService(t)
	ctx := context.Background()
	c := testhelpers.SeedCompanion(t, db, "owner")

	session, err := svc.Start(ctx, c.ID, "owner")
	require.NoError(t, err)
	assert.Equal(t, models.SessionCreated, session.State())
	assert.Nil(t, session.CallID)
	assert.Equal(t, c.ID, session.CompanionID)

	_, err = svc.Start(ctx, c.ID, "intruder")
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = svc.Start(ctx, uuid.New(), "owner")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionLinkCallID(t *testing.T) {
	svc, db, _, events := newSessionService(t)
	ctx := context.Background()
	c := testhelpers.SeedCompanion(t, db, "owner")
	session := testhelpers.SeedSession(t, db, c, "owner", "")

	linked, err := svc.LinkCallID(ctx, session.ID, "owner", "call-123")
	require.NoError(t, err)
	assert.Equal(t, models.SessionLinked, linked.State())
	require.Len(t, events.events, 1)
	assert.Equal(t, EventSessionLinked, events.events[0].Type)
	assert.Equal(t, "owner", events.users[0])

	// cùng call_id: no-op, không phát thêm sự kiện
	_, err = svc.LinkCallID(ctx, session.ID, "owner", "call-123")
	require.NoError(t, err)
	assert.Len(t, events.events, 1)

	_, err = svc.LinkCallID(ctx, session.ID, "owner", "call-999")
	assert.ErrorIs(t, err, ErrCallIDConflict)

	_, err = svc.LinkCallID(ctx, session.ID, "intruder", "call-123")
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = svc.LinkCallID(ctx, session.ID, "owner", "  ")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	var stored models.SessionHistory
	require.NoError(t, db.First(&stored, "id = ?", session.ID).Error)
	require.NotNil(t, stored.CallID)
	assert.Equal(t, "call-123", *stored.CallID)
}

func TestSessionLink_LostRaceWithSameCallID(t *testing.T) {
	svc, db, _, _ := newSessionService(t)
	ctx := context.Background()
	c := testhelpers.SeedCompanion(t, db, "owner")
	session := testhelpers.SeedSession(t, db, c, "owner", "")

	// bản đang giữ trong bộ nhớ chưa thấy call_id mà request khác vừa ghi
	stale := *session
	require.NoError(t, db.Model(&models.SessionHistory{}).Where("id = ?", session.ID).Update("call_id", "call-1").Error)

	assert.NoError(t, svc.link(ctx, &stale, "call-1"))
	stale.CallID = nil
	assert.ErrorIs(t, svc.link(ctx, &stale, "call-2"), ErrCallIDConflict)
}

func TestSessionLists(t *testing.T) {
	svc, db, _, _ := newSessionService(t)
	ctx := context.Background()
	c := testhelpers.SeedCompanion(t, db, "owner")
	other := testhelpers.SeedCompanion(t, db, "other")

	base := time.Now().UTC().Add(-time.Hour)
	seed := func(companion *models.Companion, user, callID string, offset time.Duration) *models.SessionHistory {
		s := &models.SessionHistory{CompanionID: companion.ID, UserID: user, CreatedAt: base.Add(offset)}
		if callID != "" {
			s.CallID = &callID
		}
		require.NoError(t, db.Create(s).Error)
		return s
	}
	oldest := seed(c, "owner", "call-1", 0)
	middle := seed(c, "owner", "", time.Minute)
	newest := seed(c, "owner", "call-3", 2*time.Minute)
	foreign := seed(other, "other", "call-4", 3*time.Minute)

	mine, err := svc.ListByUser(ctx, "owner", 2)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, newest.ID, mine[0].ID)
	assert.Equal(t, middle.ID, mine[1].ID)
	require.NotNil(t, mine[0].Companion)
	assert.Equal(t, c.Name, mine[0].Companion.Name)

	linked, err := svc.ListWithCallIDs(ctx, "owner")
	require.NoError(t, err)
	require.Len(t, linked, 2)
	assert.Equal(t, newest.ID, linked[0].ID)
	assert.Equal(t, oldest.ID, linked[1].ID)

	recent, err := svc.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, foreign.ID, recent[0].ID)
	assert.Equal(t, other.ID, recent[0].Companion.ID)
}

func TestSessionTranscript(t *testing.T) {
	svc, db, fetcher, _ := newSessionService(t)
	ctx := context.Background()
	c := testhelpers.SeedCompanion(t, db, "owner")
	pending := testhelpers.SeedSession(t, db, c, "owner", "")
	linked := testhelpers.SeedSession(t, db, c, "owner", "call-1")
	fetcher.transcripts["call-1"] = "AI: Hello. User: Hi."

	_, err := svc.Transcript(ctx, pending.ID, "owner")
	assert.ErrorIs(t, err, ErrSessionNotLinked)
	assert.Empty(t, fetcher.calls)

	transcript, err := svc.Transcript(ctx, linked.ID, "owner")
	require.NoError(t, err)
	assert.Equal(t, "AI: Hello. User: Hi.", transcript)

	_, err = svc.Transcript(ctx, linked.ID, "intruder")
	assert.ErrorIs(t, err, ErrAccessDenied)
}
