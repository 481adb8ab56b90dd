package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/fmuoria/assessment-report-agent/internal/catalog"
	"github.com/fmuoria/assessment-report-agent/internal/config"
	"github.com/fmuoria/assessment-report-agent/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := Open(config.DatabaseConfig{Driver: "sqlite", DSN: dsn}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newTestStore(t *testing.T) *ReportStore {
	t.Helper()
	s := NewReportStore(openTestDB(t), catalog.Default(), zaptest.NewLogger(t))
	require.NoError(t, s.Migrate())
	return s
}

func TestReportLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	cat := catalog.Default()

	rc := models.NewReportContext(cat)
	rc.CandidateName = "Jane Doe"
	rc.Role = "Rådman"
	rc.Error = "should not be stored"

	id, err := s.Create(ctx, "anna", rc)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	loaded, err := s.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", loaded.CandidateName)
	assert.Empty(t, loaded.Error)
	assert.Equal(t, 3, loaded.Ratings.Get("leda_utveckla_och_engagera", "Leda andra"))

	loaded.Step = 4
	loaded.Ratings.Set("leda_utveckla_och_engagera", "Leda andra", 5)
	loaded.SetSection("tq_fardighet", "Stark verbal förmåga.")
	require.NoError(t, s.Save(ctx, id, loaded))

	again, err := s.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, again.Step)
	assert.Equal(t, 5, again.Ratings.Get("leda_utveckla_och_engagera", "Leda andra"))
	assert.Equal(t, "Stark verbal förmåga.", again.Section("tq_fardighet"))

	record, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe – Rådman", record.Title)
	assert.Equal(t, 4, record.Step)

	require.NoError(t, s.Delete(ctx, id))
	_, err = s.Load(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Save(ctx, id, again), ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, id), ErrNotFound)
}

func TestLoadUnknownReport(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListExcludesDeletedAndOtherOwners(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	cat := catalog.Default()

	mk := func(owner, name string) uuid.UUID {
		rc := models.NewReportContext(cat)
		rc.CandidateName = name
		id, err := s.Create(ctx, owner, rc)
		require.NoError(t, err)
		return id
	}

	first := mk("anna", "Första")
	time.Sleep(10 * time.Millisecond)
	second := mk("anna", "Andra")
	deleted := mk("anna", "Borttagen")
	mk("bertil", "Annan ägare")

	require.NoError(t, s.Delete(ctx, deleted))

	list, err := s.List(ctx, "anna")
	require.NoError(t, err)
	require.Len(t, list, 2)

	ids := []string{list[0].ID, list[1].ID}
	assert.ElementsMatch(t, []string{first.String(), second.String()}, ids)
	assert.Equal(t, second.String(), list[0].ID)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "mysql", DSN: "x"}, nil)
	assert.Error(t, err)
}
