package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dnelles/task-tracker/internal/google"
	"github.com/dnelles/task-tracker/internal/tasks"
	"github.com/dnelles/task-tracker/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokens struct {
	rec *vault.TokenRecord
	err error
}

func (f fakeTokens) Upsert(context.Context, vault.TokenRecord) error { return nil }
func (f fakeTokens) Delete(context.Context, string) error            { return nil }
func (f fakeTokens) Get(context.Context, string) (*vault.TokenRecord, error) {
	return f.rec, f.err
}

type fakeRefresher struct {
	token string
	err   error
	calls int
}

func (f *fakeRefresher) Refresh(context.Context, string) (string, int64, error) {
	f.calls++
	return f.token, 3600, f.err
}

type fakeTaskGetter struct {
	byID map[string]*tasks.Task
}

func (f fakeTaskGetter) Get(_ context.Context, _, id string) (*tasks.Task, error) {
	return f.byID[id], nil
}

type fakeInserter struct {
	failTitles map[string]bool
	inserted   []google.TaskItem
}

func (f *fakeInserter) Insert(_ context.Context, _ string, item google.TaskItem) error {
	if f.failTitles[item.Title] {
		return errors.New("insert rejected")
	}
	f.inserted = append(f.inserted, item)
	return nil
}

func connectedTokens() fakeTokens {
	return fakeTokens{rec: &vault.TokenRecord{
		UID: "u1", Provider: "tasks", RefreshToken: "rt1", CreatedAt: time.Now(),
	}}
}

func TestSync_EmptySelection(t *testing.T) {
	t.Parallel()

	refresher := &fakeRefresher{token: "at1"}
	d := NewDispatcher(connectedTokens(), refresher, fakeTaskGetter{}, &fakeInserter{})

	_, err := d.Sync(context.Background(), "u1", nil)

	assert.ErrorIs(t, err, ErrEmptySelection)
	assert.Zero(t, refresher.calls, "no network call before the precondition checks")
}

func TestSync_NotConnected(t *testing.T) {
	t.Parallel()

	refresher := &fakeRefresher{token: "at1"}
	d := NewDispatcher(fakeTokens{}, refresher, fakeTaskGetter{}, &fakeInserter{})

	_, err := d.Sync(context.Background(), "u1", []string{"t1"})

	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Zero(t, refresher.calls)
}

func TestSync_RefreshFailureFailsBatch(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(
		connectedTokens(),
		&fakeRefresher{err: errors.New("invalid_grant")},
		fakeTaskGetter{},
		&fakeInserter{},
	)

	_, err := d.Sync(context.Background(), "u1", []string{"t1", "t2"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestSync_PartialBatch(t *testing.T) {
	t.Parallel()

	getter := fakeTaskGetter{byID: map[string]*tasks.Task{
		"t1": {ID: "t1", Title: "alpha"},
		"t2": {ID: "t2", Title: "beta"},
		"t3": {ID: "t3", Title: "gamma"},
	}}
	inserter := &fakeInserter{failTitles: map[string]bool{"beta": true}}
	refresher := &fakeRefresher{token: "at1"}
	d := NewDispatcher(connectedTokens(), refresher, getter, inserter)

	result, err := d.Sync(context.Background(), "u1", []string{"t1", "t2", "t3"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Synced)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, "partial", result.Outcome())
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "t2", result.Errors[0].TaskID)

	// One refresh-grant call covers the whole batch.
	assert.Equal(t, 1, refresher.calls)
}

func TestSync_UnknownTaskCountsAsFailed(t *testing.T) {
	t.Parallel()

	getter := fakeTaskGetter{byID: map[string]*tasks.Task{
		"t1": {ID: "t1", Title: "alpha"},
	}}
	d := NewDispatcher(connectedTokens(), &fakeRefresher{token: "at1"}, getter, &fakeInserter{})

	result, err := d.Sync(context.Background(), "u1", []string{"t1", "ghost"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Synced)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "ghost", result.Errors[0].TaskID)
	assert.Equal(t, "task not found", result.Errors[0].Message)
}

func TestSync_AllFailedOutcome(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(connectedTokens(), &fakeRefresher{token: "at1"}, fakeTaskGetter{}, &fakeInserter{})

	result, err := d.Sync(context.Background(), "u1", []string{"ghost1", "ghost2"})
	require.NoError(t, err)

	assert.Equal(t, "failed", result.Outcome())
	assert.Zero(t, result.Synced)
	assert.Equal(t, 2, result.Failed)
}

func TestRemoteItem_DueDate(t *testing.T) {
	t.Parallel()

	due := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	item := remoteItem(tasks.Task{
		Title:   "Essay draft",
		Notes:   "two pages",
		DueDate: &due,
	})

	assert.Equal(t, "📅 Essay draft", item.Title)
	assert.Equal(t, "two pages", item.Notes)
	assert.Equal(t, "2026-03-15T10:30:00Z", item.Due)
}

func TestRemoteItem_NoDueDate(t *testing.T) {
	t.Parallel()

	item := remoteItem(tasks.Task{Title: "Essay draft"})

	assert.Equal(t, "Essay draft", item.Title)
	assert.Empty(t, item.Due)
}
