// Package sync pushes selected local tasks to the external provider's
// task list. One access token is minted per batch; per-item failures are
// tallied instead of aborting the batch.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dnelles/task-tracker/internal/google"
	"github.com/dnelles/task-tracker/internal/logger"
	"github.com/dnelles/task-tracker/internal/tasks"
	"github.com/dnelles/task-tracker/internal/vault"
)

var (
	ErrNotConnected   = errors.New("google account not connected")
	ErrEmptySelection = errors.New("empty selection")
)

// Deadline items get a visual flag in the remote list.
const dueTitlePrefix = "📅 "

// TokenRefresher mints a short-lived access token from a refresh token.
// Satisfied by *google.Provider.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (accessToken string, expiresIn int64, err error)
}

// ItemInserter creates one remote task item. Satisfied by *google.TasksClient.
type ItemInserter interface {
	Insert(ctx context.Context, accessToken string, item google.TaskItem) error
}

// TaskGetter loads one task owned by uid. Satisfied by the tasks store.
type TaskGetter interface {
	Get(ctx context.Context, userID, id string) (*tasks.Task, error)
}

// Result tallies a batch. Outcome distinguishes all-succeeded, partial
// and all-failed.
type Result struct {
	Synced int        `json:"synced"`
	Failed int        `json:"failed"`
	Errors []ItemError `json:"errors,omitempty"`
}

type ItemError struct {
	TaskID  string `json:"taskId"`
	Message string `json:"message"`
}

func (r Result) Outcome() string {
	switch {
	case r.Failed == 0:
		return "ok"
	case r.Synced == 0:
		return "failed"
	default:
		return "partial"
	}
}

type Dispatcher struct {
	tokens   vault.Store
	provider TokenRefresher
	tasks    TaskGetter
	client   ItemInserter
}

func NewDispatcher(
	tokens vault.Store,
	provider TokenRefresher,
	taskStore TaskGetter,
	client ItemInserter,
) *Dispatcher {
	return &Dispatcher{
		tokens:   tokens,
		provider: provider,
		tasks:    taskStore,
		client:   client,
	}
}

// Sync pushes the selected tasks for uid. Preconditions fail before any
// network call: an empty selection and a missing token record are
// rejected up front. One refresh-grant call covers the whole batch, so a
// refresh failure fails the batch. Repeated syncs of the same selection
// create duplicate remote items; no dedup key is tracked.
func (d *Dispatcher) Sync(ctx context.Context, uid string, taskIDs []string) (Result, error) {
	if len(taskIDs) == 0 {
		return Result{}, ErrEmptySelection
	}

	rec, err := d.tokens.Get(ctx, uid)
	if err != nil {
		return Result{}, err
	}
	if rec == nil {
		return Result{}, ErrNotConnected
	}

	accessToken, _, err := d.provider.Refresh(ctx, rec.RefreshToken)
	if err != nil {
		return Result{}, fmt.Errorf("refresh failed: %w", err)
	}

	var result Result
	for _, id := range taskIDs {
		if err := d.syncOne(ctx, uid, id, accessToken); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, ItemError{
				TaskID:  id,
				Message: err.Error(),
			})
			continue
		}
		result.Synced++
	}

	logger.Info("sync batch finished", map[string]any{
		"uid":     uid,
		"synced":  result.Synced,
		"failed":  result.Failed,
		"outcome": result.Outcome(),
	})

	return result, nil
}

func (d *Dispatcher) syncOne(ctx context.Context, uid, taskID, accessToken string) error {
	task, err := d.tasks.Get(ctx, uid, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return errors.New("task not found")
	}

	return d.client.Insert(ctx, accessToken, remoteItem(*task))
}

// remoteItem maps a local task to the provider's wire shape: the title is
// prefixed when a due date exists, notes pass through, and the due field
// is omitted entirely (not null) when there is no due date.
func remoteItem(t tasks.Task) google.TaskItem {
	item := google.TaskItem{
		Title: t.Title,
		Notes: t.Notes,
	}
	if t.DueDate != nil {
		item.Title = dueTitlePrefix + t.Title
		item.Due = t.DueDate.UTC().Format(time.RFC3339)
	}
	return item
}
