package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const defaultTasksBaseURL = "https://tasks.googleapis.com/tasks/v1"

// TaskItem is the wire shape of a Tasks API item. Due is RFC3339 and must
// be omitted entirely when the local task has no due date (never null).
type TaskItem struct {
	Title string `json:"title"`
	Notes string `json:"notes,omitempty"`
	Due   string `json:"due,omitempty"`
}

// TasksClient inserts items into the user's default task list.
type TasksClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewTasksClient() *TasksClient {
	return &TasksClient{
		baseURL:    defaultTasksBaseURL,
		httpClient: http.DefaultClient,
	}
}

// NewTasksClientWithBaseURL points the client at a custom endpoint (tests).
func NewTasksClientWithBaseURL(baseURL string) *TasksClient {
	return &TasksClient{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
	}
}

// Insert creates one item in the default list, authenticated with a
// short-lived access token.
func (c *TasksClient) Insert(ctx context.Context, accessToken string, item TaskItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/lists/@default/tasks",
		bytes.NewReader(payload),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("tasks insert failed: %s: %s", resp.Status, body)
	}
	return nil
}
