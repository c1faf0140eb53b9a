package agentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is the request/response side of the agent backend integration.
// Channel bootstrap (create/cancel) and answer submission go through here;
// everything push-based goes through the channels in internal/agent.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// DocumentFormat is the closed set of export formats the backend offers.
type DocumentFormat string

const (
	FormatMarkdown DocumentFormat = "markdown"
	FormatPDF      DocumentFormat = "pdf"
	FormatDocx     DocumentFormat = "docx"
)

func (f DocumentFormat) Valid() bool {
	switch f {
	case FormatMarkdown, FormatPDF, FormatDocx:
		return true
	}
	return false
}

// ManualContext is the freeform bootstrap payload for a session started
// without a project: the user's goal plus the three framing answers.
type ManualContext struct {
	Goal        string `json:"goal"`
	TaskAnswer  string `json:"task_answer"`
	GoalAnswer  string `json:"goal_answer"`
	ValueAnswer string `json:"value_answer"`
}

type AnswerPayload struct {
	Content   string `json:"content"`
	IsSkipped bool   `json:"is_skipped"`
}

type Document struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type createSessionResponse struct {
	SessionID int64 `json:"session_id"`
}

// CreateSessionFromProject starts an agent session seeded with a project's
// interview corpus and returns the backend-assigned session id.
func (c *Client) CreateSessionFromProject(ctx context.Context, projectID int64) (int64, error) {
	body := map[string]int64{"project_id": projectID}
	var res createSessionResponse
	if err := c.post(ctx, "/sessions/from-project", body, &res); err != nil {
		return 0, fmt.Errorf("create session from project %d: %w", projectID, err)
	}
	return res.SessionID, nil
}

// CreateSessionFromContext starts an agent session from a manually entered
// context instead of a project.
func (c *Client) CreateSessionFromContext(ctx context.Context, manual ManualContext) (int64, error) {
	var res createSessionResponse
	if err := c.post(ctx, "/sessions/from-context", manual, &res); err != nil {
		return 0, fmt.Errorf("create session from context: %w", err)
	}
	return res.SessionID, nil
}

// SubmitAnswer sends one answer (or skip) for a question. Fire-and-forget
// from the channel's point of view: the authoritative dialogue update arrives
// on the next pushed snapshot, never from this call.
func (c *Client) SubmitAnswer(ctx context.Context, sessionID, questionID int64, answer AnswerPayload) error {
	path := fmt.Sprintf("/sessions/%d/questions/%d/answer", sessionID, questionID)
	if err := c.post(ctx, path, answer, nil); err != nil {
		return fmt.Errorf("submit answer for session %d question %d: %w", sessionID, questionID, err)
	}
	return nil
}

func (c *Client) CancelSession(ctx context.Context, sessionID int64) error {
	path := fmt.Sprintf("/sessions/%d/cancel", sessionID)
	if err := c.post(ctx, path, nil, nil); err != nil {
		return fmt.Errorf("cancel session %d: %w", sessionID, err)
	}
	return nil
}

// GetDocument fetches a generated requirements document.
func (c *Client) GetDocument(ctx context.Context, documentID int64) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/documents/%d", c.baseURL, documentID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get document %d: %w", documentID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get document %d: %s", documentID, responseError(resp))
	}

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document %d: %w", documentID, err)
	}
	return &doc, nil
}

// ExportURL builds the download URL for a document in the given format. The
// browser follows it directly; no binary handling happens here.
func (c *Client) ExportURL(documentID int64, format DocumentFormat) (string, error) {
	if !format.Valid() {
		return "", fmt.Errorf("unsupported export format %q", format)
	}
	return fmt.Sprintf("%s/documents/%d/export?format=%s", c.baseURL, documentID, format), nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s", responseError(resp))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func responseError(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Message != "" {
			return fmt.Sprintf("%s: %s", resp.Status, payload.Message)
		}
		if payload.Detail != "" {
			return fmt.Sprintf("%s: %s", resp.Status, payload.Detail)
		}
	}
	return resp.Status
}
