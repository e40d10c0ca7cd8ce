package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sdfolio/sdwf/internal/project"
	"github.com/sdfolio/sdwf/internal/task"
	"github.com/sdfolio/sdwf/pkg/cerr"
)

const defaultTimeout = 10 * time.Second

// PostgRESTClient talks to a PostgREST-style REST endpoint (Supabase wire
// compatible): JSON rows under /rest/v1/<table>, eq. filters in the query
// string, and Prefer headers controlling row echo.
type PostgRESTClient struct {
	baseURL string
	anonKey string
	token   string
	client  *http.Client
}

var _ RemoteGateway = (*PostgRESTClient)(nil)

func NewPostgRESTClient(baseURL, anonKey, serviceToken string) *PostgRESTClient {
	return &PostgRESTClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		anonKey: anonKey,
		token:   serviceToken,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

func (c *PostgRESTClient) bearer() string {
	if c.token != "" {
		return c.token
	}
	return c.anonKey
}

func (c *PostgRESTClient) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.bearer())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do executes the request and decodes a 2xx JSON response into out (when out
// is non-nil). Non-2xx responses become Unavailable errors carrying the
// response body, which is how PostgREST reports constraint and RLS failures.
func (c *PostgRESTClient) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return cerr.NewError(cerr.Unavailable, "remote store unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return cerr.NewError(cerr.Unavailable, "failed to read remote response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = resp.Status
		}
		return cerr.NewError(cerr.Unavailable, fmt.Sprintf("remote write failed: %s", msg), nil)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return cerr.NewError(cerr.Internal, "malformed remote response", err)
	}
	return nil
}

func (c *PostgRESTClient) FetchAll(ctx context.Context) (*Collections, error) {
	pq := url.Values{}
	pq.Set("select", "*")
	pq.Set("order", "created_at.desc")
	preq, err := c.newRequest(ctx, http.MethodGet, "/rest/v1/projects", pq, nil)
	if err != nil {
		return nil, err
	}
	var projects []*project.Project
	if err := c.do(preq, &projects); err != nil {
		return nil, err
	}

	tq := url.Values{}
	tq.Set("select", "*")
	tq.Set("archived", "eq.false")
	tq.Set("order", "created_at.desc")
	treq, err := c.newRequest(ctx, http.MethodGet, "/rest/v1/tasks", tq, nil)
	if err != nil {
		return nil, err
	}
	var tasks []*task.Task
	if err := c.do(treq, &tasks); err != nil {
		return nil, err
	}

	for _, p := range projects {
		if p.Name == "" {
			p.Name = p.Title
		}
	}
	for _, t := range tasks {
		t.Normalize()
	}
	return &Collections{Projects: projects, Tasks: tasks}, nil
}

func (c *PostgRESTClient) InsertProject(ctx context.Context, p *project.Project) (string, error) {
	// The projects table stores the display name in the title column and
	// assigns its own uuid key, so neither name nor id is sent.
	row := map[string]any{
		"kind":            p.Kind,
		"title":           p.Title,
		"bu":              p.BU,
		"supervisor":      p.Supervisor,
		"doer":            p.Doer,
		"doer_default":    p.DoerDefault,
		"support_default": p.SupportDefault,
		"start_date":      p.StartDate,
		"event_date":      p.EventDate,
		"created_at":      p.CreatedAt,
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/rest/v1/projects", nil, []map[string]any{row})
	if err != nil {
		return "", err
	}
	req.Header.Set("Prefer", "return=representation")

	var rows []map[string]any
	if err := c.do(req, &rows); err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", cerr.NewError(cerr.PermissionDenied, "project created but id not returned", nil)
	}
	for _, key := range []string{"project_id", "id"} {
		if v, ok := rows[0][key].(string); ok && v != "" {
			return v, nil
		}
	}
	return "", cerr.NewError(cerr.PermissionDenied, "project created but id not returned", nil)
}

func (c *PostgRESTClient) InsertTask(ctx context.Context, t *task.Task) (*task.Task, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/rest/v1/tasks", nil, []*task.Task{t})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "return=representation")

	var rows []*task.Task
	if err := c.do(req, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		// Row-level security may accept the insert yet refuse to echo it.
		return nil, nil
	}
	rows[0].Normalize()
	return rows[0], nil
}

func (c *PostgRESTClient) InsertTasks(ctx context.Context, tasks []*task.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/rest/v1/tasks", nil, tasks)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")
	return c.do(req, nil)
}

func (c *PostgRESTClient) UpdateTask(ctx context.Context, id string, patch task.Patch) (int, error) {
	query := url.Values{}
	query.Set("id", "eq."+id)
	query.Set("select", "id")
	req, err := c.newRequest(ctx, http.MethodPatch, "/rest/v1/tasks", query, patch)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Prefer", "return=representation")

	var rows []map[string]any
	if err := c.do(req, &rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (c *PostgRESTClient) GetSession(ctx context.Context) (*Session, error) {
	if c.bearer() == "" {
		return nil, nil
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/v1/user", nil, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, cerr.NewError(cerr.Unavailable, "remote store unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}
	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, cerr.NewError(cerr.Internal, "malformed session response", err)
	}
	if session.UserID == "" {
		return nil, nil
	}
	return &session, nil
}
