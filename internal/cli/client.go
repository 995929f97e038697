package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// JobResponse — job из API.
type JobResponse struct {
	ID           string         `json:"id"`
	WorkflowType string         `json:"workflow_type"`
	OrgID        string         `json:"org_id,omitempty"`
	UserID       string         `json:"user_id,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
	Status       string         `json:"status"`
	Progress     int            `json:"progress"`
	Output       map[string]any `json:"output,omitempty"`
	Error        string         `json:"error,omitempty"`
	Priority     int            `json:"priority,omitempty"`
	CreatedAt    string         `json:"created_at"`
	StartedAt    string         `json:"started_at,omitempty"`
	CompletedAt  string         `json:"completed_at,omitempty"`
}

// StepResultResponse — результат шага из API.
type StepResultResponse struct {
	StepID     string         `json:"step_id"`
	UnitName   string         `json:"unit_name"`
	Status     string         `json:"status"`
	Output     map[string]any `json:"output,omitempty"`
	RetryCount int            `json:"retry_count"`
	Error      string         `json:"error,omitempty"`
}

// StateResponse — прогресс workflow из API.
type StateResponse struct {
	JobID            string               `json:"job_id"`
	Status           string               `json:"status"`
	CurrentStepIndex int                  `json:"current_step_index"`
	TotalSteps       int                  `json:"total_steps"`
	Progress         int                  `json:"progress"`
	StepResults      []StepResultResponse `json:"step_results"`
	Error            string               `json:"error,omitempty"`
}

// PlanResponse — план workflow из API.
type PlanResponse struct {
	WorkflowType string         `json:"workflow_type"`
	Description  string         `json:"description,omitempty"`
	Steps        []StepResponse `json:"steps"`
}

// StepResponse — шаг плана из API.
type StepResponse struct {
	StepID     string `json:"step_id"`
	UnitName   string `json:"unit_name"`
	MaxRetries int    `json:"max_retries"`
	BackoffMs  int    `json:"backoff_ms"`
	TimeoutMs  int    `json:"timeout_ms,omitempty"`
	Optional   bool   `json:"optional,omitempty"`
}

// DeadLetterResponse — dead letter из API.
type DeadLetterResponse struct {
	ID            string         `json:"id"`
	JobID         string         `json:"job_id"`
	WorkflowType  string         `json:"workflow_type"`
	Payload       map[string]any `json:"payload,omitempty"`
	Reason        string         `json:"reason"`
	AttemptsMade  int            `json:"attempts_made"`
	RequeuedAt    string         `json:"requeued_at,omitempty"`
	RequeuedJobID string         `json:"requeued_job_id,omitempty"`
	CreatedAt     string         `json:"created_at"`
}

// RequeueResponse — результат requeue dead letter.
type RequeueResponse struct {
	DeadLetterID string `json:"dead_letter_id"`
	NewJobID     string `json:"new_job_id"`
}

// ScheduleResponse — schedule из API.
type ScheduleResponse struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	WorkflowType string         `json:"workflow_type"`
	CronExpr     string         `json:"cron_expr,omitempty"`
	IntervalSec  int            `json:"interval_sec,omitempty"`
	Timezone     string         `json:"timezone"`
	Enabled      bool           `json:"enabled"`
	NextDueAt    string         `json:"next_due_at,omitempty"`
	LastRunAt    string         `json:"last_run_at,omitempty"`
	LastJobID    string         `json:"last_job_id,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
}

// --- Request types ---

// CreateJobRequest — постановка job.
type CreateJobRequest struct {
	WorkflowType string         `json:"workflow_type"`
	Payload      map[string]any `json:"payload,omitempty"`
	Priority     int            `json:"priority,omitempty"`
	DelayMs      int            `json:"delay_ms,omitempty"`
	OrgID        string         `json:"org_id,omitempty"`
	UserID       string         `json:"user_id,omitempty"`
	ID           string         `json:"id,omitempty"`
}

// CreateScheduleRequest — создание schedule.
type CreateScheduleRequest struct {
	Name         string         `json:"name"`
	WorkflowType string         `json:"workflow_type"`
	CronExpr     string         `json:"cron_expr,omitempty"`
	IntervalSec  int            `json:"interval_sec,omitempty"`
	Timezone     string         `json:"timezone,omitempty"`
	Enabled      bool           `json:"enabled"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// ListJobsOpts — параметры фильтрации jobs.
type ListJobsOpts struct {
	WorkflowType string
	Status       string
	Limit        int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Conveyor API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Jobs ---

// ListJobs возвращает список jobs с фильтрацией.
func (c *Client) ListJobs(opts ListJobsOpts) ([]JobResponse, error) {
	params := url.Values{}
	if opts.WorkflowType != "" {
		params.Set("workflow_type", opts.WorkflowType)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var jobs []JobResponse
	err := c.list("/api/v1/jobs", params, &jobs)
	return jobs, err
}

// CreateJob ставит job в очередь.
func (c *Client) CreateJob(req CreateJobRequest) (*JobResponse, error) {
	var job JobResponse
	err := c.post("/api/v1/jobs", req, &job)
	return &job, err
}

// GetJob возвращает job по ID.
func (c *Client) GetJob(id string) (*JobResponse, error) {
	var job JobResponse
	err := c.get("/api/v1/jobs/"+id, &job)
	return &job, err
}

// GetJobState возвращает пошаговый прогресс job.
func (c *Client) GetJobState(id string) (*StateResponse, error) {
	var state StateResponse
	err := c.get("/api/v1/jobs/"+id+"/state", &state)
	return &state, err
}

// --- Plans ---

// ListPlans возвращает зарегистрированные планы.
func (c *Client) ListPlans() ([]PlanResponse, error) {
	var plans []PlanResponse
	err := c.list("/api/v1/plans", nil, &plans)
	return plans, err
}

// GetPlan возвращает план по типу workflow.
func (c *Client) GetPlan(workflowType string) (*PlanResponse, error) {
	var plan PlanResponse
	err := c.get("/api/v1/plans/"+workflowType, &plan)
	return &plan, err
}

// --- Dead letters ---

// ListDeadLetters возвращает dead letters.
func (c *Client) ListDeadLetters(limit int) ([]DeadLetterResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}

	var letters []DeadLetterResponse
	err := c.list("/api/v1/deadletters", params, &letters)
	return letters, err
}

// GetDeadLetter возвращает dead letter по ID.
func (c *Client) GetDeadLetter(id string) (*DeadLetterResponse, error) {
	var dl DeadLetterResponse
	err := c.get("/api/v1/deadletters/"+id, &dl)
	return &dl, err
}

// RequeueDeadLetter перезапускает dead letter как новый job.
func (c *Client) RequeueDeadLetter(id string) (*RequeueResponse, error) {
	var result RequeueResponse
	err := c.post("/api/v1/deadletters/"+id+"/requeue", nil, &result)
	return &result, err
}

// --- Schedules ---

// ListSchedules возвращает schedules.
func (c *Client) ListSchedules() ([]ScheduleResponse, error) {
	var schedules []ScheduleResponse
	err := c.list("/api/v1/schedules", nil, &schedules)
	return schedules, err
}

// CreateSchedule создаёт schedule.
func (c *Client) CreateSchedule(req CreateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.post("/api/v1/schedules", req, &schedule)
	return &schedule, err
}

// GetSchedule возвращает schedule по ID.
func (c *Client) GetSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.get("/api/v1/schedules/"+id, &schedule)
	return &schedule, err
}

// DeleteSchedule удаляет schedule.
func (c *Client) DeleteSchedule(id string) error {
	return c.delete("/api/v1/schedules/" + id)
}

// EnableSchedule включает schedule.
func (c *Client) EnableSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": true}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// DisableSchedule выключает schedule.
func (c *Client) DisableSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": false}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
