// Package automation is an HTTP client for the automation network that runs scheduled duties.
package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"susu_keeper/internal/domain/duty"
)

// StatusError is a non-2xx answer that has no dedicated sentinel.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("automation api %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Client implements duty.Network over the automation network's REST API.
type Client struct {
	baseURL *url.URL
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid automation api url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid automation api url %q", baseURL)
	}
	return &Client{
		baseURL: u,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type createTaskRequest struct {
	ExecAddress     string `json:"execAddress"`
	ExecSelector    string `json:"execSelector"`
	DedicatedCaller bool   `json:"dedicatedMsgSender"`
	Name            string `json:"name"`
	ResolverAddress string `json:"resolverAddress"`
	ResolverData    string `json:"resolverData"`
}

type createTaskResponse struct {
	TaskID string `json:"taskId"`
}

type taskDTO struct {
	ID              string `json:"taskId"`
	Name            string `json:"name"`
	ExecAddress     string `json:"execAddress"`
	ExecSelector    string `json:"execSelector"`
	ResolverAddress string `json:"resolverAddress"`
	ResolverData    string `json:"resolverData"`
	DedicatedCaller bool   `json:"dedicatedMsgSender"`
	Active          bool   `json:"active"`
}

type tasksResponse struct {
	Tasks []taskDTO `json:"tasks"`
}

type taskStateResponse struct {
	TaskID        string `json:"taskId"`
	LastExecuted  int64  `json:"lastExecuted"`
	NextExecution int64  `json:"nextExecution"`
	Executions    int64  `json:"executions"`
}

type balanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

type depositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type callerResponse struct {
	Address string `json:"address"`
}

func (c *Client) CreateTask(ctx context.Context, req duty.CreateTaskRequest) (string, error) {
	body := createTaskRequest{
		ExecAddress:     req.ExecAddress.Hex(),
		ExecSelector:    req.ExecSelector.Hex(),
		DedicatedCaller: req.DedicatedCaller,
		Name:            req.Name,
		ResolverAddress: req.ResolverAddress.Hex(),
		ResolverData:    hexutil.Encode(req.ResolverData),
	}
	var resp createTaskResponse
	if err := c.do(ctx, http.MethodPost, "/tasks", nil, body, &resp); err != nil {
		return "", err
	}
	if resp.TaskID == "" {
		return "", errors.New("automation api returned an empty task id")
	}
	return resp.TaskID, nil
}

func (c *Client) CancelTask(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(taskID), nil, nil, nil)
}

func (c *Client) GetActiveTasks(ctx context.Context) ([]duty.Task, error) {
	var resp tasksResponse
	if err := c.do(ctx, http.MethodGet, "/tasks", url.Values{"active": {"true"}}, nil, &resp); err != nil {
		return nil, err
	}
	tasks := make([]duty.Task, 0, len(resp.Tasks))
	for _, t := range resp.Tasks {
		tasks = append(tasks, duty.Task{
			ID:              t.ID,
			Name:            t.Name,
			ExecAddress:     t.ExecAddress,
			ExecSelector:    t.ExecSelector,
			ResolverAddress: t.ResolverAddress,
			ResolverData:    t.ResolverData,
			DedicatedCaller: t.DedicatedCaller,
			Active:          t.Active,
		})
	}
	return tasks, nil
}

func (c *Client) GetTaskState(ctx context.Context, taskID string) (*duty.State, error) {
	var resp taskStateResponse
	if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID)+"/state", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &duty.State{
		DutyID:        taskID,
		LastExecuted:  unixOrNil(resp.LastExecuted),
		NextExecution: unixOrNil(resp.NextExecution),
		Executions:    resp.Executions,
	}, nil
}

func (c *Client) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	var resp balanceResponse
	if err := c.do(ctx, http.MethodGet, "/balance", nil, nil, &resp); err != nil {
		return decimal.Zero, err
	}
	return resp.Balance, nil
}

func (c *Client) DepositFunds(ctx context.Context, amount decimal.Decimal) error {
	return c.do(ctx, http.MethodPost, "/balance/deposit", nil, depositRequest{Amount: amount}, nil)
}

func (c *Client) DedicatedCaller(ctx context.Context) (common.Address, error) {
	var resp callerResponse
	if err := c.do(ctx, http.MethodGet, "/caller", nil, nil, &resp); err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(resp.Address) {
		return common.Address{}, fmt.Errorf("automation api returned invalid caller address %q", resp.Address)
	}
	return common.HexToAddress(resp.Address), nil
}

func unixOrNil(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

// do sends one JSON request. Status codes map to typed errors: 409 is ErrTaskExists, 404 ErrTaskNotFound.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	u := c.baseURL.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%s %s: %w", method, path, duty.ErrTaskExists)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, duty.ErrTaskNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
