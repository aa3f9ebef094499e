package proxmox

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	pxapi "github.com/Telmate/proxmox-api-go/proxmox"

	"pve-cloner/internal/config"
	"pve-cloner/internal/domain"
	"pve-cloner/internal/logger"
)

const (
	requestTimeout = 30 * time.Second
	taskTimeout    = 300
)

// Client talks to the Proxmox VE API. Every call is a single request: the
// workflows own retries and waiting. Clone, start and stop are sent
// directly because they must return as soon as the task is queued.
type Client struct {
	log    *logger.Logger
	apiURL string
	token  *config.Token
	http   *http.Client
	px     *pxapi.Client
}

type apiResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total,omitempty"`
}

func NewClient(cfg *config.ProxmoxConfig) (*Client, error) {
	log := logger.NewLogger("ProxmoxClient")

	token, err := cfg.Token()
	if err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{InsecureSkipVerify: !cfg.VerifySSL}

	httpClient := &http.Client{
		Timeout: requestTimeout,
		Transport: &http.Transport{
			TLSClientConfig: tlsConfig,
		},
	}

	ret := &Client{
		log:    log,
		apiURL: cfg.APIURL(),
		token:  token,
		http:   httpClient,
	}

	ret.px, err = pxapi.NewClient(ret.apiURL, httpClient, "", tlsConfig, "", taskTimeout)
	if err != nil {
		log.Error("Failed to create Proxmox client: %v", err)
		return nil, err
	}

	ret.px.SetAPIToken(token.ID(), token.Secret)

	log.Debug("Proxmox client created for %s as %s", ret.apiURL, token.ID())

	return ret, nil
}

func (c *Client) vmRef(node string, vmID int) *pxapi.VmRef {
	ref := pxapi.NewVmRef(pxapi.GuestID(vmID))
	ref.SetNode(node)
	ref.SetVmType("qemu")
	return ref
}

func (c *Client) CloneVm(ctx context.Context, node string, templateID int, params domain.CloneParams) (domain.TaskHandle, error) {
	path := fmt.Sprintf("/nodes/%s/qemu/%d/clone", url.PathEscape(node), templateID)

	var upid string
	if err := c.do(ctx, http.MethodPost, path, params, &upid); err != nil {
		c.log.Error("Failed to clone VM %d: %v", templateID, err)
		return domain.TaskHandle{}, err
	}

	if upid == "" {
		return domain.TaskHandle{}, fmt.Errorf("clone of %d returned no task id", templateID)
	}

	c.log.Debug("Clone %d -> %d started: %s", templateID, params.NewID, upid)

	return domain.TaskHandle{Node: node, UPID: upid}, nil
}

func (c *Client) GetTaskStatus(ctx context.Context, task domain.TaskHandle) (*domain.TaskStatus, error) {
	path := fmt.Sprintf("/nodes/%s/tasks/%s/status", url.PathEscape(task.Node), url.PathEscape(task.UPID))

	raw, err := c.getData(ctx, path)
	if err != nil {
		return nil, err
	}

	return domain.ParseTaskStatus(raw)
}

// GetTaskLogTail returns the most recent line of the task log, or "" when
// the log is empty.
func (c *Client) GetTaskLogTail(ctx context.Context, task domain.TaskHandle) (string, error) {
	lines, total, err := c.taskLog(ctx, task, 0)
	if err != nil {
		return "", err
	}

	if total > 1 {
		lines, _, err = c.taskLog(ctx, task, total-1)
		if err != nil {
			return "", err
		}
	}

	if len(lines) == 0 {
		return "", nil
	}

	return lines[len(lines)-1], nil
}

func (c *Client) taskLog(ctx context.Context, task domain.TaskHandle, start int) ([]string, int, error) {
	var data map[string]interface{}

	path := fmt.Sprintf("/nodes/%s/tasks/%s/log?start=%d&limit=1", url.PathEscape(task.Node), url.PathEscape(task.UPID), start)
	if err := c.px.GetJsonRetryable(ctx, path, &data, 1); err != nil {
		return nil, 0, err
	}

	total := 0
	if t, ok := data["total"].(float64); ok {
		total = int(t)
	}

	entries, _ := data["data"].([]interface{})
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		entry, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		if t, ok := entry["t"].(string); ok {
			lines = append(lines, t)
		}
	}

	return lines, total, nil
}

func (c *Client) GetVmConfig(ctx context.Context, node string, vmID int) (domain.VmConfig, error) {
	raw, err := c.getData(ctx, fmt.Sprintf("/nodes/%s/qemu/%d/config", url.PathEscape(node), vmID))
	if err != nil {
		c.log.Error("Failed to get config of VM %d: %v", vmID, err)
		return nil, err
	}

	return domain.ParseVmConfig(raw), nil
}

func (c *Client) SetVmConfig(ctx context.Context, node string, vmID int, params map[string]interface{}) error {
	path := fmt.Sprintf("/nodes/%s/qemu/%d/config", url.PathEscape(node), vmID)

	if err := c.px.Put(ctx, params, path); err != nil {
		c.log.Error("Failed to update config of VM %d: %v", vmID, err)
		return err
	}

	return nil
}

func (c *Client) ResizeDisk(ctx context.Context, node string, vmID int, disk, size string) error {
	status, err := c.px.ResizeQemuDiskRaw(ctx, c.vmRef(node, vmID), disk, size)
	if err != nil {
		c.log.Error("Failed to resize %s of VM %d: %v", disk, vmID, err)
		return err
	}

	c.log.Debug("VM %d resize %s -> %v", vmID, disk, status)
	return nil
}

func (c *Client) GetVmStatus(ctx context.Context, node string, vmID int) (*domain.VmState, error) {
	raw, err := c.getData(ctx, fmt.Sprintf("/nodes/%s/qemu/%d/status/current", url.PathEscape(node), vmID))
	if err != nil {
		return nil, err
	}

	return domain.ParseVmState(raw)
}

// StartVm queues a start task and returns without waiting for it.
func (c *Client) StartVm(ctx context.Context, node string, vmID int) error {
	return c.statusChange(ctx, node, vmID, "start")
}

// StopVm queues a hard stop and returns without waiting for it.
func (c *Client) StopVm(ctx context.Context, node string, vmID int) error {
	return c.statusChange(ctx, node, vmID, "stop")
}

func (c *Client) statusChange(ctx context.Context, node string, vmID int, action string) error {
	path := fmt.Sprintf("/nodes/%s/qemu/%d/status/%s", url.PathEscape(node), vmID, action)

	var upid string
	if err := c.do(ctx, http.MethodPost, path, nil, &upid); err != nil {
		c.log.Error("Failed to %s VM %d: %v", action, vmID, err)
		return err
	}

	c.log.Debug("VM %d %s -> %s", vmID, action, upid)
	return nil
}

func (c *Client) DeleteVm(ctx context.Context, node string, vmID int, opts domain.DeleteOptions) error {
	status, err := c.px.DeleteVmParams(ctx, c.vmRef(node, vmID), opts.Params())
	if err != nil {
		c.log.Error("Failed to delete VM %d: %v", vmID, err)
		return err
	}

	c.log.Debug("VM %d delete -> %s", vmID, status)
	return nil
}

// getData fetches path once and returns the "data" object of the response.
func (c *Client) getData(ctx context.Context, path string) (map[string]interface{}, error) {
	var resp map[string]interface{}
	if err := c.px.GetJsonRetryable(ctx, path, &resp, 1); err != nil {
		return nil, err
	}

	data, ok := resp["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected response for %s", path)
	}

	return data, nil
}

func (c *Client) authHeader() string {
	return fmt.Sprintf("PVEAPIToken=%s=%s", c.token.ID(), c.token.Secret)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", c.authHeader())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.log.Debug("%s %s", method, path)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, bytes.TrimSpace(respBody))
	}

	if out == nil {
		return nil
	}

	var envelope apiResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response data: %w", err)
	}

	return nil
}
