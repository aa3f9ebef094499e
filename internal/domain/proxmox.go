package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type VmStatus string

const (
	VmStatusRunning   VmStatus = "running"
	VmStatusStopped   VmStatus = "stopped"
	VmStatusPaused    VmStatus = "paused"
	VmStatusSuspended VmStatus = "suspended"
	VmStatusUnknown   VmStatus = "unknown"
)

// RunState collapses the remote status into the three states the destroy
// workflow cares about.
type RunState string

const (
	RunStateRunning RunState = "running"
	RunStateStopped RunState = "stopped"
	RunStateOther   RunState = "other"
)

type VmState struct {
	VMID   int      `json:"vmid"`
	Name   string   `json:"name"`
	Status VmStatus `json:"status"`
}

func (s *VmState) RunState() RunState {
	switch s.Status {
	case VmStatusRunning:
		return RunStateRunning
	case VmStatusStopped:
		return RunStateStopped
	default:
		return RunStateOther
	}
}

// DisplayName is the VM name, or its id when the VM has no name.
func (s *VmState) DisplayName(vmID int) string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("%d", vmID)
}

func ParseVmState(raw map[string]interface{}) (*VmState, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal VM status: %w", err)
	}

	var state VmState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal VM status: %w", err)
	}

	if state.Status == "" {
		state.Status = VmStatusUnknown
	}

	return &state, nil
}

// TaskHandle identifies an asynchronous operation on a node.
type TaskHandle struct {
	Node string
	UPID string
}

func (h TaskHandle) String() string {
	return h.UPID
}

type TaskState string

const (
	TaskStateRunning TaskState = "running"
	TaskStateStopped TaskState = "stopped"
)

const (
	TaskTypeClone = "qmclone"
	TaskExitOK    = "OK"
)

type TaskStatus struct {
	State      TaskState `json:"status"`
	ExitStatus string    `json:"exitstatus,omitempty"`
	Type       string    `json:"type"`
}

func (s *TaskStatus) Done() bool {
	return s.State == TaskStateStopped
}

func (s *TaskStatus) Succeeded() bool {
	return s.Done() && s.ExitStatus == TaskExitOK
}

func (s *TaskStatus) IsClone() bool {
	return s.Type == TaskTypeClone
}

func ParseTaskStatus(raw map[string]interface{}) (*TaskStatus, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task status: %w", err)
	}

	var status TaskStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task status: %w", err)
	}

	return &status, nil
}

// VmConfig maps a device slot (scsi0, ide2, net0, ...) to its descriptor.
type VmConfig map[string]string

func ParseVmConfig(raw map[string]interface{}) VmConfig {
	cfg := make(VmConfig, len(raw))
	for k, v := range raw {
		cfg[k] = fmt.Sprint(v)
	}
	return cfg
}

type CloneRequest struct {
	TemplateID int
	TargetID   int
	Node       string
	Name       string
	Memory     int
	Cores      int
	DiskSize   *string
	IPAddress  *string
	Gateway    *string
	Nameserver *string
}

// NetworkConfig is the cloud-init network payload for the clone, or nil
// when no IP address was requested.
func (r *CloneRequest) NetworkConfig() map[string]interface{} {
	if r.IPAddress == nil || *r.IPAddress == "" {
		return nil
	}

	ipconfig := "ip=" + *r.IPAddress
	if r.Gateway != nil && *r.Gateway != "" {
		ipconfig += ",gw=" + *r.Gateway
	}

	cfg := map[string]interface{}{"ipconfig0": ipconfig}
	if r.Nameserver != nil && *r.Nameserver != "" {
		cfg["nameserver"] = *r.Nameserver
	}

	return cfg
}

type CloneParams struct {
	NewID       int    `json:"newid"`
	Name        string `json:"name"`
	Full        int    `json:"full"`
	Description string `json:"description"`
}

func NewCloneParams(req *CloneRequest, now time.Time) CloneParams {
	return CloneParams{
		NewID:       req.TargetID,
		Name:        req.Name,
		Full:        1,
		Description: fmt.Sprintf("Created by pve-cloner on %s", now.Format("2006-01-02 15:04:05")),
	}
}

type DeleteOptions struct {
	Purge                    bool
	DestroyUnreferencedDisks bool
}

// Params renders the options as the query parameters of the delete call.
func (o DeleteOptions) Params() map[string]interface{} {
	params := map[string]interface{}{}
	if o.Purge {
		params["purge"] = 1
	}
	if o.DestroyUnreferencedDisks {
		params["destroy-unreferenced-disks"] = 1
	}
	return params
}

type CloneSummary struct {
	VMID       int
	Name       string
	Memory     int
	Cores      int
	Disk       string
	DiskSlot   string
	IPAddress  string
	Gateway    string
	Nameserver string
}
