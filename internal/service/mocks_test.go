package service

import (
	"context"
	"fmt"
	"time"

	clocktesting "k8s.io/utils/clock/testing"

	"pve-cloner/internal/domain"
)

const testUPID = "UPID:pve2:000A1B2C:0B3D4E5F:6700AA00:qmclone:555:root@pam!homelab:"

type resizeCall struct {
	VMID int
	Disk string
	Size string
}

// mockAPI is a scriptable API. Every operation succeeds by default and
// is recorded in calls, in order.
type mockAPI struct {
	cloneVmFunc        func(node string, templateID int, params domain.CloneParams) (domain.TaskHandle, error)
	getTaskStatusFunc  func(task domain.TaskHandle) (*domain.TaskStatus, error)
	getTaskLogTailFunc func(task domain.TaskHandle) (string, error)
	getVmConfigFunc    func(node string, vmID int) (domain.VmConfig, error)
	setVmConfigFunc    func(node string, vmID int, params map[string]interface{}) error
	resizeDiskFunc     func(node string, vmID int, disk, size string) error
	getVmStatusFunc    func(node string, vmID int) (*domain.VmState, error)
	startVmFunc        func(node string, vmID int) error
	stopVmFunc         func(node string, vmID int) error
	deleteVmFunc       func(node string, vmID int, opts domain.DeleteOptions) error

	calls               []string
	cloneVmCalls        []domain.CloneParams
	getTaskStatusCalls  int
	getTaskLogTailCalls int
	setVmConfigCalls    []map[string]interface{}
	resizeDiskCalls     []resizeCall
	getVmStatusCalls    int
	startVmCalls        int
	stopVmCalls         int
	deleteVmCalls       []domain.DeleteOptions
}

func newMockAPI() *mockAPI {
	m := &mockAPI{}

	m.cloneVmFunc = func(node string, templateID int, params domain.CloneParams) (domain.TaskHandle, error) {
		return domain.TaskHandle{Node: node, UPID: testUPID}, nil
	}
	m.getTaskStatusFunc = func(task domain.TaskHandle) (*domain.TaskStatus, error) {
		return &domain.TaskStatus{State: domain.TaskStateStopped, ExitStatus: "OK", Type: domain.TaskTypeClone}, nil
	}
	m.getTaskLogTailFunc = func(task domain.TaskHandle) (string, error) {
		return "", nil
	}
	m.getVmConfigFunc = func(node string, vmID int) (domain.VmConfig, error) {
		return domain.VmConfig{
			"scsihw": "virtio-scsi-pci",
			"scsi0":  fmt.Sprintf("local-lvm:vm-%d-disk-0,size=8G", vmID),
			"ide2":   fmt.Sprintf("local-lvm:vm-%d-cloudinit,media=cdrom", vmID),
			"net0":   "virtio=BC:24:11:00:00:01,bridge=vmbr0",
		}, nil
	}
	m.setVmConfigFunc = func(node string, vmID int, params map[string]interface{}) error {
		return nil
	}
	m.resizeDiskFunc = func(node string, vmID int, disk, size string) error {
		return nil
	}
	m.getVmStatusFunc = func(node string, vmID int) (*domain.VmState, error) {
		return &domain.VmState{VMID: vmID, Name: "test-vm", Status: domain.VmStatusRunning}, nil
	}
	m.startVmFunc = func(node string, vmID int) error { return nil }
	m.stopVmFunc = func(node string, vmID int) error { return nil }
	m.deleteVmFunc = func(node string, vmID int, opts domain.DeleteOptions) error { return nil }

	return m
}

func (m *mockAPI) CloneVm(ctx context.Context, node string, templateID int, params domain.CloneParams) (domain.TaskHandle, error) {
	m.calls = append(m.calls, "clone")
	m.cloneVmCalls = append(m.cloneVmCalls, params)
	return m.cloneVmFunc(node, templateID, params)
}

func (m *mockAPI) GetTaskStatus(ctx context.Context, task domain.TaskHandle) (*domain.TaskStatus, error) {
	m.calls = append(m.calls, "task-status")
	m.getTaskStatusCalls++
	return m.getTaskStatusFunc(task)
}

func (m *mockAPI) GetTaskLogTail(ctx context.Context, task domain.TaskHandle) (string, error) {
	m.calls = append(m.calls, "task-log")
	m.getTaskLogTailCalls++
	return m.getTaskLogTailFunc(task)
}

func (m *mockAPI) GetVmConfig(ctx context.Context, node string, vmID int) (domain.VmConfig, error) {
	m.calls = append(m.calls, "get-config")
	return m.getVmConfigFunc(node, vmID)
}

func (m *mockAPI) SetVmConfig(ctx context.Context, node string, vmID int, params map[string]interface{}) error {
	m.calls = append(m.calls, "set-config")
	m.setVmConfigCalls = append(m.setVmConfigCalls, params)
	return m.setVmConfigFunc(node, vmID, params)
}

func (m *mockAPI) ResizeDisk(ctx context.Context, node string, vmID int, disk, size string) error {
	m.calls = append(m.calls, "resize")
	m.resizeDiskCalls = append(m.resizeDiskCalls, resizeCall{VMID: vmID, Disk: disk, Size: size})
	return m.resizeDiskFunc(node, vmID, disk, size)
}

func (m *mockAPI) GetVmStatus(ctx context.Context, node string, vmID int) (*domain.VmState, error) {
	m.calls = append(m.calls, "vm-status")
	m.getVmStatusCalls++
	return m.getVmStatusFunc(node, vmID)
}

func (m *mockAPI) StartVm(ctx context.Context, node string, vmID int) error {
	m.calls = append(m.calls, "start")
	m.startVmCalls++
	return m.startVmFunc(node, vmID)
}

func (m *mockAPI) StopVm(ctx context.Context, node string, vmID int) error {
	m.calls = append(m.calls, "stop")
	m.stopVmCalls++
	return m.stopVmFunc(node, vmID)
}

func (m *mockAPI) DeleteVm(ctx context.Context, node string, vmID int, opts domain.DeleteOptions) error {
	m.calls = append(m.calls, "delete")
	m.deleteVmCalls = append(m.deleteVmCalls, opts)
	return m.deleteVmFunc(node, vmID, opts)
}

// recordingSink keeps every message the workflows print.
type recordingSink struct {
	lines    []string
	progress []string
}

func (s *recordingSink) Progress(format string, args ...interface{}) {
	s.progress = append(s.progress, fmt.Sprintf(format, args...))
}

func (s *recordingSink) Info(format string, args ...interface{}) {
	s.lines = append(s.lines, fmt.Sprintf(format, args...))
}

func (s *recordingSink) Warn(format string, args ...interface{}) {
	s.lines = append(s.lines, "Warning: "+fmt.Sprintf(format, args...))
}

func (s *recordingSink) Error(format string, args ...interface{}) {
	s.lines = append(s.lines, "Error: "+fmt.Sprintf(format, args...))
}

// recordingClock is a fake clock that remembers every sleep.
type recordingClock struct {
	*clocktesting.FakeClock
	sleeps []time.Duration
}

func newRecordingClock() *recordingClock {
	return &recordingClock{
		FakeClock: clocktesting.NewFakeClock(time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)),
	}
}

func (c *recordingClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.FakeClock.Sleep(d)
}

type mockConfirmer struct {
	answer bool
	err    error
	calls  []string
}

func (c *mockConfirmer) Confirm(message string) (bool, error) {
	c.calls = append(c.calls, message)
	return c.answer, c.err
}
