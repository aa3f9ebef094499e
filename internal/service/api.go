package service

import (
	"context"

	"pve-cloner/internal/domain"
)

// API is the part of the Proxmox management API the workflows use.
// In production it is satisfied by *proxmox.Client.
type API interface {
	CloneVm(ctx context.Context, node string, templateID int, params domain.CloneParams) (domain.TaskHandle, error)
	GetTaskStatus(ctx context.Context, task domain.TaskHandle) (*domain.TaskStatus, error)
	GetTaskLogTail(ctx context.Context, task domain.TaskHandle) (string, error)

	GetVmConfig(ctx context.Context, node string, vmID int) (domain.VmConfig, error)
	SetVmConfig(ctx context.Context, node string, vmID int, params map[string]interface{}) error
	ResizeDisk(ctx context.Context, node string, vmID int, disk, size string) error

	GetVmStatus(ctx context.Context, node string, vmID int) (*domain.VmState, error)
	StartVm(ctx context.Context, node string, vmID int) error
	StopVm(ctx context.Context, node string, vmID int) error
	DeleteVm(ctx context.Context, node string, vmID int, opts domain.DeleteOptions) error
}

// Confirmer asks the operator to approve a destructive action.
type Confirmer interface {
	Confirm(message string) (bool, error)
}
