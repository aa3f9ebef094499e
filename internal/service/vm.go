package service

import (
	"context"
	"fmt"
	"time"

	"k8s.io/utils/clock"
	"k8s.io/utils/ptr"

	"pve-cloner/internal/domain"
	"pve-cloner/internal/logger"
	"pve-cloner/internal/output"
)

// StopAttempts is how many times, one second apart, Destroy checks that a
// stopped VM is really down before deleting it anyway.
const StopAttempts = 30

// VmService runs the clone and destroy workflows. Stages are strictly
// sequential and nothing is rolled back: a clone that fails after the copy
// leaves the new VM in place.
type VmService struct {
	log       *logger.Logger
	api       API
	sink      output.Sink
	confirm   Confirmer
	clock     clock.Clock
	retrier   *Retrier
	poller    *TaskPoller
	resources *ResourceService

	TaskTimeout  time.Duration
	StopAttempts int
}

func NewVmService(api API, sink output.Sink, confirm Confirmer, clk clock.Clock) *VmService {
	return &VmService{
		log:          logger.NewLogger("VmService"),
		api:          api,
		sink:         sink,
		confirm:      confirm,
		clock:        clk,
		retrier:      NewRetrier(sink, clk, DefaultMaxAttempts),
		poller:       NewTaskPoller(api, sink, clk),
		resources:    NewResourceService(api, sink),
		TaskTimeout:  DefaultTaskTimeout,
		StopAttempts: StopAttempts,
	}
}

func (v *VmService) Clone(ctx context.Context, req *domain.CloneRequest) (*domain.CloneSummary, error) {
	log := v.log.With("vmid", req.TargetID)

	v.sink.Info("Cloning VM %d to %d (%s)...", req.TemplateID, req.TargetID, req.Name)

	params := domain.NewCloneParams(req, v.clock.Now())
	task, err := Call(v.retrier, "clone", func() (domain.TaskHandle, error) {
		return v.api.CloneVm(ctx, req.Node, req.TemplateID, params)
	})
	if err != nil {
		v.sink.Error("Error cloning VM: %v", err)
		return nil, domain.AtStage(domain.StageIssueClone, err)
	}

	log.Info("Clone task %s issued", task.UPID)
	v.sink.Info("Waiting for clone to complete...")

	if err := v.poller.Await(ctx, task, v.TaskTimeout); err != nil {
		return nil, domain.AtStage(domain.StageAwaitClone, err)
	}

	if network := req.NetworkConfig(); network != nil {
		v.sink.Info("Configuring cloud-init network settings...")
		if err := v.api.SetVmConfig(ctx, req.Node, req.TargetID, network); err != nil {
			log.Warn("Network configuration failed, continuing: %v", err)
			v.sink.Warn("Failed to set cloud-init network configuration: %v", err)
		}
	}

	v.sink.Info("Setting VM resources...")
	disk, err := v.resources.Apply(ctx, req.Node, req.TargetID, req.Memory, req.Cores, req.DiskSize)
	if err != nil {
		return nil, domain.AtStage(domain.StageResources, err)
	}

	v.sink.Info("Starting VM...")
	err = v.retrier.Do("start", func() error {
		return v.api.StartVm(ctx, req.Node, req.TargetID)
	})
	if err != nil {
		v.sink.Error("Error starting VM: %v", err)
		return nil, domain.AtStage(domain.StageStart, err)
	}

	summary := &domain.CloneSummary{
		VMID:       req.TargetID,
		Name:       req.Name,
		Memory:     req.Memory,
		Cores:      req.Cores,
		Disk:       ptr.Deref(req.DiskSize, ""),
		DiskSlot:   disk,
		IPAddress:  ptr.Deref(req.IPAddress, ""),
		Gateway:    ptr.Deref(req.Gateway, ""),
		Nameserver: ptr.Deref(req.Nameserver, ""),
	}

	v.report(summary)

	return summary, nil
}

func (v *VmService) report(s *domain.CloneSummary) {
	v.sink.Info("VM %s (ID: %d) has been created and started!", s.Name, s.VMID)
	v.sink.Info("Resource allocation:")
	v.sink.Info("- Memory: %d MB", s.Memory)
	v.sink.Info("- Cores: %d", s.Cores)
	if s.Disk != "" {
		v.sink.Info("- Disk: %s", s.Disk)
	}
	if s.IPAddress != "" {
		v.sink.Info("- IP Address: %s", s.IPAddress)
		if s.Gateway != "" {
			v.sink.Info("- Gateway: %s", s.Gateway)
		}
		if s.Nameserver != "" {
			v.sink.Info("- Nameserver: %s", s.Nameserver)
		}
	}
}

// Destroy stops the VM if it is running and deletes it together with its
// unreferenced disks, after the operator confirms. It returns the VM's
// display name.
func (v *VmService) Destroy(ctx context.Context, node string, vmID int) (string, error) {
	log := v.log.With("vmid", vmID)

	state, err := v.api.GetVmStatus(ctx, node, vmID)
	if err != nil {
		v.sink.Error("VM %d not found", vmID)
		return "", domain.AtStage(domain.StageStatus, domain.NewFailure(domain.FailureNotFound, fmt.Sprintf("VM %d", vmID), err))
	}

	name := state.DisplayName(vmID)

	ok, err := v.confirm.Confirm(fmt.Sprintf("\nWARNING: You are about to destroy VM %s (ID: %d).\nThis action cannot be undone!", name, vmID))
	if err != nil {
		log.Warn("Confirmation failed: %v", err)
	}
	if err != nil || !ok {
		v.sink.Info("Destruction cancelled")
		return name, domain.AtStage(domain.StageConfirm, domain.NewFailure(domain.FailureCancelled, "", err))
	}

	if state.RunState() == domain.RunStateRunning {
		v.sink.Info("Stopping VM %s...", name)
		if err := v.api.StopVm(ctx, node, vmID); err != nil {
			v.sink.Error("Error destroying VM: %v", err)
			return name, domain.AtStage(domain.StageStop, err)
		}

		stopped, err := v.waitStopped(ctx, node, vmID)
		if err != nil {
			v.sink.Error("Error destroying VM: %v", err)
			return name, domain.AtStage(domain.StageStop, err)
		}
		if !stopped {
			log.Warn("VM still running after %d checks", v.StopAttempts)
			v.sink.Warn("VM did not stop gracefully, forcing destruction")
		}
	}

	v.sink.Info("Destroying VM %s...", name)
	opts := domain.DeleteOptions{Purge: true, DestroyUnreferencedDisks: true}
	if err := v.api.DeleteVm(ctx, node, vmID, opts); err != nil {
		v.sink.Error("Error destroying VM: %v", err)
		return name, domain.AtStage(domain.StageDelete, err)
	}

	v.sink.Info("VM %s has been destroyed", name)

	return name, nil
}

func (v *VmService) waitStopped(ctx context.Context, node string, vmID int) (bool, error) {
	for i := 0; i < v.StopAttempts; i++ {
		v.clock.Sleep(PollInterval)

		state, err := v.api.GetVmStatus(ctx, node, vmID)
		if err != nil {
			return false, err
		}

		if state.RunState() == domain.RunStateStopped {
			return true, nil
		}

		v.log.Debug("Waiting for VM %d to stop -> Status: %s", vmID, state.Status)
	}

	return false, nil
}
