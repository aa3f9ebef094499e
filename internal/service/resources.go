package service

import (
	"context"
	"strings"

	"pve-cloner/internal/domain"
	"pve-cloner/internal/logger"
	"pve-cloner/internal/output"
)

type ResourceService struct {
	log  *logger.Logger
	api  API
	sink output.Sink
}

func NewResourceService(api API, sink output.Sink) *ResourceService {
	return &ResourceService{
		log:  logger.NewLogger("ResourceService"),
		api:  api,
		sink: sink,
	}
}

// Apply sets memory and cores on the VM and, when diskSize is given,
// resizes its main disk. It returns the slot of the main disk.
func (s *ResourceService) Apply(ctx context.Context, node string, vmID, memory, cores int, diskSize *string) (string, error) {
	cfg, err := s.api.GetVmConfig(ctx, node, vmID)
	if err != nil {
		s.sink.Error("Error getting VM config: %v", err)
		s.sink.Error("Failed to get VM configuration")
		return "", domain.NewFailure(domain.FailureConfigFetch, "", err)
	}

	disk, ok := domain.FindMainDisk(cfg)
	if !ok {
		candidates := domain.DiskCandidates(cfg)
		s.sink.Error("Could not find main disk in VM configuration")
		s.sink.Info("Available disks: [%s]", strings.Join(candidates, " "))
		return "", domain.NewFailure(domain.FailureNoDisk, strings.Join(candidates, " "), nil)
	}

	s.log.Debug("VM %d main disk is %s (%s)", vmID, disk, cfg[disk])
	s.sink.Info("Setting VM resources (disk: %s)...", disk)

	err = s.api.SetVmConfig(ctx, node, vmID, map[string]interface{}{
		"memory": memory,
		"cores":  cores,
	})
	if err != nil {
		s.sink.Error("Error setting VM resources: %v", err)
		return disk, domain.NewFailure(domain.FailureRemote, "set memory and cores", err)
	}

	if diskSize != nil && *diskSize != "" {
		if err := s.api.ResizeDisk(ctx, node, vmID, disk, *diskSize); err != nil {
			s.sink.Error("Error setting VM resources: %v", err)
			return disk, domain.NewFailure(domain.FailureRemote, "resize "+disk, err)
		}
	}

	return disk, nil
}
