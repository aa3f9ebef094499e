package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"

	"pve-cloner/internal/domain"
)

func TestApply_MemoryCoresAndResize(t *testing.T) {
	api := newMockAPI()
	sink := &recordingSink{}
	s := NewResourceService(api, sink)

	disk, err := s.Apply(context.Background(), "pve2", 900, 4096, 4, ptr.To("32G"))

	require.NoError(t, err)
	assert.Equal(t, "scsi0", disk)
	assert.Equal(t, []map[string]interface{}{{"memory": 4096, "cores": 4}}, api.setVmConfigCalls)
	assert.Equal(t, []resizeCall{{VMID: 900, Disk: "scsi0", Size: "32G"}}, api.resizeDiskCalls)
	assert.Equal(t, []string{"get-config", "set-config", "resize"}, api.calls)
	assert.Equal(t, []string{"Setting VM resources (disk: scsi0)..."}, sink.lines)
}

func TestApply_NoResizeWithoutSize(t *testing.T) {
	api := newMockAPI()
	s := NewResourceService(api, &recordingSink{})

	_, err := s.Apply(context.Background(), "pve2", 900, 2048, 2, nil)
	require.NoError(t, err)

	_, err = s.Apply(context.Background(), "pve2", 900, 2048, 2, ptr.To(""))
	require.NoError(t, err)

	assert.Empty(t, api.resizeDiskCalls)
	assert.Len(t, api.setVmConfigCalls, 2)
}

func TestApply_ConfigFetchFailed(t *testing.T) {
	api := newMockAPI()
	api.getVmConfigFunc = func(string, int) (domain.VmConfig, error) {
		return nil, errors.New("500 Internal Server Error")
	}
	sink := &recordingSink{}
	s := NewResourceService(api, sink)

	_, err := s.Apply(context.Background(), "pve2", 900, 2048, 2, ptr.To("32G"))

	assert.True(t, domain.IsKind(err, domain.FailureConfigFetch))
	assert.Empty(t, api.setVmConfigCalls)
	assert.Empty(t, api.resizeDiskCalls)
	assert.Contains(t, sink.lines, "Error: Failed to get VM configuration")
}

func TestApply_NoDiskFound(t *testing.T) {
	api := newMockAPI()
	api.getVmConfigFunc = func(string, int) (domain.VmConfig, error) {
		return domain.VmConfig{
			"ide0":   "none,media=cdrom",
			"sata0":  "local:iso/debian-12.iso,media=cdrom",
			"memory": "2048",
		}, nil
	}
	sink := &recordingSink{}
	s := NewResourceService(api, sink)

	_, err := s.Apply(context.Background(), "pve2", 900, 2048, 2, nil)

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.FailureNoDisk))
	var f *domain.Failure
	require.ErrorAs(t, err, &f)
	assert.Contains(t, f.Detail, "sata0=local:iso/debian-12.iso,media=cdrom")
	assert.Contains(t, f.Detail, "ide0=none,media=cdrom")
	assert.Equal(t, []string{
		"Error: Could not find main disk in VM configuration",
		"Available disks: [sata0=local:iso/debian-12.iso,media=cdrom ide0=none,media=cdrom]",
	}, sink.lines)
	assert.Empty(t, api.setVmConfigCalls)
}

func TestApply_SetConfigFails(t *testing.T) {
	api := newMockAPI()
	api.setVmConfigFunc = func(string, int, map[string]interface{}) error {
		return errors.New("VM is locked (clone)")
	}
	s := NewResourceService(api, &recordingSink{})

	disk, err := s.Apply(context.Background(), "pve2", 900, 2048, 2, ptr.To("32G"))

	assert.Equal(t, "scsi0", disk)
	assert.True(t, domain.IsKind(err, domain.FailureRemote))
	assert.Empty(t, api.resizeDiskCalls)
}

func TestApply_ResizeFails(t *testing.T) {
	api := newMockAPI()
	api.resizeDiskFunc = func(string, int, string, string) error {
		return errors.New("shrinking disks is not supported")
	}
	sink := &recordingSink{}
	s := NewResourceService(api, sink)

	_, err := s.Apply(context.Background(), "pve2", 900, 2048, 2, ptr.To("4G"))

	assert.True(t, domain.IsKind(err, domain.FailureRemote))
	assert.Contains(t, sink.lines, "Error: Error setting VM resources: shrinking disks is not supported")
}
