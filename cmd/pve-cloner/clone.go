package main

import (
	"github.com/spf13/cobra"
	"k8s.io/utils/ptr"

	"pve-cloner/internal/config"
	"pve-cloner/internal/domain"
)

type cloneFlags struct {
	id         int
	name       string
	template   int
	memory     int
	cores      int
	disk       string
	ip         string
	gateway    string
	nameserver string
}

func newCloneCmd(root *rootFlags) *cobra.Command {
	f := &cloneFlags{}

	cmd := &cobra.Command{
		Use:   "clone",
		Short: "Clone a VM from a template",
		Long: `Clone a template into a new VM, apply memory, cores and disk size,
optionally configure a static cloud-init address, and start it.

The clone is a full copy. Nothing is rolled back if a later step fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := root.settings(cmd)
			if cmd.Flags().Changed("template") {
				settings.TemplateID = &f.template
			}

			cfg, err := loadConfig(settings, root.configFile)
			if err != nil {
				return err
			}

			vms, err := connect(cmd, cfg)
			if err != nil {
				return err
			}

			_, err = vms.Clone(cmd.Context(), f.request(cmd, cfg.Proxmox))
			return err
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&f.id, "id", 0, "New VM ID")
	flags.StringVar(&f.name, "name", "", "New VM name")
	flags.IntVar(&f.template, "template", config.DefaultTemplateID, "Template VM ID")
	flags.IntVar(&f.memory, "memory", config.DefaultMemory, "Memory in MB")
	flags.IntVar(&f.cores, "cores", config.DefaultCores, "Number of CPU cores")
	flags.StringVar(&f.disk, "disk", "", "Disk size (e.g., 32G)")
	flags.StringVar(&f.ip, "ip", "", "IP address with CIDR (e.g., 192.168.86.133/24)")
	flags.StringVar(&f.gateway, "gateway", "", "Gateway IP address")
	flags.StringVar(&f.nameserver, "nameserver", "", "DNS nameserver")

	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func (f *cloneFlags) request(cmd *cobra.Command, px *config.ProxmoxConfig) *domain.CloneRequest {
	optional := func(flag, value string) *string {
		if !cmd.Flags().Changed(flag) || value == "" {
			return nil
		}
		return ptr.To(value)
	}

	return &domain.CloneRequest{
		TemplateID: px.TemplateID,
		TargetID:   f.id,
		Node:       px.Node,
		Name:       f.name,
		Memory:     f.memory,
		Cores:      f.cores,
		DiskSize:   optional("disk", f.disk),
		IPAddress:  optional("ip", f.ip),
		Gateway:    optional("gateway", f.gateway),
		Nameserver: optional("nameserver", f.nameserver),
	}
}
