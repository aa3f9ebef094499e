package main

import (
	"github.com/spf13/cobra"
)

func newDestroyCmd(root *rootFlags) *cobra.Command {
	var id int

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Destroy a VM",
		Long: `Destroy a virtual machine by ID.

This will:
- Ask for confirmation
- Stop the VM if running
- Delete the VM, purging it from jobs and destroying unreferenced disks`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root.settings(cmd), root.configFile)
			if err != nil {
				return err
			}

			vms, err := connect(cmd, cfg)
			if err != nil {
				return err
			}

			_, err = vms.Destroy(cmd.Context(), cfg.Proxmox.Node, id)
			return err
		},
	}

	cmd.Flags().IntVar(&id, "id", 0, "VM ID to destroy")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}
