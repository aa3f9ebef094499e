package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"k8s.io/utils/clock"

	"pve-cloner/internal/config"
	"pve-cloner/internal/domain"
	"pve-cloner/internal/logger"
	"pve-cloner/internal/output"
	"pve-cloner/internal/proxmox"
	"pve-cloner/internal/service"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	os.Exit(exitCode(os.Stderr, err))
}

// exitCode reports err unless the workflow already told the operator what
// went wrong. A destroy the operator declined is not an error.
func exitCode(w io.Writer, err error) int {
	if err == nil || domain.IsKind(err, domain.FailureCancelled) {
		return 0
	}

	var missing *config.MissingCredentialsError
	var failure *domain.Failure
	switch {
	case errors.As(err, &missing):
		fmt.Fprintln(w, "Error: Missing credentials. Please set environment variables or provide arguments:")
		for _, m := range missing.Missing {
			fmt.Fprintf(w, "  - %s\n", m)
		}
	case errors.As(err, &failure):
		// printed by the workflow
	default:
		fmt.Fprintf(w, "Error: %v\n", err)
	}

	return 1
}

type rootFlags struct {
	host        string
	port        int
	tokenUser   string
	tokenSecret string
	node        string
	verifySSL   bool
	configFile  string
	logLevel    string
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "pve-cloner",
		Short: "Clone and manage Proxmox VMs",
		Long: `pve-cloner clones Proxmox VE templates into running VMs and destroys them.

Connection settings come from flags, PVE_* environment variables or a YAML
config file, in that order.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f.register(cmd)

	cmd.AddCommand(newCloneCmd(f))
	cmd.AddCommand(newDestroyCmd(f))

	return cmd
}

func (f *rootFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.host, "host", "", "Proxmox host (default: $"+config.EnvHost+")")
	pf.IntVar(&f.port, "port", 0, "Proxmox port (default: 8006 for IP, 443 for domain)")
	pf.StringVar(&f.tokenUser, "token-user", "", "API token user, user@realm!tokenname (default: $"+config.EnvTokenUser+")")
	pf.StringVar(&f.tokenSecret, "token-secret", "", "API token secret (default: $"+config.EnvTokenSecret+")")
	pf.StringVar(&f.node, "node", "", "Proxmox node name (default: "+config.DefaultNode+")")
	pf.BoolVar(&f.verifySSL, "verify-ssl", false, "Verify the API server certificate")
	pf.StringVar(&f.configFile, "config", "", "YAML config file (default: $"+config.EnvConfigFile+")")
	pf.StringVar(&f.logLevel, "log-level", "", "Diagnostic log level (default: "+config.DefaultLogLevel+")")
}

// settings collects the persistent flags the operator actually set.
func (f *rootFlags) settings(cmd *cobra.Command) *config.Settings {
	s := &config.Settings{}
	flags := cmd.Flags()

	if flags.Changed("host") {
		s.Host = &f.host
	}
	if flags.Changed("port") {
		s.Port = &f.port
	}
	if flags.Changed("token-user") {
		s.TokenUser = &f.tokenUser
	}
	if flags.Changed("token-secret") {
		s.TokenSecret = &f.tokenSecret
	}
	if flags.Changed("node") {
		s.Node = &f.node
	}
	if flags.Changed("verify-ssl") {
		s.VerifySSL = &f.verifySSL
	}
	if flags.Changed("log-level") {
		s.LogLevel = &f.logLevel
	}

	return s
}

func loadConfig(flagSettings *config.Settings, configFile string) (*config.AppConfig, error) {
	if configFile == "" {
		configFile = os.Getenv(config.EnvConfigFile)
	}

	var file *config.Settings
	if configFile != "" {
		var err error
		if file, err = config.LoadFile(configFile); err != nil {
			return nil, err
		}
	}

	return config.Resolve(flagSettings, os.LookupEnv, file)
}

// connect sets up logging and builds the workflow service on top of an API
// client for cfg.
func connect(cmd *cobra.Command, cfg *config.AppConfig) (*service.VmService, error) {
	if _, err := logger.Configure(cfg.LogLevel, os.Stderr); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	px := cfg.Proxmox
	fmt.Fprintf(cmd.OutOrStdout(), "Connecting to Proxmox API at %s on port %d...\n", px.Host, px.Port)

	client, err := proxmox.NewClient(px)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Proxmox API: %w", err)
	}

	return service.NewVmService(
		client,
		output.NewConsole(cmd.OutOrStdout()),
		output.NewPrompt(cmd.InOrStdin(), cmd.OutOrStdout()),
		clock.RealClock{},
	), nil
}
