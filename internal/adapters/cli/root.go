package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	daemonAddress string
	verbose       bool
)

// NewRootCommand creates the root command for the CLI
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wcs",
		Short: "WCS CLI - Interact with the warehouse control daemon",
		Long: `WCS CLI provides commands to inspect and steer the warehouse fleet.
The CLI communicates with the daemon via its HTTP API.

Examples:
  wcs task stage --pickup-qr A1:03 --pickup-floor 1 --pallet-type EUR --target-row 12
  wcs task list
  wcs task events <task-id>
  wcs vehicle list --kind shuttle
  wcs vehicle executing SH-01 --enable
  wcs lifter status
  wcs amr path --amr AMR-02 --start B0:01 --end B0:14 --floor 1
  wcs operations dispatch-next`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Global setup (if needed)
		},
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&daemonAddress, "address", "",
		"Daemon address (default from WCS_ADDRESS or user config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable verbose output")

	// Add command groups
	rootCmd.AddCommand(NewConfigCommand())
	rootCmd.AddCommand(NewTaskCommand())
	rootCmd.AddCommand(NewVehicleCommand())
	rootCmd.AddCommand(NewLifterCommand())
	rootCmd.AddCommand(NewAMRCommand())
	rootCmd.AddCommand(NewHealthCommand())
	rootCmd.AddCommand(NewOperationsCommand())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
