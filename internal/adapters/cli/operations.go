package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewOperationsCommand creates the operations command with subcommands
func NewOperationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operations",
		Short: "Operator controls for the running daemon",
		Long: `Operator controls that nudge the running daemon outside its normal
cadence.

Examples:
  # Force one dispatch attempt right now
  wcs operations dispatch-next

  # Re-read the floor plan catalog from the database
  wcs operations reload-plan`,
	}

	cmd.AddCommand(newOperationsDispatchNextCommand())
	cmd.AddCommand(newOperationsReloadPlanCommand())

	return cmd
}

// newOperationsDispatchNextCommand creates the operations dispatch-next subcommand
func newOperationsDispatchNextCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispatch-next",
		Short: "Force one dispatch attempt",
		Long: `Wake the dispatcher for one immediate pass over the pending queue.

Useful after manually freeing a vehicle or clearing a blocked cell.

Example:
  wcs operations dispatch-next`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newDaemonClient()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			resp, err := client.DispatchNext(ctx)
			if err != nil {
				return fmt.Errorf("failed to trigger dispatch: %w", err)
			}

			if resp.Dispatched {
				fmt.Println("✓ Task dispatched")
			} else {
				fmt.Println("No task dispatched (nothing pending or no vehicle free)")
			}

			return nil
		},
	}

	return cmd
}

// newOperationsReloadPlanCommand creates the operations reload-plan subcommand
func newOperationsReloadPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reload-plan",
		Short: "Reload the floor plan catalog",
		Long: `Re-read the floor plan catalog from the database.

Running components keep their current plan; the refreshed catalog is
picked up on the next daemon restart.

Example:
  wcs operations reload-plan`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newDaemonClient()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			resp, err := client.ReloadPlan(ctx)
			if err != nil {
				return fmt.Errorf("failed to reload plan: %w", err)
			}

			fmt.Println("✓ Floor plan catalog reloaded")
			fmt.Printf("  Source:  %s\n", resp.Source)
			fmt.Printf("  Message: %s\n", resp.Message)

			return nil
		},
	}

	return cmd
}
