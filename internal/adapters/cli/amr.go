package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// NewAMRCommand creates the amr command with subcommands
func NewAMRCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "amr",
		Short: "Drive free-roaming AMRs",
		Long: `Plan moves for free-roaming AMRs and inspect their telemetry.

Examples:
  wcs amr path --amr AMR-02 --start B0:01 --end B0:14 --floor 1
  wcs amr data AMR-02`,
	}

	// Add subcommands
	cmd.AddCommand(newAMRPathCommand())
	cmd.AddCommand(newAMRDataCommand())

	return cmd
}

// newAMRPathCommand creates the amr path subcommand
func newAMRPathCommand() *cobra.Command {
	var (
		amrID   string
		start   string
		end     string
		floorID int
	)

	cmd := &cobra.Command{
		Use:   "path",
		Short: "Plan and enqueue an AMR move",
		Long: `Plan a shortest path between two cells and hand it to the AMR
executor as a move task.

Example:
  wcs amr path --amr AMR-02 --start B0:01 --end B0:14 --floor 1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newDaemonClient()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			resp, err := client.EnqueueMove(ctx, amrID, start, end, floorID)
			if err != nil {
				return fmt.Errorf("failed to enqueue move: %w", err)
			}

			fmt.Println("✓ Move enqueued")
			fmt.Printf("  Task ID: %s\n", resp.TaskID)
			fmt.Printf("  Steps:   %d\n", len(resp.MoveTaskList))
			if verbose {
				fmt.Printf("  Route:   %s\n", strings.Join(resp.MoveTaskList, " -> "))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&amrID, "amr", "", "AMR id (required)")
	cmd.Flags().StringVar(&start, "start", "", "Start cell QR (required)")
	cmd.Flags().StringVar(&end, "end", "", "End cell QR (required)")
	cmd.Flags().IntVar(&floorID, "floor", 0, "Floor id (required)")
	cmd.MarkFlagRequired("amr")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
	cmd.MarkFlagRequired("floor")

	return cmd
}

// newAMRDataCommand creates the amr data subcommand
func newAMRDataCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data <amr-id>",
		Short: "Show the last vendor telemetry for an AMR",
		Long: `Display the last raw telemetry payload polled from the vendor API
for one AMR.

Example:
  wcs amr data AMR-02`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newDaemonClient()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			resp, err := client.GetTelemetry(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get telemetry: %w", err)
			}

			fmt.Printf("Telemetry for %s:\n", resp.AMRID)
			fmt.Println(prettyPrint(resp.Data))

			return nil
		},
	}

	return cmd
}
