package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewLifterCommand creates the lifter command with subcommands
func NewLifterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lifter",
		Short: "Inspect and drive the lifter",
		Long: `Inspect the lifter and drive its trip queue.

The lifter carries shuttles between floors. Trips are served strictly in
request order. The request and complete subcommands mirror what shuttles
do automatically and exist for manual recovery.

Examples:
  wcs lifter status
  wcs lifter request --vehicle SH-01 --from 1 --to 2 --entry E2:01
  wcs lifter complete <trip-id>`,
	}

	// Add subcommands
	cmd.AddCommand(newLifterStatusCommand())
	cmd.AddCommand(newLifterRequestCommand())
	cmd.AddCommand(newLifterCompleteCommand())

	return cmd
}

// newLifterStatusCommand creates the lifter status subcommand
func newLifterStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show lifter status",
		Long: `Display the lifter's live state and queue depth.

Example:
  wcs lifter status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newDaemonClient()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			resp, err := client.GetLifterStatus(ctx)
			if err != nil {
				return fmt.Errorf("failed to get lifter status: %w", err)
			}

			fmt.Printf("Lifter %s\n", resp.ID)
			fmt.Printf("  Status:        %s\n", resp.Status)
			fmt.Printf("  Current Floor: %d\n", resp.CurrentFloor)
			if resp.TargetFloor != 0 {
				fmt.Printf("  Target Floor:  %d\n", resp.TargetFloor)
			}
			fmt.Printf("  Carried By:    %s\n", orDash(resp.CarriedBy))
			fmt.Printf("  Queue Length:  %d\n", resp.QueueLen)
			fmt.Printf("  Updated:       %s\n", formatTimestamp(resp.UpdatedAt))

			return nil
		},
	}

	return cmd
}

// newLifterRequestCommand creates the lifter request subcommand
func newLifterRequestCommand() *cobra.Command {
	var (
		lifterID  string
		vehicleID string
		taskID    string
		fromFloor int
		toFloor   int
		entryQR   string
		boarded   bool
	)

	cmd := &cobra.Command{
		Use:   "request",
		Short: "Enqueue a lifter trip",
		Long: `Enqueue a lifter trip on behalf of a shuttle.

Use --boarded when the shuttle is already standing on the lifter
platform, for example when recovering from a restart mid-trip.

Example:
  wcs lifter request --vehicle SH-01 --from 1 --to 2 --entry E2:01`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newDaemonClient()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			resp, err := client.RequestTrip(ctx, lifterID, vehicleID, taskID, fromFloor, toFloor, entryQR, boarded)
			if err != nil {
				return fmt.Errorf("failed to request trip: %w", err)
			}

			fmt.Println("✓ Trip enqueued")
			fmt.Printf("  Trip ID:  %s\n", resp.TripID)
			fmt.Printf("  Position: %d\n", resp.Position)

			return nil
		},
	}

	cmd.Flags().StringVar(&lifterID, "lifter", "", "Lifter id (defaults to the single configured lifter)")
	cmd.Flags().StringVar(&vehicleID, "vehicle", "", "Requesting vehicle id (required)")
	cmd.Flags().StringVar(&taskID, "task", "", "Task the trip belongs to")
	cmd.Flags().IntVar(&fromFloor, "from", 0, "Origin floor (required)")
	cmd.Flags().IntVar(&toFloor, "to", 0, "Destination floor (required)")
	cmd.Flags().StringVar(&entryQR, "entry", "", "Entry cell QR on the destination floor")
	cmd.Flags().BoolVar(&boarded, "boarded", false, "Vehicle is already on the platform")
	cmd.MarkFlagRequired("vehicle")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")

	return cmd
}

// newLifterCompleteCommand creates the lifter complete subcommand
func newLifterCompleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete <trip-id>",
		Short: "Mark a lifter trip finished",
		Long: `Mark a lifter trip finished and release the platform.

Prints the next queued trip when one is waiting.

Example:
  wcs lifter complete 9c41d7b2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newDaemonClient()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			resp, err := client.CompleteTrip(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to complete trip: %w", err)
			}

			fmt.Println("✓ Trip completed")
			if resp.HasNext {
				fmt.Printf("  Next: %s (floor %d -> %d)\n",
					resp.NextVehicleID, resp.NextFromFloor, resp.NextToFloor)
			} else {
				fmt.Println("  Queue is empty")
			}

			return nil
		},
	}

	return cmd
}
