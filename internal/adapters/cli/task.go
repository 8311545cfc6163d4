package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// NewTaskCommand creates the task command with subcommands
func NewTaskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage transport tasks",
		Long: `Manage transport tasks and view their progress.

Tasks move pallets from a pickup cell to a storage row, possibly across
floors. Staged orders wait for a free slot, pending tasks wait for a
vehicle, processing tasks are being executed.

Examples:
  wcs task stage --pickup-qr A1:03 --pickup-floor 1 --pallet-type EUR --target-row 12
  wcs task list
  wcs task get <task-id>
  wcs task events <task-id>`,
	}

	// Add subcommands
	cmd.AddCommand(newTaskStageCommand())
	cmd.AddCommand(newTaskListCommand())
	cmd.AddCommand(newTaskGetCommand())
	cmd.AddCommand(newTaskEventsCommand())

	return cmd
}

// newTaskStageCommand creates the task stage subcommand
func newTaskStageCommand() *cobra.Command {
	var (
		pickupQR    string
		pickupFloor int
		palletType  string
		itemInfo    string
		targetRow   int
		targetFloor int
	)

	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Stage a new transport order",
		Long: `Submit a transport order to the staging queue.

The order waits in the staging queue until the scheduler promotes it to
a pending task. Omit --target-row to let the scheduler pick a row for
the pallet type.

Examples:
  wcs task stage --pickup-qr A1:03 --pickup-floor 1 --pallet-type EUR --target-row 12
  wcs task stage --pickup-qr A1:03 --pickup-floor 1 --pallet-type EUR --target-floor 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newDaemonClient()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			var rowPtr *int
			if cmd.Flags().Changed("target-row") {
				rowPtr = &targetRow
			}

			resp, err := client.StageOrder(ctx, pickupQR, pickupFloor, palletType, itemInfo, rowPtr, targetFloor)
			if err != nil {
				return fmt.Errorf("failed to stage order: %w", err)
			}

			fmt.Println("✓ Order staged successfully")
			fmt.Printf("  Order ID: %s\n", resp.OrderID)
			fmt.Printf("  Position: %d\n", resp.Position)

			return nil
		},
	}

	cmd.Flags().StringVar(&pickupQR, "pickup-qr", "", "Pickup cell QR code (required)")
	cmd.Flags().IntVar(&pickupFloor, "pickup-floor", 0, "Pickup floor (required)")
	cmd.Flags().StringVar(&palletType, "pallet-type", "", "Pallet type (required)")
	cmd.Flags().StringVar(&itemInfo, "item-info", "", "Free-form item description")
	cmd.Flags().IntVar(&targetRow, "target-row", 0, "Target storage row (optional)")
	cmd.Flags().IntVar(&targetFloor, "target-floor", 0, "Target floor (optional)")
	cmd.MarkFlagRequired("pickup-qr")
	cmd.MarkFlagRequired("pickup-floor")
	cmd.MarkFlagRequired("pallet-type")

	return cmd
}

// newTaskListCommand creates the task list subcommand
func newTaskListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List in-flight tasks and queue depths",
		Long: `List tasks currently being processed plus the pending and staged
queue depths.

Example:
  wcs task list`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newDaemonClient()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			resp, err := client.ListTasks(ctx)
			if err != nil {
				return fmt.Errorf("failed to list tasks: %w", err)
			}

			fmt.Printf("Staged: %d   Pending: %d   Processing: %d\n\n",
				resp.Staged, resp.Pending, len(resp.Processing))

			if len(resp.Processing) == 0 {
				fmt.Println("No tasks in progress.")
				return nil
			}

			// Display table
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TASK ID\tSTATUS\tVEHICLE\tSOURCE\tDEST\tROW\tRETRIES")
			fmt.Fprintln(w, "-------\t------\t-------\t------\t----\t---\t-------")

			for _, t := range resp.Processing {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s (F%d)\t%s (F%d)\t%d\t%d\n",
					t.ID,
					t.Status,
					orDash(t.VehicleID),
					t.SourceQR,
					t.SourceFloor,
					orDash(t.DestQR),
					t.DestFloor,
					t.Row,
					t.RetryCount,
				)
			}

			w.Flush()

			return nil
		},
	}

	return cmd
}

// newTaskGetCommand creates the task get subcommand
func newTaskGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <task-id>",
		Short: "Show one task in detail",
		Long: `Display the full record of one task.

Example:
  wcs task get 4f7c2a1e`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newDaemonClient()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			resp, err := client.GetTask(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get task: %w", err)
			}

			t := resp.Task
			fmt.Printf("Task %s\n", t.ID)
			fmt.Printf("  Status:      %s\n", t.Status)
			fmt.Printf("  Sequence:    %d\n", t.Seq)
			fmt.Printf("  Source:      %s (floor %d)\n", t.SourceQR, t.SourceFloor)
			fmt.Printf("  Destination: %s (floor %d, row %d)\n", orDash(t.DestQR), t.DestFloor, t.Row)
			fmt.Printf("  Pallet:      %s\n", orDash(t.PalletType))
			if t.ItemInfo != "" {
				fmt.Printf("  Item:        %s\n", t.ItemInfo)
			}
			if t.BatchID != "" {
				fmt.Printf("  Batch:       %s\n", t.BatchID)
			}
			fmt.Printf("  Vehicle:     %s\n", orDash(t.VehicleID))
			fmt.Printf("  Retries:     %d\n", t.RetryCount)
			if t.FailReason != "" {
				fmt.Printf("  Fail Reason: %s\n", t.FailReason)
			}
			fmt.Printf("  Created:     %s\n", formatTimestamp(t.CreatedAt))
			fmt.Printf("  Assigned:    %s\n", formatTimestamp(t.AssignedAt))
			fmt.Printf("  Completed:   %s\n", formatTimestamp(t.CompletedAt))

			if verbose {
				fmt.Println("\nRaw record:")
				fmt.Println(prettyPrint(t))
			}

			return nil
		},
	}

	return cmd
}

// newTaskEventsCommand creates the task events subcommand
func newTaskEventsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events <task-id>",
		Short: "Show the recorded history of a task",
		Long: `Display the durable event trail of one task in chronological order.

Example:
  wcs task events 4f7c2a1e`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newDaemonClient()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			resp, err := client.GetTaskEvents(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get task events: %w", err)
			}

			if len(resp.Events) == 0 {
				fmt.Printf("No events recorded for task %s.\n", resp.TaskID)
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tTYPE\tVEHICLE\tDETAIL")
			fmt.Fprintln(w, "----\t----\t-------\t------")

			for _, e := range resp.Events {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					formatTimestamp(e.OccurredAt),
					e.Type,
					orDash(e.VehicleID),
					orDash(e.Detail),
				)
			}

			w.Flush()

			return nil
		},
	}

	return cmd
}
