package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// NewVehicleCommand creates the vehicle command with subcommands
func NewVehicleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vehicle",
		Short: "Inspect and steer vehicles",
		Long: `Inspect vehicles and toggle their execution flag.

Vehicles are the shuttles and free-roaming AMRs registered with the
controller. A vehicle with executing disabled keeps reporting state but
receives no new tasks.

Examples:
  wcs vehicle list
  wcs vehicle list --kind shuttle
  wcs vehicle get SH-01
  wcs vehicle executing SH-01 --enable`,
	}

	// Add subcommands
	cmd.AddCommand(newVehicleListCommand())
	cmd.AddCommand(newVehicleGetCommand())
	cmd.AddCommand(newVehicleExecutingCommand())

	return cmd
}

// newVehicleListCommand creates the vehicle list subcommand
func newVehicleListCommand() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered vehicles",
		Long: `List the fleet snapshot, optionally filtered by kind.

Examples:
  wcs vehicle list
  wcs vehicle list --kind amr`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newDaemonClient()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			resp, err := client.ListVehicles(ctx, kind)
			if err != nil {
				return fmt.Errorf("failed to list vehicles: %w", err)
			}

			if len(resp.Vehicles) == 0 {
				fmt.Println("No vehicles registered.")
				return nil
			}

			// Display table
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "VEHICLE\tKIND\tFLOOR\tCELL\tSTATUS\tCARRYING\tEXEC\tTASK")
			fmt.Fprintln(w, "-------\t----\t-----\t----\t------\t--------\t----\t----")

			for _, v := range resp.Vehicles {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%t\t%t\t%s\n",
					v.ID,
					v.Kind,
					v.FloorID,
					orDash(v.NodeQR),
					v.Status,
					v.Carrying,
					v.Executing,
					orDash(v.TaskID),
				)
			}

			w.Flush()

			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Filter by vehicle kind (shuttle, amr, lifter)")

	return cmd
}

// newVehicleGetCommand creates the vehicle get subcommand
func newVehicleGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <vehicle-id>",
		Short: "Show one vehicle in detail",
		Long: `Display the full live state of one vehicle, including its current
task when assigned.

Example:
  wcs vehicle get SH-01`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newDaemonClient()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			resp, err := client.GetVehicle(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get vehicle: %w", err)
			}

			v := resp.Vehicle
			fmt.Printf("Vehicle %s\n", v.ID)
			fmt.Printf("  Kind:      %s\n", v.Kind)
			fmt.Printf("  Floor:     %d\n", v.FloorID)
			fmt.Printf("  Cell:      %s\n", orDash(v.NodeQR))
			fmt.Printf("  Position:  (%.2f, %.2f)\n", v.X, v.Y)
			fmt.Printf("  Status:    %s\n", v.Status)
			fmt.Printf("  Carrying:  %t\n", v.Carrying)
			fmt.Printf("  Battery:   %.1f%%\n", v.Battery)
			fmt.Printf("  Executing: %t\n", v.Executing)
			fmt.Printf("  Updated:   %s\n", formatTimestamp(v.UpdatedAt))

			if resp.TaskID != "" {
				fmt.Printf("\nCurrent task: %s (%s)\n", resp.TaskID, resp.TaskStatus)
			}

			if verbose {
				fmt.Println("\nRaw record:")
				fmt.Println(prettyPrint(v))
			}

			return nil
		},
	}

	return cmd
}

// newVehicleExecutingCommand creates the vehicle executing subcommand
func newVehicleExecutingCommand() *cobra.Command {
	var (
		enable  bool
		disable bool
	)

	cmd := &cobra.Command{
		Use:   "executing <vehicle-id>",
		Short: "Toggle a vehicle's executing flag",
		Long: `Enable or disable task execution for one vehicle.

A disabled vehicle keeps its current task but is skipped by the
dispatcher until re-enabled.

Examples:
  wcs vehicle executing SH-01 --enable
  wcs vehicle executing SH-01 --disable`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if enable == disable {
				return fmt.Errorf("exactly one of --enable or --disable is required")
			}

			client, err := newDaemonClient()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			resp, err := client.SetExecuting(ctx, args[0], enable)
			if err != nil {
				return fmt.Errorf("failed to set executing flag: %w", err)
			}

			if resp.Executing {
				fmt.Printf("✓ Vehicle %s is now executing\n", resp.VehicleID)
			} else {
				fmt.Printf("✓ Vehicle %s is now paused\n", resp.VehicleID)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&enable, "enable", false, "Enable task execution")
	cmd.Flags().BoolVar(&disable, "disable", false, "Disable task execution")

	return cmd
}
