package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/idkosilov/furniture/internal/domain/events"
)

var allocateCmd = &cobra.Command{
	Use:   "allocate <order-ref> <sku> <qty>",
	Short: "Allocate an order line to a batch",
	Args:  cobra.ExactArgs(3),
	RunE:  runAllocate,
}

var deallocateCmd = &cobra.Command{
	Use:   "deallocate <order-ref> <sku> <qty>",
	Short: "Release an order line from its batch",
	Args:  cobra.ExactArgs(3),
	RunE:  runDeallocate,
}

var allocationsCmd = &cobra.Command{
	Use:   "allocations <order-ref>",
	Short: "Show where the lines of an order are allocated",
	Args:  cobra.ExactArgs(1),
	RunE:  runAllocations,
}

func init() {
	rootCmd.AddCommand(allocateCmd)
	rootCmd.AddCommand(deallocateCmd)
	rootCmd.AddCommand(allocationsCmd)
}

func parseLine(args []string) (orderRef, sku string, qty int, err error) {
	qty, err = parseQty(args[2])
	if err != nil {
		return "", "", 0, err
	}
	if qty == 0 {
		return "", "", 0, errors.New("quantity must be positive")
	}
	return args[0], args[1], qty, nil
}

func runAllocate(cmd *cobra.Command, args []string) error {
	orderRef, sku, qty, err := parseLine(args)
	if err != nil {
		return err
	}

	return withApp(cmd.Context(), func(a *app) error {
		results, err := a.handle(cmd.Context(), events.AllocationRequired{OrderRef: orderRef, SKU: sku, Qty: qty})
		if err != nil {
			return err
		}
		for _, r := range results {
			if batchRef, ok := r.(string); ok {
				cmd.Printf("Allocated %s to batch %s.\n", orderRef, batchRef)
				return nil
			}
		}
		return fmt.Errorf("allocation of %s produced no batch", orderRef)
	})
}

func runDeallocate(cmd *cobra.Command, args []string) error {
	orderRef, sku, qty, err := parseLine(args)
	if err != nil {
		return err
	}

	return withApp(cmd.Context(), func(a *app) error {
		if _, err := a.handle(cmd.Context(), events.DeallocationRequired{OrderRef: orderRef, SKU: sku, Qty: qty}); err != nil {
			return err
		}
		cmd.Printf("Deallocated %s from %s.\n", orderRef, sku)
		return nil
	})
}

func runAllocations(cmd *cobra.Command, args []string) error {
	orderRef := args[0]

	return withApp(cmd.Context(), func(a *app) error {
		rows, err := a.views.Allocations(cmd.Context(), orderRef)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			cmd.Printf("No allocations for %s.\n", orderRef)
			return nil
		}
		for _, row := range rows {
			cmd.Printf("%s\t%s\n", row.SKU, row.BatchRef)
		}
		return nil
	})
}
