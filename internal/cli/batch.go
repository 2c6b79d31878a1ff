package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/idkosilov/furniture/internal/domain/events"
)

var batchETA string

var addBatchCmd = &cobra.Command{
	Use:   "add-batch <ref> <sku> <qty>",
	Short: "Register a batch of stock",
	Long: `Registers a batch. Without --eta the batch is treated as warehouse
stock; with it the batch is an incoming shipment.`,
	Args: cobra.ExactArgs(3),
	RunE: runAddBatch,
}

var changeQuantityCmd = &cobra.Command{
	Use:   "change-quantity <ref> <qty>",
	Short: "Change the purchased quantity of a batch",
	Long: `Overwrites the purchased quantity of a batch. Order lines that no
longer fit are reallocated to other batches of the same sku.`,
	Args: cobra.ExactArgs(2),
	RunE: runChangeQuantity,
}

func init() {
	addBatchCmd.Flags().StringVar(&batchETA, "eta", "", "expected arrival date (YYYY-MM-DD)")
	rootCmd.AddCommand(addBatchCmd)
	rootCmd.AddCommand(changeQuantityCmd)
}

func runAddBatch(cmd *cobra.Command, args []string) error {
	ref, sku := args[0], args[1]
	qty, err := parseQty(args[2])
	if err != nil {
		return err
	}

	var eta *time.Time
	if batchETA != "" {
		t, err := time.Parse(time.DateOnly, batchETA)
		if err != nil {
			return fmt.Errorf("invalid eta %q: expected YYYY-MM-DD", batchETA)
		}
		eta = &t
	}

	return withApp(cmd.Context(), func(a *app) error {
		event := events.BatchCreated{Ref: ref, SKU: sku, Qty: qty, ETA: eta}
		if _, err := a.handle(cmd.Context(), event); err != nil {
			return err
		}
		cmd.Printf("Batch %s added for %s.\n", ref, sku)
		return nil
	})
}

func runChangeQuantity(cmd *cobra.Command, args []string) error {
	ref := args[0]
	qty, err := parseQty(args[1])
	if err != nil {
		return err
	}

	return withApp(cmd.Context(), func(a *app) error {
		if _, err := a.handle(cmd.Context(), events.BatchQuantityChanged{Ref: ref, Qty: qty}); err != nil {
			return err
		}
		cmd.Printf("Batch %s now holds %d.\n", ref, qty)
		return nil
	})
}

func parseQty(s string) (int, error) {
	qty, err := strconv.Atoi(s)
	if err != nil || qty < 0 {
		return 0, fmt.Errorf("invalid quantity %q", s)
	}
	return qty, nil
}
