package command

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pathline/lis/billing"
)

var invoicesRepairParams = struct {
	Actor string
}{}

var invoicesCmd = &cobra.Command{
	Use:   "invoices",
	Short: "Manage invoices",
	Long:  "The invoices command is used to maintain billing records",
}

var invoicesRepairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Create missing samples",
	Long:  "The repair command creates the sample of every invoice that does not have one",
	RunE:  func(cmd *cobra.Command, args []string) error { return Run(repairInvoices) },
}

func repairInvoices(service billing.Service, logger *zap.SugaredLogger) error {
	repaired, err := service.RepairOrphans(context.TODO(), invoicesRepairParams.Actor)
	if err != nil {
		return err
	}

	for _, invoice := range repaired {
		logger.Infow("created missing sample", "invoiceId", invoice.InvoiceId)
		fmt.Printf("%s %s\n", invoice.Id.Hex(), invoice.InvoiceId)
	}
	fmt.Printf("Repaired %v invoices\n", len(repaired))

	return nil
}

func init() {
	invoicesRepairCmd.Flags().StringVar(&invoicesRepairParams.Actor, "actor", "", "User id recorded as the creator of the samples")

	invoicesCmd.AddCommand(invoicesRepairCmd)
	rootCmd.AddCommand(invoicesCmd)
}
