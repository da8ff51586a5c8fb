package command

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pathline/lis/analytics"
	"github.com/pathline/lis/daterange"
)

var analyticsExportParams = struct {
	From   string
	To     string
	Date   string
	Range  string
	Output string
}{}

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Lab analytics",
	Long:  "The analytics command is used to extract reports",
}

var analyticsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the dashboard as a spreadsheet",
	Long:  "The export command writes revenue, invoices, samples and payments of a period to an xlsx workbook",
	RunE:  func(cmd *cobra.Command, args []string) error { return Run(exportAnalytics) },
}

func exportAnalytics(service analytics.Service, resolver *daterange.Resolver) error {
	timeRange, err := resolver.Resolve(daterange.Query{
		From:  optional(analyticsExportParams.From),
		To:    optional(analyticsExportParams.To),
		Date:  optional(analyticsExportParams.Date),
		Range: optional(analyticsExportParams.Range),
	}, daterange.Last7Days)
	if err != nil {
		return err
	}

	file, err := service.Export(context.TODO(), timeRange)
	if err != nil {
		return err
	}
	if err := file.Save(analyticsExportParams.Output); err != nil {
		return fmt.Errorf("unable to save export: %w", err)
	}

	fmt.Printf("Saved %s\n", analyticsExportParams.Output)
	return nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func init() {
	analyticsExportCmd.Flags().StringVar(&analyticsExportParams.From, "from", "", "First day (YYYY-MM-DD)")
	analyticsExportCmd.Flags().StringVar(&analyticsExportParams.To, "to", "", "Last day (YYYY-MM-DD)")
	analyticsExportCmd.Flags().StringVar(&analyticsExportParams.Date, "date", "", "Single day (YYYY-MM-DD)")
	analyticsExportCmd.Flags().StringVar(&analyticsExportParams.Range, "range", "", "One of today, 7days, 30days")
	analyticsExportCmd.Flags().StringVarP(&analyticsExportParams.Output, "output", "o", "analytics.xlsx", "Output file")

	analyticsCmd.AddCommand(analyticsExportCmd)
	rootCmd.AddCommand(analyticsCmd)
}
