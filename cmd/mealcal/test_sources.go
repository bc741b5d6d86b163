package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var testSourcesCmd = &cobra.Command{
	Use:   "test-sources",
	Short: "Fetch and parse every enabled source and report its health",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		reports := a.service.TestSources(cmd.Context())
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd.OutOrStdout(), reports)
		}

		names := make([]string, 0, len(reports))
		for name := range reports {
			names = append(names, name)
		}
		sort.Strings(names)

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SOURCE\tSTATUS\tEVENTS\tSIZE\tERROR")
		failed := 0
		for _, name := range names {
			r := reports[name]
			status := "ok"
			if !r.Success {
				status = "FAIL"
				failed++
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", name, status, r.EventCount, humanize.Bytes(uint64(r.ResponseSize)), r.Error)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d sources failed", failed, len(reports))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(testSourcesCmd)
	testSourcesCmd.Flags().Bool("json", false, "print the raw report as JSON")
}
