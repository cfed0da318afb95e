package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/fitter-core/internal/collection"
)

func newBestCmd() *cobra.Command {
	var logPath string
	var top int

	cmd := &cobra.Command{
		Use:   "best",
		Short: "Print the best parameter sets of a fitter log",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := collection.ReadFile(logPath)
			if err != nil {
				return err
			}
			rows, err := bestRows(log, top)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			names := log.Columns()
			for _, name := range names {
				fmt.Fprintf(w, "%s\t", name)
			}
			fmt.Fprintln(w)
			for _, i := range rows {
				row, _ := log.Row(i)
				for _, name := range names {
					fmt.Fprintf(w, "%g\t", row[name])
				}
				fmt.Fprintln(w)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&logPath, "log", "", "fitter log written by run (required)")
	cmd.Flags().IntVar(&top, "top", 1, "number of rows to print")
	_ = cmd.MarkFlagRequired("log")
	return cmd
}

// bestRows returns up to top row indices of log ordered by fitness, lowest
// first. Rows with NaN fitness come last.
func bestRows(log *collection.Collection, top int) ([]int, error) {
	remaining := log
	index := make([]int, log.Len())
	for i := range index {
		index[i] = i
	}
	var out []int
	for len(out) < top && remaining.Len() > 0 {
		i, err := remaining.SelectBest(collection.FitnessColumn, collection.Minimize)
		if err != nil {
			return nil, err
		}
		out = append(out, index[i])
		index = append(index[:i:i], index[i+1:]...)
		remaining = remaining.Filter(func(row int) bool { return row != i })
	}
	return out, nil
}
