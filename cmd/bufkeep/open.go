package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rivo/uniseg"
	"github.com/spf13/cobra"

	"github.com/dshills/bufkeep/internal/app"
)

// NewOpenCmd creates the open command.
func NewOpenCmd() *cobra.Command {
	var showMetrics bool

	cmd := &cobra.Command{
		Use:   "open <files...>",
		Short: "Load files into buffers and list the buffer table",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.Application) error {
				for _, path := range args {
					if _, err := a.Open(path); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "skipping %s: %v\n", path, err)
					}
				}
				results, err := waitWithProgress(ctx, a, cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				for _, r := range results {
					if r.Err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", r.Err)
					}
				}
				printTable(cmd.OutOrStdout(), a)
				if showMetrics {
					printMetrics(cmd.OutOrStdout(), a)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "print file job statistics")
	return cmd
}

func printTable(w io.Writer, a *app.Application) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tNAME\tBYTES\tCHARS\tENCODING\tEOL\tFLAGS")
	t := a.Table()
	for i := 0; i < t.Len(); i++ {
		s := t.Slot(i)
		size, chars := 0, 0
		if doc, ok := a.Document(i); ok {
			size = doc.Len()
			chars = uniseg.GraphemeClusterCount(doc.String())
		}
		flags := ""
		if i == t.Current() {
			flags += "*"
		}
		if s.Dirty {
			flags += "+"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%s\t%s\n", i+1, s.Name(), size, chars, s.Encoding, s.LineEnding, flags)
	}
	tw.Flush()
}

func printMetrics(w io.Writer, a *app.Application) {
	m := a.Metrics()
	fmt.Fprintf(w, "jobs: %d completed, %d cancelled, %d failed\n", m.Completed, m.Cancelled, m.Failed)
	fmt.Fprintf(w, "bytes: %d loaded, %d stored; avg %s, max %s\n", m.BytesLoaded, m.BytesStored, m.AvgJob, m.MaxJob)
}
