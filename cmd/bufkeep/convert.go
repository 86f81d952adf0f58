package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/bufkeep/internal/app"
	"github.com/dshills/bufkeep/internal/encoding"
)

// NewConvertCmd creates the convert command.
func NewConvertCmd() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "convert <in> <out>",
		Short: "Rewrite a file in another encoding",
		Long: `Load <in>, detecting its encoding from a byte order mark, a coding
cookie or its content, and write the text to <out> in the encoding given
by --encoding.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc, err := encoding.ParseEncoding(target)
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app.Application) error {
				idx, err := a.Open(args[0])
				if err != nil {
					return err
				}
				if err := settle(ctx, a); err != nil {
					return err
				}
				slot := a.Table().Slot(idx)
				from := slot.Encoding
				slot.Encoding = enc
				if err := a.SaveAs(args[1]); err != nil {
					return err
				}
				if err := settle(ctx, a); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) -> %s (%s)\n", args[0], from, args[1], enc)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&target, "encoding", "e", string(encoding.EncodingUTF8), "target encoding")
	return cmd
}
