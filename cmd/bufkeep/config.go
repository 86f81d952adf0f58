package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/bufkeep/internal/config"
)

// NewConfigCmd creates the config command.
func NewConfigCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "config [key]",
		Short: "Print the effective configuration or one setting",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				v, ok := cfg.Get(args[0])
				if !ok {
					return fmt.Errorf("%w: %s", config.ErrUnknownKey, args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			}
			return cfg.Encode(cmd.OutOrStdout(), config.FileFormat(format))
		},
	}
	cmd.Flags().StringVar(&format, "format", string(config.FormatTOML), "output format (toml or yaml)")

	cmd.AddCommand(&cobra.Command{
		Use:   "keys",
		Short: "List every setting key",
		Run: func(cmd *cobra.Command, args []string) {
			for _, k := range config.Keys() {
				v, _ := cfg.Get(k)
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", k, v)
			}
		},
	})
	return cmd
}
