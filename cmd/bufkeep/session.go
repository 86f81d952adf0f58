package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/spf13/cobra"

	"github.com/dshills/bufkeep/internal/app"
	"github.com/dshills/bufkeep/internal/session"
)

// NewSessionCmd creates the session command and its subcommands.
func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Save, restore and inspect session files",
	}
	cmd.AddCommand(newSessionSaveCmd(), newSessionRestoreCmd(), newSessionShowCmd())
	return cmd
}

func newSessionSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save <session> <files...>",
		Short: "Open files and record them in a session file",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.Application) error {
				for _, path := range args[1:] {
					if _, err := a.Open(path); err != nil {
						return err
					}
				}
				if err := settle(ctx, a); err != nil {
					return err
				}
				if err := a.SaveSession(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved %d buffers to %s\n", len(a.Table().Paths()), args[0])
				return nil
			})
		},
	}
}

func newSessionRestoreCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "restore [session]",
		Short: "Reopen the buffers recorded in a session file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return withApp(func(ctx context.Context, a *app.Application) error {
				result, err := a.RestoreSession(path, force)
				if err != nil {
					return err
				}
				for _, s := range result.Skipped {
					fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", s.Path, s.Err)
				}
				if err := settle(ctx, a); err != nil {
					return err
				}
				printTable(cmd.OutOrStdout(), a)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "discard unsaved changes")
	return cmd
}

func newSessionShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show [session]",
		Short: "Print the content of a session file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfg.SessionPath()
			if len(args) == 1 {
				path = args[0]
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			sess, err := session.Read(f)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if asJSON {
				return json.MarshalWrite(cmd.OutOrStdout(), sess, jsontext.WithIndent("  "))
			}
			printSession(cmd.OutOrStdout(), sess)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the session as JSON")
	return cmd
}

func printSession(w io.Writer, sess session.Session) {
	if g := sess.Geometry; g != nil {
		fmt.Fprintf(w, "geometry: %dx%d at %d,%d", g.Width, g.Height, g.Left, g.Top)
		if g.Maximize {
			fmt.Fprint(w, " maximized")
		}
		fmt.Fprintln(w)
	}
	for _, b := range sess.Buffers {
		mark := " "
		if b.Current {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %d %s @%d", mark, b.Index, b.Path, b.Position)
		if len(b.Bookmarks) > 0 {
			fmt.Fprintf(w, " bookmarks=%s", joinInts(b.Bookmarks))
		}
		if len(b.Folds) > 0 {
			fmt.Fprintf(w, " folds=%s", joinInts(b.Folds))
		}
		fmt.Fprintln(w)
	}
	if len(sess.Recent) > 0 {
		fmt.Fprintln(w, "recent:")
		for _, p := range sess.Recent {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ",")
}
