package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bnema/mediafetch/internal/client"
)

func newCookiesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cookies",
		Short: "Manage the server's cookie pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listCookies(cmd, ctx)
		},
	}
	cmd.AddCommand(newCookiesListCommand(ctx))
	cmd.AddCommand(newCookiesAddCommand(ctx))
	cmd.AddCommand(newCookiesRemoveCommand(ctx))
	cmd.AddCommand(newCookiesCheckCommand(ctx))
	return cmd
}

func newCookiesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cookie files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listCookies(cmd, ctx)
		},
	}
}

func listCookies(cmd *cobra.Command, ctx *commandContext) error {
	api, err := ctx.apiClient()
	if err != nil {
		return err
	}
	pool, err := api.Pool(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(pool) == 0 {
		fmt.Fprintln(out, "Cookie pool is empty")
		return nil
	}
	rows := make([][]string, 0, len(pool))
	for _, c := range pool {
		rows = append(rows, []string{
			c.ID,
			humanize.IBytes(uint64(c.SizeKB * 1024)),
			cookieState(c),
			humanize.Comma(int64(c.UseCount)),
			c.LastUsedAgo,
			orDash(c.LastCheckedAgo),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Size", "State", "Uses", "Last used", "Last checked"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignLeft},
	))
	return nil
}

func cookieState(c client.Cookie) string {
	switch {
	case c.Checking:
		return "checking"
	case c.Valid == nil:
		return "unchecked"
	case *c.Valid:
		return "valid"
	default:
		return "invalid"
	}
}

func newCookiesAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <file>...",
		Short: "Upload Netscape cookie files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := ctx.apiClient()
			if err != nil {
				return err
			}
			n, err := api.UploadCookies(cmd.Context(), args...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d cookie file(s)\n", n)
			return nil
		},
	}
}

func newCookiesRemoveCommand(ctx *commandContext) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "rm [id]",
		Short: "Remove a cookie file, or all of them with --all",
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := ctx.apiClient()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if all {
				n, err := api.DeleteAllCookies(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %d cookie file(s)\n", n)
				return nil
			}
			if err := api.DeleteCookie(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(out, "Removed %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Remove every cookie file")
	return cmd
}

func newCookiesCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check [id]",
		Short: "Check one cookie file, or start checking all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := ctx.apiClient()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				n, err := api.CheckAll(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Checking %d cookie file(s) in the background; see mediafetch cookies\n", n)
				return nil
			}
			valid, err := api.Check(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			kind, msg := statusOK, "valid"
			if !valid {
				kind, msg = statusError, "invalid"
			}
			fmt.Fprintln(out, renderStatusLine(args[0], kind, msg, shouldColorize(out)))
			return nil
		},
	}
}
