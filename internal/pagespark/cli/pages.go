package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"finitefield.org/page-spark/internal/pagespark/forms"
)

func (a *app) historyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history <email>",
		Short: "List the pages generated for an email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := forms.NormalizeEmail(args[0])
			if !forms.ValidEmail(email) {
				return fmt.Errorf("please enter a valid email address: %q", args[0])
			}
			items, err := a.client.Pages().History(a.ctx(cmd), email)
			if err != nil {
				return describeFailure("Failed to load history", err)
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintf(out, "No pages found for %s.\n", email)
				return nil
			}
			tw := newTable(out)
			fmt.Fprintln(tw, "ID\tTYPE\tCREATED\tVIEWS\tURL\tPROMPT")
			for _, item := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					item.ID, orDash(item.PageType), when(item.CreatedAt),
					humanize.Comma(int64(item.Views)), orDash(item.Link()), truncate(item.Prompt, 48))
			}
			return tw.Flush()
		},
	}
}

func (a *app) pageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "page <id>",
		Short: "Show a generated page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := a.client.Pages().ByID(a.ctx(cmd), strings.TrimSpace(args[0]))
			if err != nil {
				return describeFailure("Failed to load page", err)
			}
			out := cmd.OutOrStdout()
			tw := newTable(out)
			fmt.Fprintf(tw, "ID:\t%s\n", item.ID)
			fmt.Fprintf(tw, "Email:\t%s\n", item.Email)
			fmt.Fprintf(tw, "Type:\t%s\n", orDash(item.PageType))
			fmt.Fprintf(tw, "Theme:\t%s\n", orDash(item.Theme))
			fmt.Fprintf(tw, "URL:\t%s\n", orDash(item.Link()))
			fmt.Fprintf(tw, "Created:\t%s\n", when(item.CreatedAt))
			fmt.Fprintf(tw, "Views:\t%s\n", humanize.Comma(int64(item.Views)))
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Prompt:")
			fmt.Fprintln(out, indent(item.Prompt))
			return nil
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
