package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"finitefield.org/page-spark/internal/pagespark/admin"
	"finitefield.org/page-spark/internal/pagespark/apiclient"
	"finitefield.org/page-spark/internal/pagespark/forms"
)

func (a *app) adminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administration: dashboard and administrator accounts",
	}
	cmd.AddCommand(
		a.adminDashboardCommand(),
		a.adminListCommand(),
		a.adminCreateCommand(),
		a.adminUpdateCommand(),
		a.adminDeleteCommand(),
	)
	return cmd
}

func (a *app) adminDashboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show usage statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := a.ctx(cmd)
			ac, _, err := a.signedIn(ctx, apiclient.RoleAdmin)
			if err != nil {
				return err
			}
			ov, err := admin.NewService(ac.API().Admin()).Overview(ctx)
			if err != nil {
				return describeFailure("Failed to load dashboard", err)
			}

			out := cmd.OutOrStdout()
			tw := newTable(out)
			fmt.Fprintf(tw, "Total pages:\t%s\n", humanize.Comma(int64(ov.Stats.TotalPages)))
			fmt.Fprintf(tw, "Pages today:\t%s\n", humanize.Comma(int64(ov.Stats.PagesToday)))
			fmt.Fprintf(tw, "Total views:\t%s\n", humanize.Comma(int64(ov.Stats.TotalViews)))
			fmt.Fprintf(tw, "Unique users:\t%s\n", humanize.Comma(int64(ov.Stats.UniqueUsers)))
			fmt.Fprintf(tw, "Conversion rate:\t%.1f%%\n", ov.Stats.ConversionRate)
			if ov.AdminsErr == nil {
				fmt.Fprintf(tw, "Administrators:\t%d\n", len(ov.Admins))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if len(ov.Popular) > 0 {
				fmt.Fprintln(out, "\nPopular page types:")
				tw = newTable(out)
				for _, p := range ov.Popular {
					fmt.Fprintf(tw, "  %s\t%s\t%.1f%%\n", p.Type, humanize.Comma(int64(p.Count)), p.Percentage)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}
			if len(ov.Recent) > 0 {
				fmt.Fprintln(out, "\nRecent pages:")
				tw = newTable(out)
				for _, p := range ov.Recent {
					fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", p.ID, p.Email, orDash(p.PageType), when(p.CreatedAt))
				}
				return tw.Flush()
			}
			return nil
		},
	}
}

func (a *app) adminListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List administrator accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := a.ctx(cmd)
			ac, user, err := a.signedIn(ctx, apiclient.RoleSuperAdmin)
			if err != nil {
				return err
			}
			admins, err := admin.NewService(ac.API().Admin()).Admins(ctx)
			if err != nil {
				return describeFailure("Failed to load administrators", err)
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tROLE\tSTATUS\tLAST LOGIN")
			for _, adm := range admins {
				status := "active"
				if !adm.IsActive {
					status = "inactive"
				}
				id := adm.ID
				if adm.ID == user.ID {
					id += " (you)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", id, adm.Email, orDash(adm.Name), adm.Role, status, when(adm.LastLogin))
			}
			return tw.Flush()
		},
	}
}

func (a *app) adminCreateCommand() *cobra.Command {
	var form forms.CreateAdmin
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an administrator account",
		Long:  "Create an administrator. The password is read from stdin when --password is omitted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := a.ctx(cmd)
			ac, _, err := a.signedIn(ctx, apiclient.RoleSuperAdmin)
			if err != nil {
				return err
			}
			password, err := a.readSecret("Password", form.Password)
			if err != nil {
				return err
			}
			form.Email = forms.NormalizeEmail(form.Email)
			form.Password, form.ConfirmPassword = password, password
			if err := formError(form.Validate()); err != nil {
				return err
			}
			created, err := admin.NewService(ac.API().Admin()).Create(ctx, form.Request())
			if err != nil {
				return describeFailure("Could not create administrator", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Administrator created: %s (%s, id %s)\n", created.Email, created.Role, created.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&form.Email, "email", "", "login email")
	cmd.Flags().StringVar(&form.Password, "password", "", "initial password")
	cmd.Flags().StringVar(&form.Role, "role", string(apiclient.RoleAdmin), "admin or super_admin")
	return cmd
}

func (a *app) adminUpdateCommand() *cobra.Command {
	var (
		form   forms.UpdateAdmin
		active string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change an administrator's name, role or status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if active != "" {
				v, err := strconv.ParseBool(active)
				if err != nil {
					return fmt.Errorf("--active must be true or false: %w", err)
				}
				form.IsActive = strconv.FormatBool(v)
			}
			if err := formError(form.Validate()); err != nil {
				return err
			}
			ctx := a.ctx(cmd)
			ac, user, err := a.signedIn(ctx, apiclient.RoleSuperAdmin)
			if err != nil {
				return err
			}
			updated, err := admin.NewService(ac.API().Admin()).Update(ctx, args[0], form.Patch())
			if err != nil {
				return describeFailure("Could not update administrator", err)
			}
			if updated.ID == user.ID {
				name, role := updated.Name, updated.Role
				if err := ac.UpdateUser(apiclient.UserPatch{Name: &name, Role: &role}); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Administrator updated: %s (%s)\n", updated.Email, updated.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&form.Name, "name", "", "display name")
	cmd.Flags().StringVar(&form.Role, "role", "", "admin or super_admin")
	cmd.Flags().StringVar(&active, "active", "", "true or false")
	return cmd
}

func (a *app) adminDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an administrator account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.ctx(cmd)
			ac, user, err := a.signedIn(ctx, apiclient.RoleSuperAdmin)
			if err != nil {
				return err
			}
			err = admin.NewService(ac.API().Admin()).Delete(ctx, args[0], user.ID)
			switch {
			case errors.Is(err, admin.ErrSelfDelete):
				return errors.New("you cannot delete your own account")
			case err != nil:
				return describeFailure("Could not delete administrator", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Administrator %s deleted\n", args[0])
			return nil
		},
	}
}
