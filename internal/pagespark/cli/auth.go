package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"finitefield.org/page-spark/internal/pagespark/forms"
)

func (a *app) loginCommand() *cobra.Command {
	var form forms.Login
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in as an administrator",
		Long:  "Sign in with a username or email. The password is read from stdin when --password is omitted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := a.readSecret("Password", form.Password)
			if err != nil {
				return err
			}
			form.Password = password
			if err := formError(form.Validate()); err != nil {
				return err
			}
			ac, err := a.authContext()
			if err != nil {
				return err
			}
			// The notifier already reported the failure.
			return ac.Login(a.ctx(cmd), form.Credentials())
		},
	}
	cmd.Flags().StringVarP(&form.Username, "username", "u", "", "username or email")
	cmd.Flags().StringVarP(&form.Password, "password", "p", "", "password")
	cmd.Flags().BoolVar(&form.RememberMe, "remember", false, "remember this login")
	return cmd
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ac, err := a.authContext()
			if err != nil {
				return err
			}
			ac.Restore()
			return ac.Logout(a.ctx(cmd))
		},
	}
}

func (a *app) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in administrator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, user, err := a.signedIn(a.ctx(cmd), "")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s <%s>\n", user.DisplayName(), user.Email)
			fmt.Fprintf(out, "role: %s\n", user.Role)
			return nil
		},
	}
}

// formError flattens validation failures into one error, in field order.
func formError(errs forms.Errors) error {
	if len(errs) == 0 {
		return nil
	}
	var joined []error
	for _, field := range sortedKeys(errs) {
		joined = append(joined, fmt.Errorf("%s: %s", field, errs[field]))
	}
	return errors.Join(joined...)
}
