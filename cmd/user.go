package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/ridebook/internal/auth"
	"github.com/example/ridebook/internal/backend"
	"github.com/example/ridebook/internal/config"
	"github.com/example/ridebook/internal/forms"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage customer accounts on the booking API",
	}
	cmd.AddCommand(newUserSignupCmd())
	return cmd
}

func newUserSignupCmd() *cobra.Command {
	var f auth.SignupForm

	c := &cobra.Command{
		Use:   "signup",
		Short: "Register a customer account (same rules as the sign up page)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if err := f.Validate(); err != nil {
				fields := forms.Fields(err)
				if fields == nil {
					return err
				}
				keys := make([]string, 0, len(fields))
				for k := range fields {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", k, fields[k])
				}
				return errors.New("invalid account details")
			}

			api := backend.New(cfg.APIBaseURL, cfg.APITimeout)
			svc := auth.NewService(nil, api, zap.NewNop())
			err = svc.Signup(context.Background(), f)
			if errors.Is(err, backend.ErrUserExists) {
				return fmt.Errorf("an account for %q already exists", f.Email)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created account %q\n", f.Email)
			return nil
		},
	}

	c.Flags().StringVar(&f.Email, "email", "", "email address")
	c.Flags().StringVar(&f.FullName, "name", "", "full name")
	c.Flags().StringVar(&f.Phone, "phone", "", "phone number, digits only")
	c.Flags().StringVar(&f.Password, "password", "", "password")
	for _, n := range []string{"email", "name", "phone", "password"} {
		_ = c.MarkFlagRequired(n)
	}
	return c
}
