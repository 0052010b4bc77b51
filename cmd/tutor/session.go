package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/tutor-client/internal/identity"
	"github.com/ashureev/tutor-client/internal/store"
)

func (a *app) openStore() (*store.SQLiteStore, error) {
	repo, err := store.NewSQLite(a.cfg.SessionDB)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return repo, nil
}

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login <username>",
		Short: "Sign in and remember the session for later runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := identity.NewSession(args[0], time.Now())
			if err != nil {
				return err
			}

			repo, err := a.openStore()
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.SaveSession(cmd.Context(), session); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", session.Username, session.UserID)
			return nil
		},
	}
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := a.openStore()
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.ClearSession(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := a.openStore()
			if err != nil {
				return err
			}
			defer repo.Close()

			session, err := repo.LoadSession(cmd.Context())
			if err != nil {
				return err
			}
			if session == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s), signed in %s\n",
				session.Username, session.UserID, session.CreatedAt.Format(time.RFC822))
			return nil
		},
	}
}
