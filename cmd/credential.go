package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"workflow-builder/api/pkg/db"
	"workflow-builder/api/services/credential"
	"workflow-builder/api/services/identity"
)

func newCredentialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage credentials stored in the database",
	}

	var (
		user, name, provider string
		fields               []string
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Store a credential for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is not set")
			}
			if len(credential.KindsOf(provider)) == 0 {
				return fmt.Errorf("unknown provider %q", provider)
			}
			data := make(map[string]any, len(fields))
			for _, f := range fields {
				k, v, ok := strings.Cut(f, "=")
				if !ok || k == "" {
					return fmt.Errorf("invalid field %q, want key=value", f)
				}
				data[k] = v
			}

			ctx := identity.WithPrincipal(cmd.Context(), identity.Principal{UserID: user})
			pool, err := db.Connect(ctx, db.Config{URL: cfg.DatabaseURL, ConnectTimeout: 10 * time.Second})
			if err != nil {
				return err
			}
			defer pool.Close()

			repo := credential.NewRepository(pool)
			if err := repo.InitSchema(ctx); err != nil {
				return err
			}
			ref, err := repo.Create(ctx, name, provider, data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s credential %q with ID %s\n", ref.Provider, ref.Name, ref.ID)
			return nil
		},
	}
	add.Flags().StringVar(&user, "user", "", "owning user id")
	add.Flags().StringVar(&name, "name", "", "display name")
	add.Flags().StringVar(&provider, "provider", "", "provider, e.g. Telegram or Gmail")
	add.Flags().StringArrayVar(&fields, "field", nil, "secret field as key=value (repeatable)")
	for _, f := range []string{"user", "name", "provider"} {
		add.MarkFlagRequired(f)
	}

	cmd.AddCommand(add)
	return cmd
}
