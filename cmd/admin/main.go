package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/janmitra/backend/internal/auth"
	"github.com/janmitra/backend/internal/config"
	"github.com/janmitra/backend/internal/db"
	"github.com/janmitra/backend/internal/models"
	"github.com/janmitra/backend/internal/seed"
)

var tokenTTL time.Duration

var rootCmd = &cobra.Command{
	Use:           "admin",
	Short:         "Jan-Mitra operator tooling",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, store *db.Store) error {
			if err := store.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed-departments <file.yaml>",
	Short: "Create or update departments from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		departments, err := seed.LoadDepartments(args[0])
		if err != nil {
			return err
		}
		return withStore(cmd.Context(), func(ctx context.Context, store *db.Store) error {
			n, err := store.UpsertDepartments(ctx, departments)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d departments written\n", n)
			return nil
		})
	},
}

var setRoleCmd = &cobra.Command{
	Use:   "set-role <user_id> <citizen|officer|admin> [department_id]",
	Short: "Change a user's role; officers need a department",
	Long: `Change the role of an existing profile. Profiles are created on first
sign-in, so the user must have logged in at least once.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, ok := models.ParseRole(args[1])
		if !ok {
			return fmt.Errorf("unknown role %q", args[1])
		}
		u := db.ProfileUpdate{Role: &role}
		if len(args) == 3 {
			u.DepartmentID = &args[2]
		} else if role == models.RoleOfficer {
			return fmt.Errorf("officers need a department_id")
		}
		return withStore(cmd.Context(), func(ctx context.Context, store *db.Store) error {
			if u.DepartmentID != nil {
				if _, err := store.GetDepartment(ctx, *u.DepartmentID); err != nil {
					return fmt.Errorf("department %s: %w", *u.DepartmentID, err)
				}
			}
			p, err := store.UpdateProfile(ctx, args[0], u)
			if err != nil {
				return fmt.Errorf("profile %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) is now %s\n", p.ID, p.Email, p.Role)
			return nil
		})
	},
}

var issueTokenCmd = &cobra.Command{
	Use:   "issue-token <user_id> <email>",
	Short: "Print a signed access token for local testing",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is not set")
		}
		tok, err := auth.Issue([]byte(cfg.JWTSecret), cfg.JWTIssuer, args[0], args[1], tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func withStore(ctx context.Context, fn func(context.Context, *db.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, store)
}

func init() {
	issueTokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(migrateCmd, seedCmd, setRoleCmd, issueTokenCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
