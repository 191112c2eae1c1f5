package user

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/colsign/colsign-go/internal/conf"
	"github.com/colsign/colsign-go/internal/datastore"
	"github.com/colsign/colsign-go/internal/errors"
	"github.com/colsign/colsign-go/internal/security"
)

// Command creates the user management command group.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage Colsign accounts",
	}

	cmd.AddCommand(
		createCommand(settings),
		setRoleCommand(settings),
	)
	return cmd
}

// createCommand bootstraps an account from the command line, typically the
// first reviewer of a fresh deployment.
func createCommand(settings *conf.Settings) *cobra.Command {
	var password string
	var admin bool

	cmd := &cobra.Command{
		Use:   "create [email]",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := strings.TrimSpace(strings.ToLower(args[0]))
			if !strings.Contains(email, "@") {
				return fmt.Errorf("invalid email: %s", args[0])
			}
			if len(password) < 6 {
				return fmt.Errorf("password must be at least 6 characters")
			}

			return withStore(settings, func(store datastore.Interface) error {
				if _, err := store.GetUserByEmail(email); err == nil {
					return fmt.Errorf("an account with email %s already exists", email)
				} else if !errors.Is(err, datastore.ErrNotFound) {
					return err
				}

				hash, err := security.HashPassword(password)
				if err != nil {
					return err
				}

				roleID := settings.Security.Roles.Contributor
				if admin {
					roleID = settings.Security.Roles.Admin
				}

				user := &datastore.User{
					Email:        email,
					PasswordHash: hash,
					RoleID:       roleID,
					LevelID:      conf.MinProficiencyLevel,
				}
				if err := store.CreateUser(user); err != nil {
					return err
				}
				log.Printf("Created account %s (id %d, role %d)", email, user.ID, roleID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Password for the new account")
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant the reviewer role")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func setRoleCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "set-role [email] [role-id]",
		Short: "Change the role of an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := strings.TrimSpace(strings.ToLower(args[0]))
			roleID, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("role id must be numeric: %s", args[1])
			}

			roles := settings.Security.Roles
			if roleID != roles.Admin && roleID != roles.Contributor && roleID != roles.Blocked {
				return fmt.Errorf("unknown role id %d (admin=%d contributor=%d blocked=%d)",
					roleID, roles.Admin, roles.Contributor, roles.Blocked)
			}

			return withStore(settings, func(store datastore.Interface) error {
				user, err := store.GetUserByEmail(email)
				if err != nil {
					if errors.Is(err, datastore.ErrNotFound) {
						return fmt.Errorf("no account with email %s", email)
					}
					return err
				}

				updated, err := store.UpdateUserRole(strconv.FormatUint(uint64(user.ID), 10), roleID)
				if err != nil {
					return err
				}
				log.Printf("Account %s now has role %d", email, updated.RoleID)
				return nil
			})
		},
	}
}

// withStore opens the configured database for the duration of one command.
func withStore(settings *conf.Settings, fn func(datastore.Interface) error) error {
	store := datastore.New(settings)
	if store == nil {
		return fmt.Errorf("no database configured, enable either sqlite or mysql output")
	}
	if err := store.Open(); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Failed to close database: %v", err)
		}
	}()
	return fn(store)
}
