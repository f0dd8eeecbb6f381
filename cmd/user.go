package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"field-ticket-service/internal/db"
	"field-ticket-service/internal/repository"
	"field-ticket-service/internal/service"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userCreateInput service.CreateUserInput

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user that can log in",
	Args:  cobra.NoArgs,
	RunE:  runUserCreate,
}

func init() {
	flags := userCreateCmd.Flags()
	flags.StringVar(&userCreateInput.Name, "name", "", "display name")
	flags.StringVar(&userCreateInput.Email, "email", "", "login email")
	flags.StringVar(&userCreateInput.Role, "role", "requester", "admin, engineer or requester")
	flags.StringVar(&userCreateInput.Password, "password", "", "initial password")
	_ = userCreateCmd.MarkFlagRequired("name")
	_ = userCreateCmd.MarkFlagRequired("email")
	_ = userCreateCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userCreateCmd)
	rootCmd.AddCommand(userCmd)
}

func runUserCreate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	database, err := db.Open(cfg, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if sqlDB, err := database.DB(); err == nil {
		defer sqlDB.Close()
	}

	users := service.NewUserService(repository.NewUserRepository(database), nil)
	user, err := users.Create(cmd.Context(), userCreateInput)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			for field, msg := range verr.Fields {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", field, msg)
			}
		}
		return fmt.Errorf("create user: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n", user.Role, user.Email, user.ID)
	return nil
}
