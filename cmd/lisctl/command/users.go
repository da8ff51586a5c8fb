package command

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pathline/lis/auth"
	"github.com/pathline/lis/users"
)

var usersSeedParams = struct {
	Name     string
	Email    string
	Password string
	Role     string
}{}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage users",
	Long:  "The users command is used to manage staff accounts",
}

var usersSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create a user with any role",
	Long:  "The seed command creates an account directly, including admin accounts which cannot be self registered",
	RunE:  func(cmd *cobra.Command, args []string) error { return Run(seedUser) },
}

func seedUser(service auth.Service) error {
	user, err := service.Seed(context.TODO(), users.Registration{
		Name:     usersSeedParams.Name,
		Email:    usersSeedParams.Email,
		Password: usersSeedParams.Password,
		Role:     users.Role(usersSeedParams.Role),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Created %s %s (%s)\n", user.Role, user.Id.Hex(), user.Email)
	return nil
}

func init() {
	usersSeedCmd.Flags().StringVar(&usersSeedParams.Name, "name", "Administrator", "Display name")
	usersSeedCmd.Flags().StringVar(&usersSeedParams.Email, "email", "", "Login email")
	usersSeedCmd.Flags().StringVar(&usersSeedParams.Password, "password", "", "Initial password")
	usersSeedCmd.Flags().StringVar(&usersSeedParams.Role, "role", string(users.RoleAdmin), "One of admin, lab_manager, technician, pathologist, receptionist")
	_ = usersSeedCmd.MarkFlagRequired("email")
	_ = usersSeedCmd.MarkFlagRequired("password")

	usersCmd.AddCommand(usersSeedCmd)
	rootCmd.AddCommand(usersCmd)
}
