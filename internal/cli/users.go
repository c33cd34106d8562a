package cli

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/saiakki/jiradash/internal/auth"
	"github.com/saiakki/jiradash/internal/model"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage dashboard accounts",
}

var usersListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List accounts",
	RunE:    runUsersList,
}

var usersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an account",
	RunE:  runUsersAdd,
}

var usersRemoveCmd = &cobra.Command{
	Use:     "remove <username>",
	Aliases: []string{"rm", "delete"},
	Short:   "Remove an account",
	Args:    cobra.ExactArgs(1),
	RunE:    runUsersRemove,
}

var usersPasswdCmd = &cobra.Command{
	Use:   "passwd <username>",
	Short: "Change an account password",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersPasswd,
}

func init() {
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersAddCmd)
	usersCmd.AddCommand(usersRemoveCmd)
	usersCmd.AddCommand(usersPasswdCmd)
}

func openManager() (*auth.Manager, error) {
	users, err := auth.OpenUserStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open user store: %w", err)
	}
	return auth.NewManager(users), nil
}

func runUsersList(cmd *cobra.Command, args []string) error {
	mgr, err := openManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	users, err := mgr.List()
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Println("No accounts found. Add one with: jiradash users add")
		return nil
	}

	fmt.Printf("%-20s %-8s %s\n", "USERNAME", "ROLE", "CREATED")
	for _, u := range users {
		fmt.Printf("%-20s %-8s %s\n", u.Username, u.Role, u.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runUsersAdd(cmd *cobra.Command, args []string) error {
	mgr, err := openManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	answers := struct {
		Username string
		Password string
		Role     string
	}{}

	qs := []*survey.Question{
		{
			Name:     "username",
			Prompt:   &survey.Input{Message: "Username:"},
			Validate: survey.Required,
		},
		{
			Name:     "password",
			Prompt:   &survey.Password{Message: "Password:"},
			Validate: survey.MinLength(4),
		},
		{
			Name: "role",
			Prompt: &survey.Select{
				Message: "Role:",
				Options: []string{model.RoleViewer, model.RoleAdmin},
				Default: model.RoleViewer,
			},
		},
	}
	if err := survey.Ask(qs, &answers); err != nil {
		return err
	}

	if _, err := mgr.Register(answers.Username, answers.Password, answers.Role); err != nil {
		return err
	}
	fmt.Printf("Account %q added with role %q\n", answers.Username, answers.Role)
	return nil
}

func runUsersRemove(cmd *cobra.Command, args []string) error {
	mgr, err := openManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	username := args[0]
	confirmed := false
	prompt := &survey.Confirm{Message: fmt.Sprintf("Remove account %q?", username)}
	if err := survey.AskOne(prompt, &confirmed); err != nil {
		return err
	}
	if !confirmed {
		fmt.Println("Cancelled.")
		return nil
	}

	if err := mgr.Remove(username); err != nil {
		return err
	}
	fmt.Printf("Account %q removed\n", username)
	return nil
}

func runUsersPasswd(cmd *cobra.Command, args []string) error {
	mgr, err := openManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	username := args[0]
	var password string
	prompt := &survey.Password{Message: fmt.Sprintf("New password for %s:", username)}
	if err := survey.AskOne(prompt, &password, survey.WithValidator(survey.MinLength(4))); err != nil {
		return err
	}

	if err := mgr.ChangePassword(username, password); err != nil {
		return err
	}
	fmt.Printf("Password changed for %q\n", username)
	return nil
}
