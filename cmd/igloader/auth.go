package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"igloader/pkg/auth"
	"igloader/pkg/instagram"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Instagram session cookies",
	Long: `Manage stored Instagram session cookies.

Accounts are kept in the system keychain when available and in an
encrypted file otherwise. IGLOADER_SESSION_ID and IGLOADER_CSRF_TOKEN
are also honored as a read-only account.`,
}

var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store session cookies for an account",
	Example: `  igloader auth login
  igloader auth login myaccount`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout <username>",
	Short: "Remove a stored account",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts with masked cookies",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd, logoutCmd, listCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewDefaultManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	out := printer(os.Stdout)
	reader := bufio.NewReader(os.Stdin)
	auth.WriteCookieGuide(os.Stdout)

	username := ""
	if len(args) > 0 {
		username = args[0]
	}
	if username == "" {
		if username, err = prompt(reader, "Instagram username: "); err != nil {
			return err
		}
	}
	username = instagram.SanitizeUsername(username)
	if username == "" {
		return errors.New("username is required")
	}
	if !instagram.IsValidUsername(username) {
		return fmt.Errorf("invalid Instagram username: %s", username)
	}

	if _, err := manager.Retrieve(username); err == nil {
		answer, _ := prompt(reader, fmt.Sprintf("Account '%s' already exists. Update it? (y/N): ", username))
		if !strings.HasPrefix(strings.ToLower(answer), "y") {
			return nil
		}
	}

	fmt.Print("sessionid cookie value: ")
	sessionID, err := readSecret(reader)
	if err != nil {
		return fmt.Errorf("failed to read session ID: %w", err)
	}
	if len(sessionID) < 20 || !strings.Contains(sessionID, "%") {
		out.Warning("That does not look like a sessionid; it is usually long and contains %3A.")
	}

	fmt.Print("csrftoken cookie value: ")
	csrfToken, err := readSecret(reader)
	if err != nil {
		return fmt.Errorf("failed to read CSRF token: %w", err)
	}
	if len(csrfToken) < 20 || len(csrfToken) > 64 {
		out.Warning("That does not look like a csrftoken; it is usually 32 characters.")
	}

	userAgent, _ := prompt(reader, "User agent (Enter for default): ")

	account := &auth.Account{
		Username:  username,
		SessionID: sessionID,
		CSRFToken: csrfToken,
		UserAgent: userAgent,
	}
	if err := manager.Store(account); err != nil {
		return err
	}

	masked := auth.SanitizeAccount(account)
	out.Success("Account saved: " + username)
	out.Info("Session ID", masked.SessionID)
	out.Info("CSRF Token", masked.CSRFToken)
	out.Info("Stores", strings.Join(manager.Stores(), ", "))
	out.Dim(fmt.Sprintf("Use it with: igloader serve --account %s", username))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewDefaultManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if err := manager.Delete(args[0]); err != nil {
		return err
	}
	printer(os.Stdout).Success("Account removed: " + args[0])
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewDefaultManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	out := printer(os.Stdout)
	if len(accounts) == 0 {
		out.Info("No stored accounts", "use 'igloader auth login' to add one")
		return nil
	}

	out.Highlight("Stored accounts")
	for i, account := range accounts {
		masked := auth.SanitizeAccount(account)
		fmt.Printf("%d. %s\n", i+1, masked.Username)
		fmt.Printf("   Session ID:    %s\n", masked.SessionID)
		fmt.Printf("   CSRF Token:    %s\n", masked.CSRFToken)
		if masked.UserAgent != "" {
			fmt.Printf("   User Agent:    %s\n", masked.UserAgent)
		}
		if !masked.LastModified.IsZero() {
			fmt.Printf("   Last Modified: %s\n", masked.LastModified.Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}

func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	input, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && input != "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// readSecret reads a line without echo when stdin is a terminal
func readSecret(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}
	return prompt(reader, "")
}
