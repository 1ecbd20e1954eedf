package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"postscraper/pkg/auth"
	"postscraper/pkg/config"
	"postscraper/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage account credentials",
	Long: `Manage stored account credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables LINKEDIN_EMAIL and LINKEDIN_PASSWORD (read only)

Use a secondary account for scraping and never share your cookie file!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [email]",
	Short: "Store account credentials securely",
	Long: `Store an account's email and password in the system keychain or an encrypted file.

Scrape runs in login or auto session mode use the stored account when no
email and password are given by flag or environment.`,
	Example: `  # Interactive login
  postscraper auth login

  # Login with email
  postscraper auth login scraper@example.com`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:     "logout [email]",
	Aliases: []string{"delete"},
	Short:   "Remove stored credentials",
	Long: `Remove stored account credentials.

If no email is provided, you will be shown a list of stored accounts
to choose from.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored accounts with masked passwords.`,
	RunE:  runList,
}

// guideCmd represents the auth guide command
var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Explain session modes and saved sessions",
	Run: func(cmd *cobra.Command, args []string) {
		cookies := config.DefaultConfig().Credentials.CookieFile
		if cfg, err := config.LoadUnvalidated(configFile, nil); err == nil {
			cookies = cfg.Credentials.CookieFile
		}
		auth.ShowSessionGuide(cookies)
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
	authCmd.AddCommand(guideCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)

	var email string
	if len(args) > 0 {
		email = strings.TrimSpace(args[0])
	} else {
		fmt.Print("📧 Account email: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read email: %w", err)
		}
		email = strings.TrimSpace(input)
	}
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("a valid email is required")
	}

	// Check if account already exists
	if existing, _ := manager.Retrieve(email); existing != nil {
		fmt.Printf("\n⚠️  Account '%s' already exists. Update credentials? (y/N): ", email)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Print("🔐 Password (hidden): ")
	password, err := readPassword(reader)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	fmt.Println("\n💾 Storing credentials securely...")
	if err := manager.Store(&auth.Account{
		Email:        email,
		Password:     password,
		LastModified: time.Now(),
	}); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	ui.PrintSuccess(fmt.Sprintf("Account saved: %s", email))
	fmt.Println("\n🔒 Your credentials are stored in:")
	if auth.IsKeyringAvailable() {
		fmt.Println("   • System keychain")
	} else {
		fmt.Println("   • Encrypted file (set POSTSCRAPER_PASSPHRASE to choose the passphrase)")
	}
	auth.ShowQuickGuide()
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if len(args) == 1 {
		if err := manager.Delete(args[0]); err != nil {
			return fmt.Errorf("failed to remove account: %w", err)
		}
		ui.PrintSuccess("Account removed: " + args[0])
		return nil
	}

	accounts, err := manager.List()
	if err != nil || len(accounts) == 0 {
		ui.PrintWarning("No stored accounts found")
		return nil
	}

	fmt.Println("Select account to remove:")
	for i, account := range accounts {
		fmt.Printf("  %d. %s\n", i+1, account.Email)
	}
	fmt.Printf("  0. Cancel\n\n")

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Choice: ")
	input, _ := reader.ReadString('\n')

	var choice int
	fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)
	if choice == 0 {
		return nil
	}
	if choice < 0 || choice > len(accounts) {
		return fmt.Errorf("invalid choice %q", strings.TrimSpace(input))
	}

	account := accounts[choice-1]
	if err := manager.Delete(account.Email); err != nil {
		return fmt.Errorf("failed to remove account: %w", err)
	}
	ui.PrintSuccess("Account removed: " + account.Email)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "Use 'postscraper auth login' to add an account")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(ui.Output)
	t.AppendHeader(table.Row{"#", "Email", "Password", "Last Modified"})
	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		t.AppendRow(table.Row{i + 1, sanitized.Email, sanitized.Password, sanitized.LastModified.Format("2006-01-02 15:04:05")})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}

// readPassword reads a password from stdin without echoing
func readPassword(reader *bufio.Reader) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return string(password), nil
		}
	}

	// Fallback to regular input
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
