package auth

import (
	"fmt"
	"strings"
)

// ShowSessionGuide explains the session modes and how credentials are found
func ShowSessionGuide(cookieFile string) {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("📚 SESSION SETUP GUIDE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	fmt.Println("Searches and activity feeds are only visible to a signed-in account.")
	fmt.Println("Single post URLs can usually be read anonymously.")
	fmt.Println()

	fmt.Println("🔑 SESSION MODES (--session-mode or SESSION_MODE)")
	fmt.Println("   ┌───────────┬──────────────────────────────────────────────────────┐")
	fmt.Println("   │ login     │ Sign in with email and password on every run         │")
	fmt.Println("   │ cookie    │ Reuse the cookies saved by an earlier login          │")
	fmt.Println("   │ anonymous │ No account; only public pages can be scraped        │")
	fmt.Println("   │ auto      │ Saved cookies, then credentials, then anonymous      │")
	fmt.Println("   └───────────┴──────────────────────────────────────────────────────┘")
	fmt.Println()

	fmt.Println("📂 WHERE CREDENTIALS COME FROM, IN ORDER")
	fmt.Println("   1. --email / LINKEDIN_EMAIL and LINKEDIN_PASSWORD")
	fmt.Println("   2. Accounts saved with 'postscraper auth login'")
	fmt.Println("      (system keychain, or an encrypted file when no keychain exists)")
	fmt.Println()

	fmt.Println("🍪 SAVED SESSION")
	fmt.Printf("   Cookies are written to %s after a successful login.\n", cookieFile)
	fmt.Println("   When they expire you are notified and the next run logs in again.")
	fmt.Println()

	fmt.Println("🧩 CHECKPOINTS AND 2FA")
	fmt.Println("   A security checkpoint stops the run. Run once with --headless=false,")
	fmt.Println("   solve it in the browser window, and the saved cookies take over.")
	fmt.Println()

	fmt.Println("⚠️  SECURITY WARNING:")
	fmt.Println("   • Saved cookies give FULL access to the account")
	fmt.Println("   • Use a secondary account for scraping")
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()
}

// ShowQuickGuide shows a condensed version for experienced users
func ShowQuickGuide() {
	fmt.Println("\n🔑 Quick Guide: postscraper auth login → enter email and password → postscraper scrape --session-mode auto")
	fmt.Println("   Type 'postscraper auth guide' for detailed instructions")
}
