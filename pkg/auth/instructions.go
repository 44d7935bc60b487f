package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteCookieGuide writes instructions for copying the session cookies
// out of a logged-in browser
func WriteCookieGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	lines := []string{
		rule,
		"INSTAGRAM SESSION COOKIES",
		rule,
		"",
		"igloader talks to Instagram's web API with the cookies of a logged-in",
		"browser session. To copy them:",
		"",
		"  1. Log in at https://www.instagram.com",
		"  2. Open the developer tools (F12, or Cmd+Option+I on macOS)",
		"  3. Chrome/Edge: Application > Cookies > https://www.instagram.com",
		"     Firefox:     Storage > Cookies > https://www.instagram.com",
		"  4. Copy the values of:",
		"",
		"       sessionid   long value containing %3A, e.g. 12345678%3Aabcdef...",
		"       csrftoken   32 characters, e.g. YTQHujAgMhyveLvvuwCfw9CPI8ROAHoy",
		"",
		"Copy only the value, without quotes or a trailing semicolon. Cookies",
		"expire; run 'igloader auth login' again when requests start failing",
		"with authentication errors.",
		"",
		"These cookies grant full access to the account. igloader keeps them",
		"in the system keyring or an encrypted file, never in plain text.",
		rule,
		"",
	}
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}

// WriteQuickGuide writes a one-line reminder of WriteCookieGuide
func WriteQuickGuide(w io.Writer) {
	fmt.Fprintln(w, "Cookies: devtools > Application/Storage > Cookies > instagram.com; need sessionid and csrftoken ('help' for details)")
}
