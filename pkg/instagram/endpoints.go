package instagram

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// BaseURL is the base URL for Instagram
	BaseURL = "https://www.instagram.com"

	// ProfileEndpoint is the endpoint pattern for user profiles
	ProfileEndpoint = "/api/v1/users/web_profile_info/"

	// GraphQLEndpoint serves persisted GraphQL queries
	GraphQLEndpoint = "/graphql/query/"

	// PostDocID identifies the persisted query that resolves a post by shortcode
	PostDocID = "8845758582119845"

	// DefaultAppID is the web client application id sent as X-IG-App-ID
	DefaultAppID = "936619743392459"

	// MaxShortcodeLength bounds shortcodes accepted from callers
	MaxShortcodeLength = 64
)

// GetPostQueryURL constructs the GraphQL URL that fetches a post by shortcode
func GetPostQueryURL(baseURL, shortcode string) string {
	params := url.Values{}
	params.Set("doc_id", PostDocID)
	params.Set("variables", fmt.Sprintf(`{"shortcode":%q}`, shortcode))

	return fmt.Sprintf("%s%s?%s", strings.TrimRight(baseURL, "/"), GraphQLEndpoint, params.Encode())
}

// GetProfileURL constructs the URL for fetching a user's profile
func GetProfileURL(baseURL, username string) string {
	params := url.Values{}
	params.Set("username", username)

	return fmt.Sprintf("%s%s?%s", strings.TrimRight(baseURL, "/"), ProfileEndpoint, params.Encode())
}

// GetPostURL constructs the public URL for a specific post
func GetPostURL(shortcode string) string {
	if shortcode == "" {
		return ""
	}
	return fmt.Sprintf("%s/p/%s/", BaseURL, shortcode)
}

// IsValidShortcode reports whether s looks like a post shortcode.
// Shortcodes use the URL-safe base64 alphabet.
func IsValidShortcode(s string) bool {
	if s == "" || len(s) > MaxShortcodeLength {
		return false
	}

	for _, char := range s {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '-' || char == '_') {
			return false
		}
	}

	return true
}

// IsValidUsername checks if a username is valid according to Instagram rules
func IsValidUsername(username string) bool {
	if username == "" || len(username) > 30 {
		return false
	}

	for _, char := range username {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '.' || char == '_') {
			return false
		}
	}

	return true
}

// SanitizeUsername strips a leading @ and trailing slashes or spaces
func SanitizeUsername(username string) string {
	username = strings.TrimPrefix(username, "@")
	return strings.TrimRight(username, "/ ")
}
