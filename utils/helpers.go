package utils

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// CheckPassword compares a password with its hash
func CheckPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// GenerateRandomString generates a random hex string of specified length
func GenerateRandomString(length int) (string, error) {
	bytes := make([]byte, (length+1)/2)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes)[:length], nil
}

// NormalizeEmail trims and lower-cases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidEmail checks the basic local@domain.tld shape
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// IsValidPassword requires at least 6 characters with a letter and a digit
func IsValidPassword(password string) bool {
	if utf8.RuneCountInString(password) < 6 {
		return false
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

// ValidateGrade parses a grade and checks it is an integer in [0,100].
// Accepts JSON numbers (float64 after decoding), ints and numeric strings.
func ValidateGrade(raw interface{}) (int, error) {
	var v float64
	switch g := raw.(type) {
	case float64:
		v = g
	case int:
		v = float64(g)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(g), 64)
		if err != nil {
			return 0, NewValidationError("grade must be a number between 0 and 100")
		}
		v = parsed
	default:
		return 0, NewValidationError("grade must be a number between 0 and 100")
	}
	if v != float64(int(v)) || v < 0 || v > 100 {
		return 0, NewValidationError("grade must be an integer between 0 and 100")
	}
	return int(v), nil
}

// Preview shortens text to n runes, appending "..." when cut
func Preview(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n]) + "..."
}

// SanitizeString removes null bytes and surrounding whitespace
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(input)
}

// JoinNonEmpty joins the non-empty parts with sep, or returns fallback when none remain
func JoinNonEmpty(parts []string, sep, fallback string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return fallback
	}
	return strings.Join(kept, sep)
}
