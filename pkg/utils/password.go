package utils

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares a plaintext password with its bcrypt hash.
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// MaskAccount obscures the middle of an account identifier so run
// records and notifications never expose the full login name. Emails
// keep their domain visible.
func MaskAccount(account string) string {
	if account == "" {
		return ""
	}

	local := account
	domain := ""
	if idx := strings.Index(account, "@"); idx >= 0 {
		local = account[:idx]
		domain = account[idx:]
	}

	if len(local) <= 3 {
		return local[:1] + "***" + domain
	}

	visibleStart := 2
	visibleEnd := 2
	maskLength := len(local) - (visibleStart + visibleEnd)
	if maskLength < 1 {
		maskLength = 1
	}

	return local[:visibleStart] + strings.Repeat("*", maskLength) + local[len(local)-visibleEnd:] + domain
}
