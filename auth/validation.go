package auth

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
)

const minPasswordLength = 8

// ValidateEmail checks that email is a single bare address.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("email address is not valid")
	}
	return nil
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", minPasswordLength)
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

// ValidatePasswordConfirmation checks a new password and its confirmation.
func ValidatePasswordConfirmation(password, confirmation string) error {
	if password == "" || confirmation == "" {
		return fmt.Errorf("all fields are required")
	}
	if password != confirmation {
		return fmt.Errorf("passwords do not match")
	}
	return ValidatePasswordStrength(password)
}

// ValidateCredentials validates a sign in form. Strength rules are not applied
// so accounts created under older rules can still sign in.
func ValidateCredentials(email, password string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}
