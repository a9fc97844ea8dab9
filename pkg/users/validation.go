// Package users is C2: identity registration, PIN auth, and KYC status
// management on top of pkg/ledger. Ported from
// original_source/canisters/user_canister/src/logic/user_logic.rs.
package users

import (
	"strings"

	"github.com/afritokeni/platform/pkg/errs"
)

// ValidateIdentifierRequired requires at least one of phone/principal.
func ValidateIdentifierRequired(phone, principal string) error {
	if phone == "" && principal == "" {
		return errs.Invalid("either phone number or principal ID is required")
	}
	return nil
}

// ValidatePINFormat requires exactly 4 ASCII digits.
func ValidatePINFormat(pin string) error {
	if len(pin) != 4 {
		return errs.Invalid("pin must be exactly 4 digits")
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return errs.Invalid("pin must contain only digits")
		}
	}
	return nil
}

// ValidatePhoneFormat requires E.164 shape: "+" followed by 10-15 digits.
// A run of 8-9 digits passes the per-character check but is rejected by
// the final length gate, mirroring the source's own phone validator.
func ValidatePhoneFormat(phone string) error {
	if phone == "" {
		return errs.Invalid("phone number cannot be empty")
	}
	if !strings.HasPrefix(phone, "+") {
		return errs.Invalid("phone number must be in E.164 format (start with +)")
	}
	digits := phone[1:]
	for _, c := range digits {
		if c < '0' || c > '9' {
			return errs.Invalid("phone number must contain only digits after +")
		}
	}
	if len(digits) < 8 {
		return errs.Invalid("phone number too short (minimum 8 digits)")
	}
	if len(digits) > 15 {
		return errs.Invalid("phone number too long (maximum 15 digits)")
	}
	if len(digits) < 10 {
		return errs.Invalid("phone number format invalid")
	}
	return nil
}

// ValidateEmailFormat is a basic RFC 5322-shaped check: exactly one '@',
// non-empty local/domain parts, domain has a dotted TLD of >=2 letters.
func ValidateEmailFormat(email string) error {
	if email == "" {
		return errs.Invalid("email cannot be empty")
	}
	email = strings.TrimSpace(email)
	if strings.Contains(email, " ") {
		return errs.Invalid("email cannot contain spaces")
	}

	atCount := strings.Count(email, "@")
	if atCount == 0 {
		return errs.Invalid("email must contain @")
	}
	if atCount > 1 {
		return errs.Invalid("email must contain only one @")
	}

	parts := strings.SplitN(email, "@", 2)
	local, domain := parts[0], parts[1]

	if local == "" {
		return errs.Invalid("email local part cannot be empty")
	}
	if len(local) > 64 {
		return errs.Invalid("email local part too long (max 64 characters)")
	}
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") {
		return errs.Invalid("email local part cannot start or end with dot")
	}

	if domain == "" {
		return errs.Invalid("email domain cannot be empty")
	}
	if len(domain) > 255 {
		return errs.Invalid("email domain too long (max 255 characters)")
	}
	if !strings.Contains(domain, ".") {
		return errs.Invalid("email domain must contain at least one dot")
	}
	if strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return errs.Invalid("email domain cannot start or end with dot")
	}
	if strings.HasPrefix(domain, "-") || strings.HasSuffix(domain, "-") {
		return errs.Invalid("email domain cannot start or end with hyphen")
	}

	lastDot := strings.LastIndex(domain, ".")
	tld := domain[lastDot+1:]
	if len(tld) < 2 {
		return errs.Invalid("email domain TLD must be at least 2 characters")
	}
	for _, c := range tld {
		if !(c >= 'a' && c <= 'z') && !(c >= 'A' && c <= 'Z') {
			return errs.Invalid("email domain TLD must contain only letters")
		}
	}

	return nil
}

// ValidateName requires a first/last name field of 2-50 characters.
func ValidateName(name, field string) error {
	if name == "" {
		return errs.Invalid(field + " cannot be empty")
	}
	if len(name) < 2 {
		return errs.Invalid(field + " must be at least 2 characters")
	}
	if len(name) > 50 {
		return errs.Invalid(field + " must be at most 50 characters")
	}
	return nil
}
