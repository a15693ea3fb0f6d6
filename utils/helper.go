package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/ttacon/libphonenumber"
)

// CountryCode is the default region used when parsing phone numbers that
// carry no international prefix.
var CountryCode = regionFromEnv()

func regionFromEnv() string {
	region := strings.ToUpper(strings.TrimSpace(os.Getenv("PHONE_REGION")))
	if region == "" {
		return "ZA"
	}
	return region
}

func ValidatePhoneNumber(phoneNumber, countryCode string) error {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return err // Phone number is invalid
	}

	if !libphonenumber.IsValidNumber(p) {
		return fmt.Errorf("phone number is not valid")
	}
	return nil
}

// NormalizePhoneNumber returns the E.164 form of a phone number so that
// numbers written with different spacing or prefixes compare equal. When the
// number cannot be parsed the digits are returned as-is.
func NormalizePhoneNumber(phoneNumber string) string {
	phoneNumber = strings.TrimSpace(phoneNumber)
	if phoneNumber == "" {
		return ""
	}
	p, err := libphonenumber.Parse(phoneNumber, CountryCode)
	if err != nil {
		return digitsOnly(phoneNumber)
	}
	return libphonenumber.Format(p, libphonenumber.E164)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func IntFromEnv(key string, def int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}

func BoolFromEnv(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
