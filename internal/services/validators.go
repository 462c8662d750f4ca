package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Slot field names used in validation results and replies
const (
	SlotPhone  = "phone"
	SlotAmount = "amount"
)

const phoneDigits = 10

var (
	phoneSeparators = regexp.MustCompile(`[\s\-().]`)
	decimalComma    = regexp.MustCompile(`,(\d{1,2})$`)
)

// ValidationResult classifies every known slot as valid, invalid (with a
// user-facing reason) or missing. A slot never appears in more than one set.
type ValidationResult struct {
	Valid   []string
	Invalid map[string]string
	Missing []string
}

// OK reports whether all required slots are present and valid
func (r ValidationResult) OK() bool {
	return len(r.Invalid) == 0 && len(r.Missing) == 0
}

// NormalizePhone strips separator characters from a phone number
func NormalizePhone(phone string) string {
	return phoneSeparators.ReplaceAllString(phone, "")
}

// CanonicalPhone reduces a phone number to the 10 digits users register
// with: separators, a leading "+" and any country prefix are dropped.
// WhatsApp hands numbers over as "+573009998877".
func CanonicalPhone(phone string) string {
	cleaned := NormalizePhone(strings.TrimPrefix(strings.TrimSpace(phone), "+"))
	if len(cleaned) > phoneDigits {
		cleaned = cleaned[len(cleaned)-phoneDigits:]
	}
	return cleaned
}

// ValidatePhone checks that a candidate phone normalizes to exactly 10
// digits. Returns a user-facing reason when it does not.
func ValidatePhone(phone string) (string, bool) {
	cleaned := NormalizePhone(phone)

	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "El número de teléfono debe contener solo dígitos.", false
		}
	}
	if len(cleaned) != phoneDigits {
		return fmt.Sprintf(
			"El número de teléfono debe tener exactamente %d dígitos. Se recibieron %d dígitos.",
			phoneDigits, len(cleaned)), false
	}
	return "", true
}

// ValidateAmount checks that an amount is strictly greater than zero
func ValidateAmount(amount float64) (string, bool) {
	if amount <= 0 {
		return "El monto debe ser mayor a 0.", false
	}
	return "", true
}

// ParseAmount parses a monetary value out of a single numeric token.
// Handles currency signs, thousands separators and a decimal comma
// ("$1.000,50" and "1000.50" both parse to 1000.5).
func ParseAmount(token string) (float64, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(token))
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")

	negative := strings.HasPrefix(cleaned, "-")
	cleaned = strings.TrimPrefix(cleaned, "-")

	// a trailing ",dd" is a decimal comma; any other comma separates thousands
	cleaned = decimalComma.ReplaceAllString(cleaned, ".$1")
	cleaned = strings.ReplaceAll(cleaned, ",", "")

	// keep only the last dot as the decimal point
	if strings.Count(cleaned, ".") > 1 {
		parts := strings.Split(cleaned, ".")
		cleaned = strings.Join(parts[:len(parts)-1], "") + "." + parts[len(parts)-1]
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		value = -value
	}
	return value, true
}

// ValidateSlots applies the fixed domain rules to the candidate slots.
// Absent slots are reported as missing, never as invalid.
func ValidateSlots(delta SlotDelta) ValidationResult {
	result := ValidationResult{Invalid: make(map[string]string)}

	if delta.HasPhone {
		if reason, ok := ValidatePhone(delta.Phone); ok {
			result.Valid = append(result.Valid, SlotPhone)
		} else {
			result.Invalid[SlotPhone] = reason
		}
	} else {
		result.Missing = append(result.Missing, SlotPhone)
	}

	if delta.HasAmount {
		if reason, ok := ValidateAmount(delta.Amount); ok {
			result.Valid = append(result.Valid, SlotAmount)
		} else {
			result.Invalid[SlotAmount] = reason
		}
	} else {
		result.Missing = append(result.Missing, SlotAmount)
	}

	return result
}
