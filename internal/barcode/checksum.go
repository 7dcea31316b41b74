package barcode

import (
	"fmt"
	"strings"
)

// EAN13CheckDigit computes the mod-10 check digit for a 12 digit payload.
// Positions are weighted 1,3,1,3,... from the leftmost digit.
func EAN13CheckDigit(payload string) (int, error) {
	digits, err := digitsOf(FormatEAN13, payload, 12)
	if err != nil {
		return 0, err
	}
	sum := 0
	for i, d := range digits {
		if i%2 == 0 {
			sum += d
		} else {
			sum += d * 3
		}
	}
	return (10 - sum%10) % 10, nil
}

// EAN8CheckDigit computes the mod-10 check digit for a 7 digit payload.
// Positions are weighted 3,1,3,1,... from the leftmost digit.
func EAN8CheckDigit(payload string) (int, error) {
	digits, err := digitsOf(FormatEAN8, payload, 7)
	if err != nil {
		return 0, err
	}
	sum := 0
	for i, d := range digits {
		if i%2 == 0 {
			sum += d * 3
		} else {
			sum += d
		}
	}
	return (10 - sum%10) % 10, nil
}

// UPCACheckDigit computes the mod-10 check digit for an 11 digit payload.
// Positions are weighted 3,1,3,1,... from the leftmost digit.
func UPCACheckDigit(payload string) (int, error) {
	digits, err := digitsOf(FormatUPCA, payload, 11)
	if err != nil {
		return 0, err
	}
	sum := 0
	for i, d := range digits {
		if i%2 == 0 {
			sum += d * 3
		} else {
			sum += d
		}
	}
	return (10 - sum%10) % 10, nil
}

// Mod97Checksum computes value mod 97 over the digits of the input,
// processing incrementally so arbitrarily long payloads do not overflow.
func Mod97Checksum(payload string) (int, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return 0, fmt.Errorf("payload is required")
	}
	rem := 0
	seen := false
	for _, r := range payload {
		if r < '0' || r > '9' {
			continue
		}
		seen = true
		rem = (rem*10 + int(r-'0')) % 97
	}
	if !seen {
		return 0, fmt.Errorf("payload %q has no digits", payload)
	}
	return rem, nil
}

// GenerateEAN13 appends the check digit to a 12 digit payload. Shorter
// all-digit payloads are left padded with zeros, longer ones are rejected.
func GenerateEAN13(payload string) (string, error) {
	normalized, err := normalizeDigits(FormatEAN13, payload, 12)
	if err != nil {
		return "", err
	}
	check, err := EAN13CheckDigit(normalized)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d", normalized, check), nil
}

// GenerateEAN8 appends the check digit to a 7 digit payload.
func GenerateEAN8(payload string) (string, error) {
	normalized, err := normalizeDigits(FormatEAN8, payload, 7)
	if err != nil {
		return "", err
	}
	check, err := EAN8CheckDigit(normalized)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d", normalized, check), nil
}

// GenerateUPCA appends the check digit to an 11 digit payload.
func GenerateUPCA(payload string) (string, error) {
	normalized, err := normalizeDigits(FormatUPCA, payload, 11)
	if err != nil {
		return "", err
	}
	check, err := UPCACheckDigit(normalized)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d", normalized, check), nil
}

func digitsOf(format Format, payload string, want int) ([]int, error) {
	payload = strings.TrimSpace(payload)
	if len(payload) != want {
		return nil, &InvalidLengthError{Format: format, Want: want, Got: len(payload)}
	}
	out := make([]int, 0, len(payload))
	for _, r := range payload {
		if r < '0' || r > '9' {
			return nil, &InvalidFormatError{Format: format, Value: payload, Reason: "digits only"}
		}
		out = append(out, int(r-'0'))
	}
	return out, nil
}

func normalizeDigits(format Format, payload string, want int) (string, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", &InvalidLengthError{Format: format, Want: want, Got: 0}
	}
	for _, r := range payload {
		if r < '0' || r > '9' {
			return "", &InvalidFormatError{Format: format, Value: payload, Reason: "digits only"}
		}
	}
	if len(payload) > want {
		return "", &InvalidLengthError{Format: format, Want: want, Got: len(payload)}
	}
	return strings.Repeat("0", want-len(payload)) + payload, nil
}
