// Package barcode implements identifier generation, check digit math and
// payload validation for the symbologies the Pie-Docs code service issues.
package barcode

import (
	"regexp"
	"sort"
	"strings"
)

type Format string

const (
	FormatCode128    Format = "CODE128"
	FormatCode39     Format = "CODE39"
	FormatEAN13      Format = "EAN13"
	FormatEAN8       Format = "EAN8"
	FormatUPCA       Format = "UPCA"
	FormatITF        Format = "ITF"
	FormatQR         Format = "QR"
	FormatDataMatrix Format = "DATAMATRIX"
	FormatPDF417     Format = "PDF417"
)

type Class string

const (
	ClassLinear Class = "linear"
	ClassMatrix Class = "matrix"
)

type FormatInfo struct {
	Format    Format
	Class     Class
	Pattern   *regexp.Regexp
	MaxLength int

	// CheckDigit holds the generator for symbologies that carry a mod-10
	// check digit, nil otherwise.
	CheckDigit func(payload string) (string, error)
}

var formatInfos = map[Format]FormatInfo{
	FormatCode128: {
		Format:    FormatCode128,
		Class:     ClassLinear,
		Pattern:   regexp.MustCompile(`^[\x20-\x7e]+$`),
		MaxLength: 80,
	},
	FormatCode39: {
		Format:    FormatCode39,
		Class:     ClassLinear,
		Pattern:   regexp.MustCompile(`^[0-9A-Z\-\. $/+%]+$`),
		MaxLength: 43,
	},
	FormatEAN13: {
		Format:     FormatEAN13,
		Class:      ClassLinear,
		Pattern:    regexp.MustCompile(`^\d{12,13}$`),
		MaxLength:  13,
		CheckDigit: GenerateEAN13,
	},
	FormatEAN8: {
		Format:     FormatEAN8,
		Class:      ClassLinear,
		Pattern:    regexp.MustCompile(`^\d{7,8}$`),
		MaxLength:  8,
		CheckDigit: GenerateEAN8,
	},
	FormatUPCA: {
		Format:     FormatUPCA,
		Class:      ClassLinear,
		Pattern:    regexp.MustCompile(`^\d{11,12}$`),
		MaxLength:  12,
		CheckDigit: GenerateUPCA,
	},
	FormatITF: {
		Format:    FormatITF,
		Class:     ClassLinear,
		Pattern:   regexp.MustCompile(`^(\d\d)+$`),
		MaxLength: 40,
	},
	FormatQR: {
		Format:    FormatQR,
		Class:     ClassMatrix,
		Pattern:   regexp.MustCompile(`^.+$`),
		MaxLength: 2953,
	},
	FormatDataMatrix: {
		Format:    FormatDataMatrix,
		Class:     ClassMatrix,
		Pattern:   regexp.MustCompile(`^.+$`),
		MaxLength: 2335,
	},
	FormatPDF417: {
		Format:    FormatPDF417,
		Class:     ClassMatrix,
		Pattern:   regexp.MustCompile(`^.+$`),
		MaxLength: 1850,
	},
}

// ParseFormat maps a case-insensitive name to a known symbology.
func ParseFormat(raw string) (Format, bool) {
	f := Format(strings.ToUpper(strings.TrimSpace(raw)))
	_, ok := formatInfos[f]
	return f, ok
}

func Info(format Format) (FormatInfo, bool) {
	info, ok := formatInfos[format]
	return info, ok
}

// Formats lists the supported symbologies in stable order.
func Formats() []FormatInfo {
	out := make([]FormatInfo, 0, len(formatInfos))
	for _, info := range formatInfos {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Format < out[j].Format })
	return out
}

// ValidFor reports whether value is a well formed payload for format.
// Unknown formats are never valid.
func ValidFor(format Format, value string) bool {
	info, ok := formatInfos[format]
	if !ok {
		return false
	}
	if value == "" {
		return false
	}
	if len(value) > info.MaxLength {
		return false
	}
	return info.Pattern.MatchString(value)
}

// CheckedPayload validates value for format and, where the symbology defines
// a check digit, verifies or appends it. The returned string is what should
// actually be encoded.
func CheckedPayload(format Format, value string) (string, error) {
	info, ok := formatInfos[format]
	if !ok {
		return "", &InvalidFormatError{Format: format, Value: value, Reason: "unknown format"}
	}
	if !ValidFor(format, value) {
		return "", &InvalidFormatError{Format: format, Value: value}
	}
	if info.CheckDigit == nil {
		return value, nil
	}
	if len(value) == info.MaxLength {
		// Full-length payload carries its check digit; verify it.
		recomputed, err := info.CheckDigit(value[:len(value)-1])
		if err != nil {
			return "", err
		}
		if recomputed != value {
			return "", &InvalidFormatError{Format: format, Value: value, Reason: "check digit mismatch"}
		}
		return value, nil
	}
	return info.CheckDigit(value)
}
