package barcode

import "fmt"

// InvalidLengthError reports a payload whose length does not match what the
// symbology requires.
type InvalidLengthError struct {
	Format Format
	Want   int
	Got    int
}

func (e *InvalidLengthError) Error() string {
	return fmt.Sprintf("%s payload must be %d digits (got %d)", e.Format, e.Want, e.Got)
}

// InvalidFormatError reports a payload that does not satisfy the symbology's
// character set or length rules, or an unknown symbology.
type InvalidFormatError struct {
	Format Format
	Value  string
	Reason string
}

func (e *InvalidFormatError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("value %q is not valid for format %s", e.Value, e.Format)
	}
	return fmt.Sprintf("value %q is not valid for format %s: %s", e.Value, e.Format, e.Reason)
}
