// Package domain holds the core records of the Pie-Docs code service.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pivotpie/piedocs-go/internal/barcode"
)

const (
	StatusActive  = "active"
	StatusRetired = "retired"
)

// IssuedCode is a code that has been generated, rendered and registered.
// The registry is what makes uniqueness durable across restarts and
// instances; the in-memory generator only covers a single process.
type IssuedCode struct {
	ID           string
	Code         string
	Format       barcode.Format
	Status       string
	DocumentID   string
	DocumentType string
	ObjectKey    string
	SizeBytes    int64
	SHA256       string
	CreatedAt    time.Time
	CreatedBy    string
	RetiredAt    *time.Time
	RetiredBy    string
}

// Kind distinguishes the two families the product UI exposes.
func (c IssuedCode) Kind() string {
	if c.Format == barcode.FormatQR {
		return "qrcode"
	}
	return "barcode"
}

func (c IssuedCode) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("ID is required")
	}
	if strings.TrimSpace(c.Code) == "" {
		return errors.New("Code is required")
	}
	if _, ok := barcode.Info(c.Format); !ok {
		return fmt.Errorf("unknown format %q", c.Format)
	}
	if !barcode.ValidFor(c.Format, c.Code) {
		return fmt.Errorf("code %q is not valid for format %s", c.Code, c.Format)
	}
	switch c.Status {
	case StatusActive, StatusRetired:
	default:
		return fmt.Errorf("unknown status %q", c.Status)
	}
	if c.SizeBytes < 0 {
		return errors.New("SizeBytes must not be negative")
	}
	if c.CreatedAt.IsZero() {
		return errors.New("CreatedAt is required")
	}
	if strings.TrimSpace(c.CreatedBy) == "" {
		return errors.New("CreatedBy is required")
	}
	if c.Status == StatusRetired && (c.RetiredAt == nil || c.RetiredAt.IsZero()) {
		return errors.New("RetiredAt is required for retired codes")
	}
	return nil
}
