// Package profile parses the symbology profile a deployment loads at start.
// The profile controls which formats may be issued and the default render
// options per format.
package profile

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pivotpie/piedocs-go/internal/barcode"
)

const SpecSchemaV1 = "piedocs.symbology.v1"

type Spec struct {
	Schema      string      `json:"schema" yaml:"schema"`
	Default     string      `json:"default_format,omitempty" yaml:"default_format,omitempty"`
	Symbologies []Symbology `json:"symbologies" yaml:"symbologies"`
}

type Symbology struct {
	Format  string `json:"format" yaml:"format"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Prefix  string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Width   int    `json:"width,omitempty" yaml:"width,omitempty"`
	Height  int    `json:"height,omitempty" yaml:"height,omitempty"`
}

func ParseSpec(input []byte) (Spec, error) {
	var spec Spec
	if err := yaml.Unmarshal(input, &spec); err != nil {
		return Spec{}, fmt.Errorf("decode profile: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

func (s Spec) Validate() error {
	if strings.TrimSpace(s.Schema) != SpecSchemaV1 {
		return fmt.Errorf("profile.schema must be %q", SpecSchemaV1)
	}
	if len(s.Symbologies) == 0 {
		return fmt.Errorf("profile.symbologies must be non-empty")
	}

	seen := make(map[barcode.Format]struct{}, len(s.Symbologies))
	enabled := 0
	for i, sym := range s.Symbologies {
		format, ok := barcode.ParseFormat(sym.Format)
		if !ok {
			return fmt.Errorf("profile.symbologies[%d].format unsupported: %q", i, sym.Format)
		}
		if _, dup := seen[format]; dup {
			return fmt.Errorf("profile.symbologies[%d].format must be unique (duplicate %q)", i, sym.Format)
		}
		seen[format] = struct{}{}
		if sym.Enabled {
			enabled++
		}
		if sym.Width < 0 || sym.Height < 0 {
			return fmt.Errorf("profile.symbologies[%d] dimensions must be non-negative", i)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("profile must enable at least one symbology")
	}

	if strings.TrimSpace(s.Default) != "" {
		format, ok := barcode.ParseFormat(s.Default)
		if !ok {
			return fmt.Errorf("profile.default_format unsupported: %q", s.Default)
		}
		if !s.allows(format) {
			return fmt.Errorf("profile.default_format %q is not enabled", s.Default)
		}
	}
	return nil
}

// DefaultFormat resolves the format used when a request names none.
func (s Spec) DefaultFormat() barcode.Format {
	if strings.TrimSpace(s.Default) != "" {
		if format, ok := barcode.ParseFormat(s.Default); ok {
			return format
		}
	}
	for _, sym := range s.Symbologies {
		if !sym.Enabled {
			continue
		}
		if format, ok := barcode.ParseFormat(sym.Format); ok {
			return format
		}
	}
	return barcode.FormatCode128
}

// Allows reports whether the profile permits issuing the given format.
func (s Spec) Allows(format barcode.Format) bool {
	return s.allows(format)
}

func (s Spec) allows(format barcode.Format) bool {
	for _, sym := range s.Symbologies {
		parsed, ok := barcode.ParseFormat(sym.Format)
		if ok && parsed == format {
			return sym.Enabled
		}
	}
	return false
}

// Lookup returns the profile entry for a format, if present.
func (s Spec) Lookup(format barcode.Format) (Symbology, bool) {
	for _, sym := range s.Symbologies {
		parsed, ok := barcode.ParseFormat(sym.Format)
		if ok && parsed == format {
			return sym, true
		}
	}
	return Symbology{}, false
}

// DefaultSpec enables the formats the upload and tracking flows use out of
// the box. Deployments override it with PIEDOCS_SYMBOLOGY_PROFILE.
func DefaultSpec() Spec {
	return Spec{
		Schema:  SpecSchemaV1,
		Default: string(barcode.FormatCode128),
		Symbologies: []Symbology{
			{Format: string(barcode.FormatCode128), Enabled: true},
			{Format: string(barcode.FormatCode39), Enabled: true},
			{Format: string(barcode.FormatEAN13), Enabled: true},
			{Format: string(barcode.FormatEAN8), Enabled: true},
			{Format: string(barcode.FormatUPCA), Enabled: true},
			{Format: string(barcode.FormatITF), Enabled: true},
			{Format: string(barcode.FormatQR), Enabled: true},
			{Format: string(barcode.FormatDataMatrix), Enabled: true},
			{Format: string(barcode.FormatPDF417), Enabled: true},
		},
	}
}
