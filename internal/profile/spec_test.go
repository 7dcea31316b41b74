package profile

import (
	"testing"

	"github.com/pivotpie/piedocs-go/internal/barcode"
)

func TestParseSpec(t *testing.T) {
	input := []byte(`
schema: piedocs.symbology.v1
default_format: QR
symbologies:
  - format: QR
    enabled: true
    width: 128
  - format: CODE128
    enabled: true
    prefix: DOC
  - format: EAN13
    enabled: false
`)
	spec, err := ParseSpec(input)
	if err != nil {
		t.Fatalf("ParseSpec: %v", err)
	}
	if spec.DefaultFormat() != barcode.FormatQR {
		t.Fatalf("default format = %s, want QR", spec.DefaultFormat())
	}
	if !spec.Allows(barcode.FormatCode128) {
		t.Fatal("CODE128 should be allowed")
	}
	if spec.Allows(barcode.FormatEAN13) {
		t.Fatal("disabled EAN13 should not be allowed")
	}
	if spec.Allows(barcode.FormatPDF417) {
		t.Fatal("unlisted PDF417 should not be allowed")
	}

	sym, ok := spec.Lookup(barcode.FormatQR)
	if !ok || sym.Width != 128 {
		t.Fatalf("Lookup(QR) = %+v %v, want width 128", sym, ok)
	}
}

func TestParseSpecRejects(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{name: "wrong schema", input: "schema: piedocs.symbology.v2\nsymbologies:\n  - format: QR\n    enabled: true\n"},
		{name: "no symbologies", input: "schema: piedocs.symbology.v1\nsymbologies: []\n"},
		{name: "unknown format", input: "schema: piedocs.symbology.v1\nsymbologies:\n  - format: AZTEC\n    enabled: true\n"},
		{name: "duplicate format", input: "schema: piedocs.symbology.v1\nsymbologies:\n  - format: QR\n    enabled: true\n  - format: qr\n    enabled: true\n"},
		{name: "all disabled", input: "schema: piedocs.symbology.v1\nsymbologies:\n  - format: QR\n    enabled: false\n"},
		{name: "default not enabled", input: "schema: piedocs.symbology.v1\ndefault_format: EAN13\nsymbologies:\n  - format: QR\n    enabled: true\n  - format: EAN13\n    enabled: false\n"},
		{name: "negative width", input: "schema: piedocs.symbology.v1\nsymbologies:\n  - format: QR\n    enabled: true\n    width: -1\n"},
		{name: "not yaml", input: ": : :"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseSpec([]byte(tc.input)); err == nil {
				t.Fatal("expected parse error")
			}
		})
	}
}

func TestDefaultSpec(t *testing.T) {
	spec := DefaultSpec()
	if err := spec.Validate(); err != nil {
		t.Fatalf("default profile invalid: %v", err)
	}
	if spec.DefaultFormat() != barcode.FormatCode128 {
		t.Fatalf("default format = %s, want CODE128", spec.DefaultFormat())
	}
	for _, info := range barcode.Formats() {
		if !spec.Allows(info.Format) {
			t.Fatalf("default profile should allow %s", info.Format)
		}
	}
}
