// Package render rasterizes validated code strings into PNG images. All
// algorithmic work is delegated to the underlying symbology libraries; this
// package owns option mapping and error wrapping only.
package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"strings"

	bb "github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/code39"
	"github.com/boombuler/barcode/datamatrix"
	"github.com/boombuler/barcode/ean"
	"github.com/boombuler/barcode/pdf417"
	"github.com/boombuler/barcode/twooffive"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/pivotpie/piedocs-go/internal/barcode"
)

// RenderError wraps a failure from an underlying symbology library with the
// format and value that triggered it.
type RenderError struct {
	Format barcode.Format
	Value  string
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s %q: %v", e.Format, e.Value, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

type Options struct {
	// Width and Height are target pixel dimensions. Matrix symbologies use
	// Width for both axes. Zero values fall back to per-class defaults.
	Width  int
	Height int

	// Margin is the QR quiet zone preference; negative disables the border.
	Margin int

	// Level is the QR error-correction level: "L", "M", "Q" or "H".
	// Empty means "M".
	Level string
}

const (
	defaultLinearWidth  = 300
	defaultLinearHeight = 120
	defaultMatrixSize   = 256
)

// Image is a rasterized code. PNG holds the raw bytes; DataURL is the
// browser-embeddable form.
type Image struct {
	Format barcode.Format
	Value  string
	PNG    []byte
	Width  int
	Height int
}

func (img Image) DataURL() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(img.PNG)
}

// Renderer turns validated payloads into images. The zero value is usable.
type Renderer struct{}

func NewRenderer() *Renderer { return &Renderer{} }

// Render validates value for format, normalizes check digits where the
// symbology defines one, and rasterizes the result. The context is checked
// before any work so batch callers can cancel between items.
func (r *Renderer) Render(ctx context.Context, format barcode.Format, value string, opts Options) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}

	payload, err := barcode.CheckedPayload(format, value)
	if err != nil {
		return Image{}, err
	}

	width, height := dimensionsFor(format, opts)

	if format == barcode.FormatQR {
		return renderQR(payload, width, opts)
	}

	encoded, err := encodeLinearOrMatrix(format, payload)
	if err != nil {
		return Image{}, &RenderError{Format: format, Value: payload, Err: err}
	}

	scaled, err := bb.Scale(encoded, width, height)
	if err != nil {
		return Image{}, &RenderError{Format: format, Value: payload, Err: err}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return Image{}, &RenderError{Format: format, Value: payload, Err: err}
	}

	return Image{
		Format: format,
		Value:  payload,
		PNG:    buf.Bytes(),
		Width:  width,
		Height: height,
	}, nil
}

func encodeLinearOrMatrix(format barcode.Format, payload string) (bb.Barcode, error) {
	switch format {
	case barcode.FormatCode128:
		return code128.Encode(payload)
	case barcode.FormatCode39:
		return code39.Encode(payload, true, false)
	case barcode.FormatEAN13, barcode.FormatEAN8:
		return ean.Encode(payload)
	case barcode.FormatUPCA:
		// UPC-A is the EAN-13 symbol with a leading zero.
		return ean.Encode("0" + payload)
	case barcode.FormatITF:
		return twooffive.Encode(payload, true)
	case barcode.FormatDataMatrix:
		return datamatrix.Encode(payload)
	case barcode.FormatPDF417:
		return pdf417.Encode(payload, 2)
	default:
		return nil, fmt.Errorf("unsupported format %s", format)
	}
}

func renderQR(payload string, size int, opts Options) (Image, error) {
	level, err := recoveryLevel(opts.Level)
	if err != nil {
		return Image{}, &RenderError{Format: barcode.FormatQR, Value: payload, Err: err}
	}
	q, err := qrcode.New(payload, level)
	if err != nil {
		return Image{}, &RenderError{Format: barcode.FormatQR, Value: payload, Err: err}
	}
	if opts.Margin < 0 {
		q.DisableBorder = true
	}
	blob, err := q.PNG(size)
	if err != nil {
		return Image{}, &RenderError{Format: barcode.FormatQR, Value: payload, Err: err}
	}
	return Image{
		Format: barcode.FormatQR,
		Value:  payload,
		PNG:    blob,
		Width:  size,
		Height: size,
	}, nil
}

func recoveryLevel(name string) (qrcode.RecoveryLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "M":
		return qrcode.Medium, nil
	case "L":
		return qrcode.Low, nil
	case "Q":
		return qrcode.High, nil
	case "H":
		return qrcode.Highest, nil
	default:
		return qrcode.Medium, fmt.Errorf("unknown error-correction level %q", name)
	}
}

func dimensionsFor(format barcode.Format, opts Options) (int, int) {
	info, ok := barcode.Info(format)
	if ok && info.Class == barcode.ClassMatrix && format != barcode.FormatPDF417 {
		size := opts.Width
		if size <= 0 {
			size = defaultMatrixSize
		}
		return size, size
	}

	width := opts.Width
	if width <= 0 {
		width = defaultLinearWidth
	}
	height := opts.Height
	if height <= 0 {
		height = defaultLinearHeight
	}
	return width, height
}
