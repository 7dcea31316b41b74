// Package batch generates and renders runs of codes sequentially, reporting
// progress after each item. A failed item is recorded and skipped; the run
// continues with the remaining items.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pivotpie/piedocs-go/internal/barcode"
	"github.com/pivotpie/piedocs-go/internal/render"
)

type Options struct {
	Format barcode.Format
	Prefix string
	Suffix string
	Render render.Options
}

// Item is one successfully generated and rendered code.
type Item struct {
	Code  string
	Image render.Image
}

// Failure records an item that could not be rendered. The run keeps going.
type Failure struct {
	Index int
	Code  string
	Err   error
}

type Result struct {
	Items    []Item
	Failures []Failure
}

// ProgressFunc receives the percentage of items attempted so far, in the
// range 1..100.
type ProgressFunc func(percent int)

type ImageRenderer interface {
	Render(ctx context.Context, format barcode.Format, value string, opts render.Options) (render.Image, error)
}

type Runner struct {
	generator *barcode.Generator
	renderer  ImageRenderer
}

func NewRunner(generator *barcode.Generator, renderer ImageRenderer) (*Runner, error) {
	if generator == nil {
		return nil, errors.New("generator is required")
	}
	if renderer == nil {
		return nil, errors.New("renderer is required")
	}
	return &Runner{generator: generator, renderer: renderer}, nil
}

// Generate produces count codes in order. The context is checked before each
// item; on cancellation the partial result is returned together with the
// context's error.
func (r *Runner) Generate(ctx context.Context, count int, opts Options, onProgress ProgressFunc) (Result, error) {
	if count < 0 {
		return Result{}, fmt.Errorf("count must be non-negative (got %d)", count)
	}
	if _, ok := barcode.Info(opts.Format); !ok {
		return Result{}, &barcode.InvalidFormatError{Format: opts.Format, Reason: "unknown format"}
	}

	result := Result{Items: make([]Item, 0, count)}
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		code := r.nextCode(opts)
		img, err := r.renderer.Render(ctx, opts.Format, code, opts.Render)
		if err != nil {
			r.generator.Forget(code)
			result.Failures = append(result.Failures, Failure{Index: i, Code: code, Err: err})
		} else {
			result.Items = append(result.Items, Item{Code: img.Value, Image: img})
		}

		if onProgress != nil {
			onProgress((i + 1) * 100 / count)
		}
	}
	return result, nil
}

func (r *Runner) nextCode(opts Options) string {
	info, _ := barcode.Info(opts.Format)
	switch {
	case info.CheckDigit != nil:
		// Numeric symbologies get a random digit stem; the renderer
		// appends the check digit.
		return r.generator.UniqueDigits(info.MaxLength - 1)
	case opts.Format == barcode.FormatITF:
		return r.generator.UniqueDigits(12)
	default:
		return r.generator.UniqueID(strings.TrimSpace(opts.Prefix), strings.TrimSpace(opts.Suffix))
	}
}
