// Package repo declares the persistence interfaces of the code service.
package repo

import (
	"context"
	"errors"

	"github.com/pivotpie/piedocs-go/internal/barcode"
	"github.com/pivotpie/piedocs-go/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateCode = errors.New("code already issued")
)

type CodeFilter struct {
	Format     barcode.Format
	Status     string
	DocumentID string
	Limit      int
	Offset     int
}

// IssuedCodeStore is the durable registry of issued codes. Create must fail
// with ErrDuplicateCode when the code value is already registered, which is
// what enforces cross-instance uniqueness.
type IssuedCodeStore interface {
	Create(ctx context.Context, code domain.IssuedCode) error
	Get(ctx context.Context, id string) (domain.IssuedCode, error)
	GetByCode(ctx context.Context, code string) (domain.IssuedCode, error)
	List(ctx context.Context, filter CodeFilter) ([]domain.IssuedCode, error)
	Retire(ctx context.Context, id string, retiredBy string) (domain.IssuedCode, error)
}
