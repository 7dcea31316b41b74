package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pivotpie/piedocs-go/internal/barcode"
	"github.com/pivotpie/piedocs-go/internal/domain"
	"github.com/pivotpie/piedocs-go/internal/repo"
)

type CodeStore struct {
	db DB
}

func NewCodeStore(db DB) *CodeStore {
	if db == nil {
		return nil
	}
	return &CodeStore{db: db}
}

const codeColumns = `code_id, code, format, status, document_id, document_type, object_key, size_bytes, sha256, created_at, created_by, retired_at, retired_by`

func (s *CodeStore) Create(ctx context.Context, code domain.IssuedCode) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("code store not initialized")
	}
	if err := code.Validate(); err != nil {
		return err
	}
	createdAt := normalizeTime(code.CreatedAt)

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO issued_codes (
			code_id,
			code,
			format,
			status,
			document_id,
			document_type,
			object_key,
			size_bytes,
			sha256,
			created_at,
			created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		strings.TrimSpace(code.ID),
		strings.TrimSpace(code.Code),
		string(code.Format),
		code.Status,
		nullIfEmpty(code.DocumentID),
		nullIfEmpty(code.DocumentType),
		nullIfEmpty(code.ObjectKey),
		code.SizeBytes,
		nullIfEmpty(code.SHA256),
		createdAt,
		strings.TrimSpace(code.CreatedBy),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repo.ErrDuplicateCode
		}
		return fmt.Errorf("insert code: %w", err)
	}
	return nil
}

func (s *CodeStore) Get(ctx context.Context, id string) (domain.IssuedCode, error) {
	if s == nil || s.db == nil {
		return domain.IssuedCode{}, fmt.Errorf("code store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.IssuedCode{}, fmt.Errorf("code id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+codeColumns+` FROM issued_codes WHERE code_id = $1`,
		id,
	)
	return scanCode(row)
}

func (s *CodeStore) GetByCode(ctx context.Context, code string) (domain.IssuedCode, error) {
	if s == nil || s.db == nil {
		return domain.IssuedCode{}, fmt.Errorf("code store not initialized")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.IssuedCode{}, fmt.Errorf("code is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+codeColumns+` FROM issued_codes WHERE code = $1`,
		code,
	)
	return scanCode(row)
}

func (s *CodeStore) List(ctx context.Context, filter repo.CodeFilter) ([]domain.IssuedCode, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("code store not initialized")
	}
	query, args := buildCodeListQuery(filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list codes: %w", err)
	}
	defer rows.Close()

	out := make([]domain.IssuedCode, 0, 16)
	for rows.Next() {
		code, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list codes: %w", err)
	}
	return out, nil
}

func (s *CodeStore) Retire(ctx context.Context, id string, retiredBy string) (domain.IssuedCode, error) {
	if s == nil || s.db == nil {
		return domain.IssuedCode{}, fmt.Errorf("code store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.IssuedCode{}, fmt.Errorf("code id is required")
	}
	retiredBy = strings.TrimSpace(retiredBy)
	if retiredBy == "" {
		return domain.IssuedCode{}, fmt.Errorf("retired by is required")
	}

	row := s.db.QueryRowContext(
		ctx,
		`UPDATE issued_codes
		 SET status = $1, retired_at = $2, retired_by = $3
		 WHERE code_id = $4 AND status = $5
		 RETURNING `+codeColumns,
		domain.StatusRetired,
		time.Now().UTC(),
		retiredBy,
		id,
		domain.StatusActive,
	)
	return scanCode(row)
}

func buildCodeListQuery(filter repo.CodeFilter) (string, []any) {
	clauses := make([]string, 0, 3)
	args := make([]any, 0, 5)

	if strings.TrimSpace(string(filter.Format)) != "" {
		args = append(args, string(filter.Format))
		clauses = append(clauses, fmt.Sprintf("format = $%d", len(args)))
	}
	if strings.TrimSpace(filter.Status) != "" {
		args = append(args, strings.TrimSpace(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if strings.TrimSpace(filter.DocumentID) != "" {
		args = append(args, strings.TrimSpace(filter.DocumentID))
		clauses = append(clauses, fmt.Sprintf("document_id = $%d", len(args)))
	}

	query := `SELECT ` + codeColumns + ` FROM issued_codes`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCode(row rowScanner) (domain.IssuedCode, error) {
	var code domain.IssuedCode
	var format string
	var documentID sql.NullString
	var documentType sql.NullString
	var objectKey sql.NullString
	var sha256Hex sql.NullString
	var retiredAt sql.NullTime
	var retiredBy sql.NullString

	err := row.Scan(
		&code.ID,
		&code.Code,
		&format,
		&code.Status,
		&documentID,
		&documentType,
		&objectKey,
		&code.SizeBytes,
		&sha256Hex,
		&code.CreatedAt,
		&code.CreatedBy,
		&retiredAt,
		&retiredBy,
	)
	if err != nil {
		return domain.IssuedCode{}, handleNotFound(err)
	}

	code.Format = barcode.Format(format)
	if documentID.Valid {
		code.DocumentID = documentID.String
	}
	if documentType.Valid {
		code.DocumentType = documentType.String
	}
	if objectKey.Valid {
		code.ObjectKey = objectKey.String
	}
	if sha256Hex.Valid {
		code.SHA256 = sha256Hex.String
	}
	if retiredAt.Valid {
		retired := retiredAt.Time.UTC()
		code.RetiredAt = &retired
	}
	if retiredBy.Valid {
		code.RetiredBy = retiredBy.String
	}
	return code, nil
}

func nullIfEmpty(value string) sql.NullString {
	value = strings.TrimSpace(value)
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
