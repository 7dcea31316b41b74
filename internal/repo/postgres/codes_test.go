package postgres

import (
	"strings"
	"testing"

	"github.com/pivotpie/piedocs-go/internal/barcode"
	"github.com/pivotpie/piedocs-go/internal/repo"
)

func TestBuildCodeListQueryNoFilter(t *testing.T) {
	query, args := buildCodeListQuery(repo.CodeFilter{})
	if len(args) != 0 {
		t.Fatalf("expected no args, got %v", args)
	}
	if strings.Contains(query, "WHERE") {
		t.Fatalf("expected no WHERE clause, got %s", query)
	}
	if !strings.Contains(query, "ORDER BY created_at DESC") {
		t.Fatalf("expected order clause, got %s", query)
	}
}

func TestBuildCodeListQueryWithFormatAndStatus(t *testing.T) {
	query, args := buildCodeListQuery(repo.CodeFilter{Format: barcode.FormatQR, Status: "active"})
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %v", args)
	}
	if args[0] != "QR" || args[1] != "active" {
		t.Fatalf("args = %v, want [QR active]", args)
	}
	if !strings.Contains(query, "format = $1") || !strings.Contains(query, "status = $2") {
		t.Fatalf("predicates missing in query: %s", query)
	}
}

func TestBuildCodeListQueryWithPagination(t *testing.T) {
	query, args := buildCodeListQuery(repo.CodeFilter{DocumentID: "DOC-1", Limit: 25, Offset: 50})
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %v", args)
	}
	if !strings.Contains(query, "document_id = $1") {
		t.Fatalf("expected document predicate, got %s", query)
	}
	if !strings.Contains(query, "LIMIT $2") || !strings.Contains(query, "OFFSET $3") {
		t.Fatalf("expected pagination in query, got %s", query)
	}
}

func TestNullIfEmpty(t *testing.T) {
	if v := nullIfEmpty("  "); v.Valid {
		t.Fatalf("blank string should map to NULL, got %+v", v)
	}
	v := nullIfEmpty(" DOC-1 ")
	if !v.Valid || v.String != "DOC-1" {
		t.Fatalf("nullIfEmpty trimmed = %+v, want DOC-1", v)
	}
}
