package barcode

import (
	"testing"
	"time"
)

func TestQRMetadataRoundTrip(t *testing.T) {
	created := time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC)
	m, err := NewQRMetadata("DOC-042", "invoice", created)
	if err != nil {
		t.Fatalf("NewQRMetadata: %v", err)
	}
	if m.Checksum != 42 {
		t.Fatalf("checksum = %d, want 42", m.Checksum)
	}
	if m.Version != MetadataVersion {
		t.Fatalf("version = %d, want %d", m.Version, MetadataVersion)
	}

	encoded, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := DecodeQRMetadata(encoded)
	if err != nil {
		t.Fatalf("DecodeQRMetadata: %v", err)
	}
	if decoded != m {
		t.Fatalf("round trip mismatch: %+v vs %+v", decoded, m)
	}
}

func TestNewQRMetadataRequiresDocumentID(t *testing.T) {
	if _, err := NewQRMetadata("  ", "invoice", time.Now()); err == nil {
		t.Fatal("expected error for blank document id")
	}
}

func TestDecodeQRMetadataRejectsUnknownFields(t *testing.T) {
	raw := `{"document_id":"DOC-042","document_type":"invoice","created_at":"2026-02-14T09:30:00Z","checksum":42,"version":1,"extra":true}`
	if _, err := DecodeQRMetadata(raw); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestDecodeQRMetadataRejectsChecksumMismatch(t *testing.T) {
	raw := `{"document_id":"DOC-042","document_type":"invoice","created_at":"2026-02-14T09:30:00Z","checksum":41,"version":1}`
	if _, err := DecodeQRMetadata(raw); err == nil {
		t.Fatal("expected checksum mismatch to be rejected")
	}
}

func TestDecodeQRMetadataRejectsWrongVersion(t *testing.T) {
	raw := `{"document_id":"DOC-042","document_type":"invoice","created_at":"2026-02-14T09:30:00Z","checksum":42,"version":9}`
	if _, err := DecodeQRMetadata(raw); err == nil {
		t.Fatal("expected unsupported version to be rejected")
	}
}

func TestDecodeQRMetadataRejectsTrailingData(t *testing.T) {
	raw := `{"document_id":"DOC-042","document_type":"invoice","created_at":"2026-02-14T09:30:00Z","checksum":42,"version":1}{}`
	if _, err := DecodeQRMetadata(raw); err == nil {
		t.Fatal("expected trailing data to be rejected")
	}
}
