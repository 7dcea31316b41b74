package barcode

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MetadataVersion is embedded in every QR payload so readers can reject
// payloads from incompatible releases.
const MetadataVersion = 1

// QRMetadata is the record embedded as a QR payload for document codes.
type QRMetadata struct {
	DocumentID   string    `json:"document_id"`
	DocumentType string    `json:"document_type"`
	CreatedAt    time.Time `json:"created_at"`
	Checksum     int       `json:"checksum"`
	Version      int       `json:"version"`
}

// NewQRMetadata builds the payload for a document, computing the mod-97
// checksum over the digits of the document id.
func NewQRMetadata(documentID string, documentType string, createdAt time.Time) (QRMetadata, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return QRMetadata{}, errors.New("document id is required")
	}
	checksum, err := Mod97Checksum(documentID)
	if err != nil {
		return QRMetadata{}, fmt.Errorf("metadata checksum: %w", err)
	}
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return QRMetadata{
		DocumentID:   documentID,
		DocumentType: strings.TrimSpace(documentType),
		CreatedAt:    createdAt.UTC(),
		Checksum:     checksum,
		Version:      MetadataVersion,
	}, nil
}

func (m QRMetadata) Validate() error {
	if strings.TrimSpace(m.DocumentID) == "" {
		return errors.New("document_id is required")
	}
	if m.CreatedAt.IsZero() {
		return errors.New("created_at is required")
	}
	if m.Version != MetadataVersion {
		return fmt.Errorf("unsupported metadata version %d", m.Version)
	}
	checksum, err := Mod97Checksum(m.DocumentID)
	if err != nil {
		return fmt.Errorf("metadata checksum: %w", err)
	}
	if checksum != m.Checksum {
		return fmt.Errorf("checksum mismatch: payload says %d, digits say %d", m.Checksum, checksum)
	}
	return nil
}

func (m QRMetadata) Encode() (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	blob, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(blob), nil
}

// DecodeQRMetadata parses a QR payload, rejecting unknown fields and
// payloads that fail integrity checks.
func DecodeQRMetadata(raw string) (QRMetadata, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()

	var m QRMetadata
	if err := dec.Decode(&m); err != nil {
		return QRMetadata{}, fmt.Errorf("decode metadata: %w", err)
	}
	if dec.More() {
		return QRMetadata{}, errors.New("decode metadata: trailing data")
	}
	if err := m.Validate(); err != nil {
		return QRMetadata{}, err
	}
	return m, nil
}
