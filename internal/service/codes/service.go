// Package codes coordinates code issuance: generation, rendering, image
// storage and registration in the durable registry.
package codes

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pivotpie/piedocs-go/internal/barcode"
	"github.com/pivotpie/piedocs-go/internal/batch"
	"github.com/pivotpie/piedocs-go/internal/domain"
	"github.com/pivotpie/piedocs-go/internal/platform/auditlog"
	"github.com/pivotpie/piedocs-go/internal/profile"
	"github.com/pivotpie/piedocs-go/internal/render"
	"github.com/pivotpie/piedocs-go/internal/repo"
	store "github.com/pivotpie/piedocs-go/internal/storage/objectstore"
)

// issueAttempts bounds the retries when a generated value races another
// instance into the registry.
const issueAttempts = 3

// ErrFormatDisabled marks a symbology the deployment profile does not allow.
var ErrFormatDisabled = errors.New("format disabled by symbology profile")

// AuditContext captures request identity details for audit logging.
type AuditContext struct {
	Actor     string
	RequestID string
	IP        net.IP
	UserAgent string
	Path      string
	Service   string
}

// AuditAppender persists audit events. Failures are logged by callers but
// never block issuance.
type AuditAppender interface {
	Append(ctx context.Context, event auditlog.Event) (int64, error)
}

// IssueInput describes a single code request. Zero-value Format falls back
// to the profile default; an empty Value means the service generates one.
type IssueInput struct {
	Format       barcode.Format
	Value        string
	Prefix       string
	Suffix       string
	DocumentID   string
	DocumentType string
	Width        int
	Height       int
	Level        string
}

type IssueResult struct {
	Code        domain.IssuedCode
	Image       render.Image
	DownloadURL string
}

// BatchInput describes a batch request.
type BatchInput struct {
	Count        int
	Format       barcode.Format
	Prefix       string
	Suffix       string
	DocumentType string
}

// BatchFailure records one item that could not be issued.
type BatchFailure struct {
	Index int
	Code  string
	Error string
}

type BatchResult struct {
	Issued   []domain.IssuedCode
	Failures []BatchFailure
}

// ImageResult pairs an issued code with a presigned download link for its
// rendered image.
type ImageResult struct {
	Code domain.IssuedCode
	URL  string
}

type Service struct {
	repo       repo.IssuedCodeStore
	store      store.Store
	bucket     string
	generator  *barcode.Generator
	renderer   *render.Renderer
	runner     *batch.Runner
	profile    profile.Spec
	presignTTL time.Duration
	audit      AuditAppender
	now        func() time.Time
}

func NewService(codeRepo repo.IssuedCodeStore, imageStore store.Store, bucket string, prof profile.Spec, presignTTL time.Duration, audit AuditAppender) (*Service, error) {
	if codeRepo == nil {
		return nil, errors.New("code repository is required")
	}
	if imageStore == nil {
		return nil, errors.New("object store is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if err := prof.Validate(); err != nil {
		return nil, fmt.Errorf("symbology profile: %w", err)
	}
	if presignTTL <= 0 {
		presignTTL = 10 * time.Minute
	}

	generator := barcode.NewGenerator()
	renderer := render.NewRenderer()
	runner, err := batch.NewRunner(generator, renderer)
	if err != nil {
		return nil, err
	}

	return &Service{
		repo:       codeRepo,
		store:      imageStore,
		bucket:     bucket,
		generator:  generator,
		renderer:   renderer,
		runner:     runner,
		profile:    prof,
		presignTTL: presignTTL,
		audit:      audit,
		now:        time.Now,
	}, nil
}

// IssueCode generates (or accepts) a code value, renders it, stores the
// image and registers the code. A caller-provided value that already exists
// surfaces repo.ErrDuplicateCode; generated values are retried.
func (s *Service) IssueCode(ctx context.Context, input IssueInput, auditCtx AuditContext) (IssueResult, error) {
	if s == nil || s.repo == nil || s.store == nil {
		return IssueResult{}, errors.New("code service not initialized")
	}

	format, err := s.resolveFormat(input.Format)
	if err != nil {
		return IssueResult{}, err
	}

	provided := strings.TrimSpace(input.Value) != ""
	attempts := issueAttempts
	if provided {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return IssueResult{}, err
		}

		value := strings.TrimSpace(input.Value)
		if !provided {
			value, err = s.nextValue(format, input)
			if err != nil {
				return IssueResult{}, err
			}
		}

		result, err := s.issueOne(ctx, format, value, input, auditCtx)
		if err == nil {
			return result, nil
		}
		if provided || !errors.Is(err, repo.ErrDuplicateCode) {
			return IssueResult{}, err
		}
		s.generator.Forget(value)
		lastErr = err
	}
	return IssueResult{}, lastErr
}

func (s *Service) issueOne(ctx context.Context, format barcode.Format, value string, input IssueInput, auditCtx AuditContext) (IssueResult, error) {
	opts := s.renderOptions(format, input.Width, input.Height)
	opts.Level = strings.TrimSpace(input.Level)
	img, err := s.renderer.Render(ctx, format, value, opts)
	if err != nil {
		return IssueResult{}, err
	}

	now := s.now().UTC()
	id := uuid.NewString()
	objectKey := fmt.Sprintf("codes/%s.png", id)

	if err := s.store.Put(ctx, s.bucket, objectKey, bytes.NewReader(img.PNG), int64(len(img.PNG)), "image/png"); err != nil {
		return IssueResult{}, fmt.Errorf("store image: %w", err)
	}

	code := domain.IssuedCode{
		ID:           id,
		Code:         img.Value,
		Format:       format,
		Status:       domain.StatusActive,
		DocumentID:   strings.TrimSpace(input.DocumentID),
		DocumentType: strings.TrimSpace(input.DocumentType),
		ObjectKey:    objectKey,
		SizeBytes:    int64(len(img.PNG)),
		SHA256:       digestHex(img.PNG),
		CreatedAt:    now,
		CreatedBy:    actorOrAnonymous(auditCtx.Actor),
	}
	if err := s.repo.Create(ctx, code); err != nil {
		_ = s.store.Delete(ctx, s.bucket, objectKey)
		return IssueResult{}, err
	}

	downloadURL, err := s.store.PresignGet(ctx, s.bucket, objectKey, s.presignTTL)
	if err != nil {
		// The code is issued either way; the client can fetch a link later.
		downloadURL = ""
	}

	s.appendAudit(ctx, code, auditCtx, "code.issue", map[string]any{
		"generated": strings.TrimSpace(input.Value) == "",
	})
	return IssueResult{Code: code, Image: img, DownloadURL: downloadURL}, nil
}

func digestHex(blob []byte) string {
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}

// IssueBatch issues count codes sequentially. Items that fail to render or
// register are reported in Failures; the rest of the batch continues.
func (s *Service) IssueBatch(ctx context.Context, input BatchInput, onProgress batch.ProgressFunc, auditCtx AuditContext) (BatchResult, error) {
	if s == nil || s.repo == nil || s.store == nil {
		return BatchResult{}, errors.New("code service not initialized")
	}

	format, err := s.resolveFormat(input.Format)
	if err != nil {
		return BatchResult{}, err
	}

	opts := batch.Options{
		Format: format,
		Prefix: strings.TrimSpace(input.Prefix),
		Suffix: strings.TrimSpace(input.Suffix),
		Render: s.renderOptions(format, 0, 0),
	}

	generated, genErr := s.runner.Generate(ctx, input.Count, opts, onProgress)

	result := BatchResult{Issued: make([]domain.IssuedCode, 0, len(generated.Items))}
	for _, failure := range generated.Failures {
		result.Failures = append(result.Failures, BatchFailure{
			Index: failure.Index,
			Code:  failure.Code,
			Error: failure.Err.Error(),
		})
	}

	for i, item := range generated.Items {
		now := s.now().UTC()
		id := uuid.NewString()
		objectKey := fmt.Sprintf("codes/%s.png", id)

		if err := s.store.Put(ctx, s.bucket, objectKey, bytes.NewReader(item.Image.PNG), int64(len(item.Image.PNG)), "image/png"); err != nil {
			result.Failures = append(result.Failures, BatchFailure{Index: i, Code: item.Code, Error: err.Error()})
			continue
		}

		code := domain.IssuedCode{
			ID:           id,
			Code:         item.Code,
			Format:       format,
			Status:       domain.StatusActive,
			DocumentType: strings.TrimSpace(input.DocumentType),
			ObjectKey:    objectKey,
			SizeBytes:    int64(len(item.Image.PNG)),
			SHA256:       digestHex(item.Image.PNG),
			CreatedAt:    now,
			CreatedBy:    actorOrAnonymous(auditCtx.Actor),
		}
		if err := s.repo.Create(ctx, code); err != nil {
			_ = s.store.Delete(ctx, s.bucket, objectKey)
			result.Failures = append(result.Failures, BatchFailure{Index: i, Code: item.Code, Error: err.Error()})
			continue
		}
		result.Issued = append(result.Issued, code)
	}

	s.appendBatchAudit(ctx, format, input, result, auditCtx)
	return result, genErr
}

func (s *Service) GetCode(ctx context.Context, id string) (domain.IssuedCode, error) {
	if s == nil || s.repo == nil {
		return domain.IssuedCode{}, errors.New("code service not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.IssuedCode{}, errors.New("code id is required")
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) GetCodeByValue(ctx context.Context, value string) (domain.IssuedCode, error) {
	if s == nil || s.repo == nil {
		return domain.IssuedCode{}, errors.New("code service not initialized")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return domain.IssuedCode{}, errors.New("code is required")
	}
	return s.repo.GetByCode(ctx, value)
}

func (s *Service) ListCodes(ctx context.Context, filter repo.CodeFilter) ([]domain.IssuedCode, error) {
	if s == nil || s.repo == nil {
		return nil, errors.New("code service not initialized")
	}
	return s.repo.List(ctx, filter)
}

// RetireCode marks an active code retired and records who did it.
func (s *Service) RetireCode(ctx context.Context, id string, auditCtx AuditContext) (domain.IssuedCode, error) {
	if s == nil || s.repo == nil {
		return domain.IssuedCode{}, errors.New("code service not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.IssuedCode{}, errors.New("code id is required")
	}

	retired, err := s.repo.Retire(ctx, id, actorOrAnonymous(auditCtx.Actor))
	if err != nil {
		return domain.IssuedCode{}, err
	}

	s.appendAudit(ctx, retired, auditCtx, "code.retire", nil)
	return retired, nil
}

// CodeImage returns the issued code together with a presigned download URL
// for its stored image.
func (s *Service) CodeImage(ctx context.Context, value string, auditCtx AuditContext) (ImageResult, error) {
	if s == nil || s.repo == nil || s.store == nil {
		return ImageResult{}, errors.New("code service not initialized")
	}

	code, err := s.GetCodeByValue(ctx, value)
	if err != nil {
		return ImageResult{}, err
	}
	if strings.TrimSpace(code.ObjectKey) == "" {
		return ImageResult{}, errors.New("code has no stored image")
	}

	url, err := s.store.PresignGet(ctx, s.bucket, code.ObjectKey, s.presignTTL)
	if err != nil {
		return ImageResult{}, fmt.Errorf("presign download: %w", err)
	}

	s.appendAudit(ctx, code, auditCtx, "code.image_url_issued", nil)
	return ImageResult{Code: code, URL: url}, nil
}

// Validate checks a code value against a symbology. Unknown formats are
// reported as invalid rather than as errors.
func (s *Service) Validate(formatName string, value string) (barcode.Format, bool) {
	format, ok := barcode.ParseFormat(formatName)
	if !ok {
		return format, false
	}
	return format, barcode.ValidFor(format, value)
}

// Profile exposes the active symbology profile for the formats endpoint.
func (s *Service) Profile() profile.Spec {
	return s.profile
}

func (s *Service) resolveFormat(format barcode.Format) (barcode.Format, error) {
	if strings.TrimSpace(string(format)) == "" {
		format = s.profile.DefaultFormat()
	}
	if _, ok := barcode.Info(format); !ok {
		return "", &barcode.InvalidFormatError{Format: format, Reason: "unknown format"}
	}
	if !s.profile.Allows(format) {
		return "", fmt.Errorf("format %s: %w", format, ErrFormatDisabled)
	}
	return format, nil
}

func (s *Service) nextValue(format barcode.Format, input IssueInput) (string, error) {
	info, _ := barcode.Info(format)
	switch {
	case format == barcode.FormatQR && strings.TrimSpace(input.DocumentID) != "":
		meta, err := barcode.NewQRMetadata(input.DocumentID, input.DocumentType, s.now().UTC())
		if err != nil {
			return "", err
		}
		return meta.Encode()
	case info.CheckDigit != nil:
		return s.generator.UniqueDigits(info.MaxLength - 1), nil
	case format == barcode.FormatITF:
		return s.generator.UniqueDigits(12), nil
	default:
		return s.generator.UniqueID(strings.TrimSpace(input.Prefix), strings.TrimSpace(input.Suffix)), nil
	}
}

func (s *Service) renderOptions(format barcode.Format, width, height int) render.Options {
	opts := render.Options{Width: width, Height: height}
	if sym, ok := s.profile.Lookup(format); ok {
		if opts.Width <= 0 {
			opts.Width = sym.Width
		}
		if opts.Height <= 0 {
			opts.Height = sym.Height
		}
	}
	return opts
}

func (s *Service) appendAudit(ctx context.Context, code domain.IssuedCode, auditCtx AuditContext, action string, extra map[string]any) {
	if s.audit == nil {
		return
	}
	payload := map[string]any{
		"service":       strings.TrimSpace(auditCtx.Service),
		"code_id":       code.ID,
		"format":        string(code.Format),
		"status":        code.Status,
		"document_id":   code.DocumentID,
		"document_type": code.DocumentType,
		"object_key":    code.ObjectKey,
		"request_path":  auditCtx.Path,
	}
	for k, v := range extra {
		payload[k] = v
	}
	_, _ = s.audit.Append(ctx, auditlog.Event{
		OccurredAt:   s.now().UTC(),
		Actor:        actorOrAnonymous(auditCtx.Actor),
		Action:       action,
		ResourceType: "code",
		ResourceID:   code.Code,
		RequestID:    auditCtx.RequestID,
		IP:           auditCtx.IP,
		UserAgent:    auditCtx.UserAgent,
		Payload:      payload,
	})
}

func (s *Service) appendBatchAudit(ctx context.Context, format barcode.Format, input BatchInput, result BatchResult, auditCtx AuditContext) {
	if s.audit == nil {
		return
	}
	_, _ = s.audit.Append(ctx, auditlog.Event{
		OccurredAt:   s.now().UTC(),
		Actor:        actorOrAnonymous(auditCtx.Actor),
		Action:       "code.issue_batch",
		ResourceType: "code_batch",
		ResourceID:   fmt.Sprintf("%s/%d", format, input.Count),
		RequestID:    auditCtx.RequestID,
		IP:           auditCtx.IP,
		UserAgent:    auditCtx.UserAgent,
		Payload: map[string]any{
			"service":   strings.TrimSpace(auditCtx.Service),
			"format":    string(format),
			"requested": input.Count,
			"issued":    len(result.Issued),
			"failed":    len(result.Failures),
		},
	})
}

func actorOrAnonymous(actor string) string {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return "anonymous"
	}
	return actor
}
