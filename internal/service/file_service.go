package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/secureshare/portal/internal/domain"
	"github.com/secureshare/portal/internal/events"
	"github.com/secureshare/portal/internal/repository"
	"github.com/secureshare/portal/internal/storage"
	apperrors "github.com/secureshare/portal/pkg/util/errorutil"
)

const uploadWorkers = 4

// UploadStatus is the terminal state of one file in an upload batch.
type UploadStatus string

const (
	UploadSucceeded UploadStatus = "success"
	UploadRejected  UploadStatus = "rejected"
	UploadFailed    UploadStatus = "failed"
)

// UploadInput is one incoming blob with what the caller declared about it.
type UploadInput struct {
	ClientRef  string
	Descriptor domain.FileDescriptor
	Content    io.Reader
}

// UploadResult carries the outcome for a single UploadInput.
type UploadResult struct {
	ClientRef string
	FileName  string
	Status    UploadStatus
	File      *domain.FileRecord
	Err       error
}

// FileService is the registry of uploaded files.
type FileService struct {
	files      repository.FileRepository
	blobs      storage.BlobStore
	dispatcher events.Dispatcher
	logger     *zap.Logger
	maxBytes   int64
	now        func() time.Time
}

// FileDependencies bundles collaborators for the file service.
type FileDependencies struct {
	FileRepo   repository.FileRepository
	Blobs      storage.BlobStore
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	MaxBytes   int64
}

// NewFileService constructs the service.
func NewFileService(deps FileDependencies) *FileService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileService{
		files:      deps.FileRepo,
		blobs:      deps.Blobs,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		maxBytes:   deps.MaxBytes,
		now:        time.Now,
	}
}

// List returns every record, newest upload first.
func (s *FileService) List(ctx context.Context) ([]domain.FileRecord, error) {
	files, err := s.files.List(ctx)
	if err != nil {
		return nil, apperrors.NewTransientIOError("file registry", err)
	}
	return files, nil
}

// Get resolves a record by id.
func (s *FileService) Get(ctx context.Context, id string) (*domain.FileRecord, error) {
	file, err := s.files.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("file", map[string]any{"id": id})
	}
	if err != nil {
		return nil, apperrors.NewTransientIOError("file registry", err)
	}
	return file, nil
}

// Upload validates and admits a single file.
func (s *FileService) Upload(ctx context.Context, uploader domain.Identity, in UploadInput) (*domain.FileRecord, error) {
	d := in.Descriptor
	if err := s.validate(d); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	file := &domain.FileRecord{
		ID:         uuid.NewString(),
		Name:       d.Name,
		MimeType:   domain.CanonicalMimeType(d),
		SizeBytes:  d.Size,
		UploadedBy: uploader.Email,
		UploadedAt: now,
	}
	file.StorageKey = storageKey(now, file.ID)

	if err := s.blobs.Put(ctx, file.StorageKey, in.Content, d.Size, file.MimeType); err != nil {
		return nil, apperrors.NewTransientIOError("file storage", err)
	}
	if err := s.files.Create(ctx, file); err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), file.StorageKey); delErr != nil {
			s.logger.Warn("stored blob without record", zap.String("storage_key", file.StorageKey), zap.Error(delErr))
		}
		return nil, apperrors.NewTransientIOError("file registry", err)
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventFileUploaded,
		SubjectID: file.ID,
		Actor:     events.ActorFor(&uploader),
		Payload:   events.FileUploadedPayload{Name: file.Name, MimeType: file.MimeType, SizeBytes: file.SizeBytes},
	}, now)
	return file, nil
}

// UploadBatch uploads every input independently. A rejected or failed file
// never affects the others; results are returned in input order.
func (s *FileService) UploadBatch(ctx context.Context, uploader domain.Identity, inputs []UploadInput) []UploadResult {
	results := make([]UploadResult, len(inputs))
	sem := make(chan struct{}, uploadWorkers)
	var wg sync.WaitGroup

	for i := range inputs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = s.uploadOne(ctx, uploader, inputs[i])
		}(i)
	}
	wg.Wait()
	return results
}

func (s *FileService) uploadOne(ctx context.Context, uploader domain.Identity, in UploadInput) UploadResult {
	result := UploadResult{ClientRef: in.ClientRef, FileName: in.Descriptor.Name}
	file, err := s.Upload(ctx, uploader, in)
	switch {
	case err == nil:
		result.Status = UploadSucceeded
		result.File = file
	case apperrors.HasCode(err, apperrors.CodeValidation):
		result.Status = UploadRejected
		result.Err = err
	default:
		result.Status = UploadFailed
		result.Err = err
	}
	return result
}

// RecordDownload increments the download counter. Unknown ids and store
// failures are logged and otherwise ignored.
func (s *FileService) RecordDownload(ctx context.Context, fileID string) {
	found, err := s.files.IncrementDownloadCount(ctx, fileID)
	if err != nil {
		s.logger.Warn("record download failed", zap.String("file_id", fileID), zap.Error(err))
		return
	}
	if !found {
		s.logger.Debug("record download for unknown file", zap.String("file_id", fileID))
	}
}

// Open streams the stored content for file.
func (s *FileService) Open(ctx context.Context, file *domain.FileRecord) (io.ReadCloser, int64, error) {
	rc, size, err := s.blobs.Get(ctx, file.StorageKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, 0, apperrors.NewNotFound("file content", map[string]any{"id": file.ID})
	}
	if err != nil {
		return nil, 0, apperrors.NewTransientIOError("file storage", err)
	}
	return rc, size, nil
}

func (s *FileService) validate(d domain.FileDescriptor) error {
	if strings.TrimSpace(d.Name) == "" {
		return apperrors.NewValidationError("file name required", nil)
	}
	if d.Size < 0 {
		return apperrors.NewValidationError("invalid file size", map[string]any{"name": d.Name})
	}
	if s.maxBytes > 0 && d.Size > s.maxBytes {
		return apperrors.NewValidationError("file too large", map[string]any{"name": d.Name, "max_bytes": s.maxBytes})
	}
	if !domain.AllowedUpload(d) {
		return apperrors.NewValidationError("only .pptx, .docx and .xlsx files are allowed", map[string]any{
			"name":      d.Name,
			"mime_type": d.MimeType,
		})
	}
	return nil
}

func storageKey(at time.Time, id string) string {
	return fmt.Sprintf("files/%04d/%02d/%02d/%s", at.Year(), at.Month(), at.Day(), id)
}
