package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tenantry/message-service/internal/domain"
	"github.com/tenantry/message-service/internal/logger"
	"github.com/tenantry/message-service/internal/repository"
	"github.com/tenantry/message-service/internal/storage"
)

// DefaultMaxAttachmentSize bounds a single upload (10 MiB).
const DefaultMaxAttachmentSize = 10 << 20

type AttachmentService struct {
	repos   *repository.Repositories
	store   storage.BlobStore
	maxSize int64
	log     zerolog.Logger
}

func NewAttachmentService(repos *repository.Repositories, store storage.BlobStore) *AttachmentService {
	return &AttachmentService{
		repos:   repos,
		store:   store,
		maxSize: DefaultMaxAttachmentSize,
		log:     logger.Module("attachment-service"),
	}
}

// Upload stores the blob, sniffs its MIME type, and returns the immutable
// descriptor that messages embed.
func (s *AttachmentService) Upload(ctx context.Context, name string, r io.Reader, uploadedBy string) (*domain.Attachment, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("%w: attachment exceeds %d bytes", domain.ErrValidation, s.maxSize)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: attachment is empty", domain.ErrValidation)
	}

	mtype := mimetype.Detect(data)

	id := uuid.New().String()
	blobName := id + filepath.Ext(name)
	url, size, err := s.store.Save(ctx, blobName, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	attachment := &domain.Attachment{
		ID:         id,
		Name:       name,
		Kind:       domain.KindFromMIME(mtype.String()),
		Size:       size,
		URL:        url,
		MimeType:   mtype.String(),
		UploadedAt: time.Now().UTC(),
		UploadedBy: uploadedBy,
	}

	if err := s.repos.Attachments.Create(ctx, attachment); err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("attachment_id", id).
		Str("mime_type", attachment.MimeType).
		Int64("size", size).
		Msg("attachment uploaded")
	return attachment, nil
}

func (s *AttachmentService) Get(ctx context.Context, id string) (*domain.Attachment, error) {
	attachment, err := s.repos.Attachments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if attachment == nil {
		return nil, fmt.Errorf("attachment %w", domain.ErrNotFound)
	}
	return attachment, nil
}
