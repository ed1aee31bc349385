package domain

import (
	"strings"
	"time"
)

type AttachmentKind string

const (
	AttachmentKindImage    AttachmentKind = "image"
	AttachmentKindDocument AttachmentKind = "document"
	AttachmentKindVideo    AttachmentKind = "video"
	AttachmentKindAudio    AttachmentKind = "audio"
)

// Attachment is an immutable descriptor of an uploaded blob.
type Attachment struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Kind       AttachmentKind `json:"kind"`
	Size       int64          `json:"size"`
	URL        string         `json:"url"`
	MimeType   string         `json:"mimeType"`
	UploadedAt time.Time      `json:"uploadedAt"`
	UploadedBy string         `json:"uploadedBy"`
}

// KindFromMIME maps a MIME type onto the coarse attachment kind shown in the
// UI. Anything that is not image, video, or audio counts as a document.
func KindFromMIME(mimeType string) AttachmentKind {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return AttachmentKindImage
	case strings.HasPrefix(mimeType, "video/"):
		return AttachmentKindVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return AttachmentKindAudio
	default:
		return AttachmentKindDocument
	}
}
