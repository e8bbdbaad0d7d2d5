package domain

import (
	"strings"
	"time"
)

// Office Open XML content types accepted for upload.
const (
	MimePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var allowedMimeTypes = map[string]struct{}{
	MimePPTX: {},
	MimeDOCX: {},
	MimeXLSX: {},
}

var allowedSuffixes = []string{".pptx", ".docx", ".xlsx"}

// FileRecord is the metadata for one uploaded document. DownloadCount is the
// only field that changes after creation.
type FileRecord struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	MimeType      string    `json:"mimeType"`
	SizeBytes     int64     `json:"sizeBytes"`
	UploadedBy    string    `json:"uploadedBy"`
	UploadedAt    time.Time `json:"uploadedAt"`
	DownloadCount int64     `json:"downloadCount"`
	StorageKey    string    `json:"-"`
}

// FileDescriptor is what a caller declares about an incoming blob.
type FileDescriptor struct {
	Name     string
	MimeType string
	Size     int64
}

// AllowedUpload accepts a descriptor when its declared content type is one
// of the Office Open XML types or its name ends in .pptx, .docx or .xlsx.
// The suffix match is case-sensitive.
func AllowedUpload(d FileDescriptor) bool {
	if _, ok := allowedMimeTypes[d.MimeType]; ok {
		return true
	}
	for _, suffix := range allowedSuffixes {
		if strings.HasSuffix(d.Name, suffix) {
			return true
		}
	}
	return false
}

var suffixMimeTypes = map[string]string{
	".pptx": MimePPTX,
	".docx": MimeDOCX,
	".xlsx": MimeXLSX,
}

// CanonicalMimeType returns the declared type when it is an accepted Office
// type, otherwise the type implied by the filename suffix.
func CanonicalMimeType(d FileDescriptor) string {
	if _, ok := allowedMimeTypes[d.MimeType]; ok {
		return d.MimeType
	}
	for suffix, mime := range suffixMimeTypes {
		if strings.HasSuffix(d.Name, suffix) {
			return mime
		}
	}
	return d.MimeType
}
