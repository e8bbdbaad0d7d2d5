package dto

import (
	"time"

	"github.com/secureshare/portal/internal/domain"
)

// ErrorBody mirrors the error envelope used for whole-request failures.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UploadResultItem is the per-file outcome of a batch upload.
type UploadResultItem struct {
	ClientRef string             `json:"clientRef,omitempty"`
	Name      string             `json:"name"`
	Status    string             `json:"status"`
	File      *domain.FileRecord `json:"file,omitempty"`
	Error     *ErrorBody         `json:"error,omitempty"`
}

// UploadBatchResponse summarises a batch upload.
type UploadBatchResponse struct {
	Results   []UploadResultItem `json:"results"`
	Succeeded int                `json:"succeeded"`
	Rejected  int                `json:"rejected"`
	Failed    int                `json:"failed"`
}

// LinkResponse is an issued download grant.
type LinkResponse struct {
	FileID        string    `json:"fileId"`
	URL           string    `json:"url"`
	ExpiresAt     time.Time `json:"expiresAt"`
	TimeRemaining string    `json:"timeRemaining"`
	Expired       bool      `json:"expired"`
}
