package handlers

import (
	"mime/multipart"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/secureshare/portal/internal/api/dto"
	"github.com/secureshare/portal/internal/auth"
	"github.com/secureshare/portal/internal/domain"
	"github.com/secureshare/portal/internal/service"
	apperrors "github.com/secureshare/portal/pkg/util/errorutil"
)

// uploadField is the multipart part name carrying files.
const uploadField = "files"

// FilesHandler serves the file registry and link issuance.
type FilesHandler struct {
	files *service.FileService
	links *service.LinkService
}

// NewFilesHandler constructs handler.
func NewFilesHandler(files *service.FileService, links *service.LinkService) *FilesHandler {
	return &FilesHandler{files: files, links: links}
}

// List GET /files.
func (h *FilesHandler) List(c *fiber.Ctx) error {
	files, err := h.files.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": files})
}

// Upload POST /files. Each part is accepted or rejected on its own; the
// status code summarises the batch.
func (h *FilesHandler) Upload(c *fiber.Ctx) error {
	sess, ok := auth.SessionFromContext(c)
	if !ok || sess.Identity == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	form, err := c.MultipartForm()
	if err != nil {
		return apperrors.NewValidationError("multipart form required", nil)
	}
	headers := form.File[uploadField]
	if len(headers) == 0 {
		return apperrors.NewValidationError("no files provided", map[string]any{"field": uploadField})
	}

	inputs := make([]service.UploadInput, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return apperrors.NewValidationError("unreadable file part", map[string]any{"name": fh.Filename})
		}
		opened = append(opened, f)
		inputs = append(inputs, service.UploadInput{
			ClientRef: fh.Filename,
			Descriptor: domain.FileDescriptor{
				Name:     fh.Filename,
				MimeType: fh.Header.Get(fiber.HeaderContentType),
				Size:     fh.Size,
			},
			Content: f,
		})
	}

	results := h.files.UploadBatch(c.UserContext(), *sess.Identity, inputs)
	resp := dto.UploadBatchResponse{Results: make([]dto.UploadResultItem, 0, len(results))}
	for _, r := range results {
		item := dto.UploadResultItem{
			ClientRef: r.ClientRef,
			Name:      r.FileName,
			Status:    string(r.Status),
			File:      r.File,
		}
		switch r.Status {
		case service.UploadSucceeded:
			resp.Succeeded++
		case service.UploadRejected:
			resp.Rejected++
		default:
			resp.Failed++
		}
		if r.Err != nil {
			de := apperrors.ToDomainError(r.Err)
			item.Error = &dto.ErrorBody{Code: de.Code, Message: de.Message}
		}
		resp.Results = append(resp.Results, item)
	}

	return c.Status(batchStatus(resp)).JSON(fiber.Map{"data": resp})
}

func batchStatus(resp dto.UploadBatchResponse) int {
	switch {
	case resp.Succeeded > 0:
		return http.StatusCreated
	case resp.Failed > 0:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

// IssueLink POST /files/:id/link.
func (h *FilesHandler) IssueLink(c *fiber.Ctx) error {
	sess, _ := auth.SessionFromContext(c)
	grant, err := h.links.Issue(c.UserContext(), sess, c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": h.linkResponse(grant)})
}

// CurrentLink GET /files/:id/link.
func (h *FilesHandler) CurrentLink(c *fiber.Ctx) error {
	sess, _ := auth.SessionFromContext(c)
	grant, err := h.links.Current(c.UserContext(), sess, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.linkResponse(grant)})
}

func (h *FilesHandler) linkResponse(grant *domain.DownloadGrant) dto.LinkResponse {
	remaining := h.links.Remaining(*grant)
	return dto.LinkResponse{
		FileID:        grant.FileID,
		URL:           grant.URL,
		ExpiresAt:     grant.ExpiresAt,
		TimeRemaining: remaining.String(),
		Expired:       remaining.Expired,
	}
}
