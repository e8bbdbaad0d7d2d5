package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/secureshare/portal/internal/service"
)

// DownloadHandler redeems download grants.
type DownloadHandler struct {
	links *service.LinkService
}

// NewDownloadHandler constructs handler.
func NewDownloadHandler(links *service.LinkService) *DownloadHandler {
	return &DownloadHandler{links: links}
}

// Download GET /download/:token streams the granted file as an attachment.
func (h *DownloadHandler) Download(c *fiber.Ctx) error {
	red, err := h.links.Redeem(c.UserContext(), c.Params("token"))
	if err != nil {
		return err
	}

	c.Attachment(red.File.Name)
	c.Set(fiber.HeaderContentType, red.File.MimeType)
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.SendStream(red.Content, int(red.Size))
}
