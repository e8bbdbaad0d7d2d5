package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secureshare/portal/internal/config"
	"github.com/secureshare/portal/internal/domain"
	"github.com/secureshare/portal/internal/events"
	"github.com/secureshare/portal/internal/storage"
	apperrors "github.com/secureshare/portal/pkg/util/errorutil"
)

func TestUploadBatch_MixedAcceptance(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	results := h.files.UploadBatch(ctx, opsIdentity(), []UploadInput{
		upload("report.docx", domain.MimeDOCX, "docx-bytes"),
		upload("setup.exe", "application/x-msdownload", "MZ"),
	})
	require.Len(t, results, 2)

	assert.Equal(t, UploadSucceeded, results[0].Status)
	require.NotNil(t, results[0].File)
	assert.Equal(t, "report.docx", results[0].File.Name)
	assert.Equal(t, "ops@company.com", results[0].File.UploadedBy)
	assert.Zero(t, results[0].File.DownloadCount)

	assert.Equal(t, UploadRejected, results[1].Status)
	assert.Equal(t, "setup.exe", results[1].FileName)
	requireCode(t, results[1].Err, apperrors.CodeValidation)

	files, err := h.files.List(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, results[0].File.ID, files[0].ID)
	assert.Equal(t, []events.EventType{events.EventFileUploaded}, h.dispatcher.types())
}

func TestUpload_SuffixOverridesGenericMime(t *testing.T) {
	h := newHarness(t)

	file, err := h.files.Upload(context.Background(), opsIdentity(), upload("budget.xlsx", "application/octet-stream", "sheet"))
	require.NoError(t, err)
	assert.Equal(t, domain.MimeXLSX, file.MimeType)
	assert.Equal(t, int64(5), file.SizeBytes)
	assert.True(t, strings.HasPrefix(file.StorageKey, "files/"))
	assert.True(t, strings.HasSuffix(file.StorageKey, file.ID))
}

func TestUpload_Rejections(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Upload.MaxBytes = 4 })
	ctx := context.Background()

	cases := map[string]UploadInput{
		"empty name":      upload("", domain.MimePPTX, "x"),
		"upper suffix":    upload("DECK.PPTX", "application/octet-stream", "x"),
		"too large":       upload("deck.pptx", domain.MimePPTX, "12345"),
		"plain text file": upload("notes.txt", "text/plain", "x"),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.files.Upload(ctx, opsIdentity(), in)
			requireCode(t, err, apperrors.CodeValidation)
		})
	}

	files, err := h.files.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestUploadBatch_StorageFailureIsPerFile(t *testing.T) {
	h := newHarness(t)
	h.files.blobs = failingBlobStore{}

	results := h.files.UploadBatch(context.Background(), opsIdentity(), []UploadInput{
		upload("a.pptx", domain.MimePPTX, "a"),
		upload("b.exe", "application/octet-stream", "b"),
	})
	require.Len(t, results, 2)
	assert.Equal(t, UploadFailed, results[0].Status)
	requireCode(t, results[0].Err, apperrors.CodeTransientIO)
	assert.Equal(t, UploadRejected, results[1].Status)

	files, err := h.files.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestUpload_RecordFailureRemovesStoredBlob(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	blobs := &keyRecordingBlobStore{BlobStore: h.blobs}
	h.files.blobs = blobs
	h.files.files = failingFileRepo{FileRepository: h.fileRepo}

	_, err := h.files.Upload(ctx, opsIdentity(), upload("plan.docx", domain.MimeDOCX, "draft"))
	requireCode(t, err, apperrors.CodeTransientIO)

	require.Len(t, blobs.keys, 1)
	_, _, err = h.blobs.Get(ctx, blobs.keys[0])
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestList_NewestFirst(t *testing.T) {
	h := newHarness(t)
	first := h.seedFile(t, "first.docx", "1")
	h.clock.Advance(time.Minute)
	second := h.seedFile(t, "second.docx", "2")

	files, err := h.files.List(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, second.ID, files[0].ID)
	assert.Equal(t, first.ID, files[1].ID)
}

func TestGet_UnknownFile(t *testing.T) {
	h := newHarness(t)
	_, err := h.files.Get(context.Background(), "missing")
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestRecordDownload(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	file := h.seedFile(t, "deck.pptx", "slides")

	h.files.RecordDownload(ctx, file.ID)
	h.files.RecordDownload(ctx, file.ID)
	h.files.RecordDownload(ctx, "unknown")

	got, err := h.files.Get(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.DownloadCount)

	files, err := h.files.List(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestOpen_ReturnsStoredContent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	file := h.seedFile(t, "deck.pptx", "slides")

	rc, size, err := h.files.Open(ctx, file)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "slides", string(body))
	assert.Equal(t, int64(6), size)
}
