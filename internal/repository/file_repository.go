package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/secureshare/portal/internal/domain"
)

// FileRepository persists file record metadata. Records are never deleted.
type FileRepository interface {
	Create(ctx context.Context, file *domain.FileRecord) error
	// List returns records newest upload first.
	List(ctx context.Context) ([]domain.FileRecord, error)
	GetByID(ctx context.Context, id string) (*domain.FileRecord, error)
	// IncrementDownloadCount atomically bumps the counter and reports whether
	// the record exists.
	IncrementDownloadCount(ctx context.Context, id string) (bool, error)
}

type fileRepository struct {
	pool *pgxpool.Pool
}

// NewFileRepository constructs repository.
func NewFileRepository(pool *pgxpool.Pool) FileRepository {
	return &fileRepository{pool: pool}
}

func (r *fileRepository) Create(ctx context.Context, file *domain.FileRecord) error {
	const query = `
        INSERT INTO files (id, name, mime_type, size_bytes, uploaded_by, uploaded_at, download_count, storage_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.pool.Exec(ctx, query,
		file.ID,
		file.Name,
		file.MimeType,
		file.SizeBytes,
		file.UploadedBy,
		file.UploadedAt,
		file.DownloadCount,
		file.StorageKey,
	)
	return mapWriteError(err)
}

func (r *fileRepository) List(ctx context.Context) ([]domain.FileRecord, error) {
	const query = `
        SELECT id, name, mime_type, size_bytes, uploaded_by, uploaded_at, download_count, storage_key
        FROM files ORDER BY uploaded_at DESC, seq DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.FileRecord, 0)
	for rows.Next() {
		var file domain.FileRecord
		if err := rows.Scan(
			&file.ID,
			&file.Name,
			&file.MimeType,
			&file.SizeBytes,
			&file.UploadedBy,
			&file.UploadedAt,
			&file.DownloadCount,
			&file.StorageKey,
		); err != nil {
			return nil, err
		}
		result = append(result, file)
	}
	return result, rows.Err()
}

func (r *fileRepository) GetByID(ctx context.Context, id string) (*domain.FileRecord, error) {
	const query = `
        SELECT id, name, mime_type, size_bytes, uploaded_by, uploaded_at, download_count, storage_key
        FROM files WHERE id=$1`
	var file domain.FileRecord
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&file.ID,
		&file.Name,
		&file.MimeType,
		&file.SizeBytes,
		&file.UploadedBy,
		&file.UploadedAt,
		&file.DownloadCount,
		&file.StorageKey,
	); err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *fileRepository) IncrementDownloadCount(ctx context.Context, id string) (bool, error) {
	const query = `
        UPDATE files SET download_count = download_count + 1
        WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}
