package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wisefido-rfid/internal/staging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 上传状态
const (
	BatchStatusSuccess = "success"
	BatchStatusFailed  = "failed"
)

// UploadBatch 一次上传的记录
type UploadBatch struct {
	BatchID    string
	SessionID  string
	Mode       string
	Username   string
	Status     string
	Error      string
	UploadedAt time.Time
	Items      []staging.UploadItem
	ItemCount  int // 查询时由 rfid_upload_batches.item_count 填充
}

// BatchRepository 上传历史仓库
type BatchRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBatchRepository 创建上传历史仓库
func NewBatchRepository(db *sql.DB, logger *zap.Logger) *BatchRepository {
	return &BatchRepository{
		db:     db,
		logger: logger,
	}
}

const schemaBatches = `
	CREATE TABLE IF NOT EXISTS rfid_upload_batches (
		batch_id    UUID PRIMARY KEY,
		session_id  TEXT NOT NULL,
		mode        TEXT NOT NULL,
		username    TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL,
		error       TEXT NOT NULL DEFAULT '',
		item_count  INTEGER NOT NULL,
		uploaded_at TIMESTAMPTZ NOT NULL
	)
`

const schemaItems = `
	CREATE TABLE IF NOT EXISTS rfid_upload_items (
		batch_id     UUID NOT NULL REFERENCES rfid_upload_batches(batch_id) ON DELETE CASCADE,
		chip_id      TEXT NOT NULL,
		category_id  TEXT,
		longitude    DOUBLE PRECISION,
		latitude     DOUBLE PRECISION,
		address      TEXT,
		PRIMARY KEY (batch_id, chip_id)
	)
`

// EnsureSchema 建表（幂等）
func (r *BatchRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{schemaBatches, schemaItems} {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// SaveBatch 在一个事务内写入批次和明细，BatchID 为空时自动生成
func (r *BatchRepository) SaveBatch(ctx context.Context, batch *UploadBatch) error {
	if batch == nil {
		return fmt.Errorf("batch is required")
	}
	if batch.BatchID == "" {
		batch.BatchID = uuid.New().String()
	}
	if batch.UploadedAt.IsZero() {
		batch.UploadedAt = time.Now()
	}
	batch.ItemCount = len(batch.Items)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rfid_upload_batches (
			batch_id, session_id, mode, username, status, error, item_count, uploaded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		batch.BatchID,
		batch.SessionID,
		batch.Mode,
		batch.Username,
		batch.Status,
		batch.Error,
		batch.ItemCount,
		batch.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert upload batch: %w", err)
	}

	for _, item := range batch.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO rfid_upload_items (
				batch_id, chip_id, category_id, longitude, latitude, address
			) VALUES ($1, $2, $3, $4, $5, $6)
		`,
			batch.BatchID,
			item.ChipID,
			nullString(item.PipelineCategoryID),
			item.Longitude,
			item.Latitude,
			nullString(item.Address),
		)
		if err != nil {
			return fmt.Errorf("failed to insert upload item %s: %w", item.ChipID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upload batch: %w", err)
	}

	r.logger.Debug("Saved upload batch",
		zap.String("batch_id", batch.BatchID),
		zap.String("status", batch.Status),
		zap.Int("items", batch.ItemCount),
	)
	return nil
}

// RecentBatches 最近的上传记录（不含明细），按时间倒序
func (r *BatchRepository) RecentBatches(ctx context.Context, limit int) ([]*UploadBatch, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT batch_id, session_id, mode, username, status, error, item_count, uploaded_at
		FROM rfid_upload_batches
		ORDER BY uploaded_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query upload batches: %w", err)
	}
	defer rows.Close()

	var batches []*UploadBatch
	for rows.Next() {
		b := &UploadBatch{}
		if err := rows.Scan(
			&b.BatchID,
			&b.SessionID,
			&b.Mode,
			&b.Username,
			&b.Status,
			&b.Error,
			&b.ItemCount,
			&b.UploadedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan upload batch: %w", err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate upload batches: %w", err)
	}
	return batches, nil
}

// ChipUpload 某个芯片在一次上传中的记录
type ChipUpload struct {
	BatchID    string
	Mode       string
	Username   string
	Status     string
	UploadedAt time.Time
	CategoryID string
	Longitude  *float64
	Latitude   *float64
	Address    string
}

// ChipHistory 按芯片 TID 查询上传记录（不区分大小写），按时间倒序
func (r *BatchRepository) ChipHistory(ctx context.Context, chipID string) ([]*ChipUpload, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT b.batch_id, b.mode, b.username, b.status, b.uploaded_at,
		       i.category_id, i.longitude, i.latitude, i.address
		FROM rfid_upload_items i
		JOIN rfid_upload_batches b ON b.batch_id = i.batch_id
		WHERE UPPER(i.chip_id) = UPPER($1)
		ORDER BY b.uploaded_at DESC
	`, chipID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chip history: %w", err)
	}
	defer rows.Close()

	var uploads []*ChipUpload
	for rows.Next() {
		u := &ChipUpload{}
		var category, address sql.NullString
		var lng, lat sql.NullFloat64
		if err := rows.Scan(
			&u.BatchID,
			&u.Mode,
			&u.Username,
			&u.Status,
			&u.UploadedAt,
			&category,
			&lng,
			&lat,
			&address,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chip history: %w", err)
		}
		u.CategoryID = category.String
		u.Address = address.String
		if lng.Valid && lat.Valid {
			u.Longitude = &lng.Float64
			u.Latitude = &lat.Float64
		}
		uploads = append(uploads, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chip history: %w", err)
	}
	return uploads, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
