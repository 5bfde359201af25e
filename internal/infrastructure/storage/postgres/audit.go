// Package postgres provides PostgreSQL infrastructure components.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"retailcore/internal/core/id"
	"retailcore/internal/domain/ledger"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

const entryArchiveTable = "ledger_entry_archive"

// ArchivedEntry is a snapshot of a ledger entry taken at deletion time.
// Deleted entries leave aggregate recomputation but stay auditable here.
type ArchivedEntry struct {
	ID              id.ID           `db:"id" json:"id"`
	EntryID         id.ID           `db:"entry_id" json:"entryId"`
	ProductID       id.ID           `db:"product_id" json:"productId"`
	Snapshot        json.RawMessage `db:"snapshot" json:"snapshot"`
	CompressionAlgo CompressionAlgo `db:"compression_algo" json:"-"`
	DeletedBy       string          `db:"deleted_by" json:"deletedBy"`
	DeletedAt       time.Time       `db:"deleted_at" json:"deletedAt"`
}

// Compile-time interface check.
var _ ledger.Archiver = (*EntryArchive)(nil)

// EntryArchive implements ledger.Archiver. Snapshots above the threshold are
// zstd-compressed before insert.
type EntryArchive struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewEntryArchive creates a new entry archive.
func NewEntryArchive(txManager *TxManager) (*EntryArchive, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &EntryArchive{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 1024,
	}, nil
}

// ArchiveEntry stores a full snapshot of the entry before deletion.
func (a *EntryArchive) ArchiveEntry(ctx context.Context, entry *ledger.Entry, deletedBy string) error {
	snapshot, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry snapshot: %w", err)
	}

	algo := CompressionNone
	if len(snapshot) > a.compressThreshold {
		snapshot = a.encoder.EncodeAll(snapshot, nil)
		algo = CompressionZstd
	}

	const sql = `
		INSERT INTO ledger_entry_archive (
			id, entry_id, product_id, snapshot, compression_algo, deleted_by, deleted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = a.txManager.GetQuerier(ctx).Exec(ctx, sql,
		id.New(), entry.ID, entry.ProductID, snapshot, algo, deletedBy, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert archived entry: %w", err)
	}
	return nil
}

// ListArchived returns archived entries for a product, newest first.
func (a *EntryArchive) ListArchived(ctx context.Context, productID id.ID, limit int) ([]ArchivedEntry, error) {
	const sql = `
		SELECT id, entry_id, product_id, snapshot, compression_algo, deleted_by, deleted_at
		FROM ledger_entry_archive
		WHERE product_id = $1
		ORDER BY deleted_at DESC
		LIMIT $2
	`

	rows, err := a.txManager.GetQuerier(ctx).Query(ctx, sql, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}
	defer rows.Close()

	var entries []ArchivedEntry
	for rows.Next() {
		var e ArchivedEntry
		if err := rows.Scan(&e.ID, &e.EntryID, &e.ProductID, &e.Snapshot,
			&e.CompressionAlgo, &e.DeletedBy, &e.DeletedAt); err != nil {
			return nil, fmt.Errorf("scan archived entry: %w", err)
		}

		if e.CompressionAlgo == CompressionZstd && len(e.Snapshot) > 0 {
			decompressed, err := a.decoder.DecodeAll(e.Snapshot, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress snapshot: %w", err)
			}
			e.Snapshot = decompressed
			e.CompressionAlgo = CompressionNone
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}
