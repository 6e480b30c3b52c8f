package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cryptofolio/internal/portfolio"

	"gorm.io/gorm"
)

// ErrNoSnapshot is returned when no snapshot has been stored yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

// SaveSnapshot stores the snapshot and its holdings in one transaction.
func (p *PostgresClient) SaveSnapshot(ctx context.Context, quote string, s *portfolio.Snapshot) error {
	record := ToSnapshotRecord(quote, s)

	return p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Holdings").Create(record).Error; err != nil {
			return fmt.Errorf("insert snapshot %s: %w", record.ID, err)
		}
		if len(record.Holdings) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(record.Holdings, 100).Error; err != nil {
			return fmt.Errorf("insert holdings of %s: %w", record.ID, err)
		}
		return nil
	})
}

// LatestSnapshot loads the most recent snapshot with its holdings in rank order.
func (p *PostgresClient) LatestSnapshot(ctx context.Context) (*SnapshotRecord, error) {
	var record SnapshotRecord
	err := p.DB.WithContext(ctx).
		Preload("Holdings", func(db *gorm.DB) *gorm.DB { return db.Order("rank") }).
		Order("taken_at DESC").
		First(&record).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// DeleteSnapshotsBefore prunes history; holdings go with their snapshot.
func (p *PostgresClient) DeleteSnapshotsBefore(ctx context.Context, before time.Time) (int64, error) {
	tx := p.DB.WithContext(ctx).
		Where("taken_at < ?", before).
		Delete(&SnapshotRecord{})
	return tx.RowsAffected, tx.Error
}

// ToSnapshotRecord converts a snapshot into its DB rows.
func ToSnapshotRecord(quote string, s *portfolio.Snapshot) *SnapshotRecord {
	failed := make([]string, len(s.FailedSources))
	for i, src := range s.FailedSources {
		failed[i] = src.String()
	}

	record := &SnapshotRecord{
		ID:            s.ID,
		TakenAt:       s.TakenAt,
		TotalValue:    s.TotalValue(),
		QuoteAsset:    quote,
		FailedSources: strings.Join(failed, ","),
		Degraded:      strings.Join(s.Degraded, ","),
		Complete:      s.Complete(),
		Holdings:      make([]HoldingRecord, len(s.Holdings)),
	}

	for i, h := range s.Holdings {
		record.Holdings[i] = HoldingRecord{
			SnapshotID: s.ID,
			Rank:       i + 1,
			Asset:      h.Asset,
			Source:     h.Source.String(),
			Subtype:    h.Subtype.String(),
			Quantity:   h.Quantity,
			Price:      h.Price,
			Value:      h.Value(),
			YieldRate:  h.YieldRate,
		}
	}
	return record
}
