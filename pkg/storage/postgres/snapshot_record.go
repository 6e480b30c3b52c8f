package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SnapshotRecord is one aggregation cycle.
type SnapshotRecord struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TakenAt       time.Time       `gorm:"not null;index:idx_snapshot_taken_at"`
	TotalValue    decimal.Decimal `gorm:"type:numeric;not null"`
	QuoteAsset    string          `gorm:"type:varchar(16);not null"`
	FailedSources string          `gorm:"type:text"` // comma separated silo names
	Degraded      string          `gorm:"type:text"` // comma separated unread parts, e.g. "Simple Earn/Locked"
	Complete      bool            `gorm:"not null"`

	Holdings []HoldingRecord `gorm:"foreignKey:SnapshotID;constraint:OnDelete:CASCADE"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

func (SnapshotRecord) TableName() string {
	return "portfolio_snapshot"
}

// HoldingRecord is one holding of a snapshot. Rank preserves the value order.
type HoldingRecord struct {
	ID         uint      `gorm:"primaryKey"`
	SnapshotID uuid.UUID `gorm:"type:uuid;not null;index:idx_holding_snapshot_asset,unique"`
	Rank       int       `gorm:"not null"`

	Asset   string `gorm:"type:varchar(32);not null;index:idx_holding_snapshot_asset,unique;index:idx_holding_asset"`
	Source  string `gorm:"type:varchar(32);not null"`
	Subtype string `gorm:"type:varchar(16);not null"`

	Quantity  decimal.Decimal `gorm:"type:numeric;not null"`
	Price     decimal.Decimal `gorm:"type:numeric;not null"`
	Value     decimal.Decimal `gorm:"type:numeric;not null"`
	YieldRate decimal.Decimal `gorm:"type:numeric;not null"`
}

func (HoldingRecord) TableName() string {
	return "portfolio_holding"
}
