package main

import (
	"encoding/json"
	"io"
	"time"

	"cryptofolio/internal/portfolio"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type holdingView struct {
	Asset     string          `json:"asset"`
	Source    string          `json:"source"`
	Subtype   string          `json:"subtype"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Value     decimal.Decimal `json:"value"`
	YieldRate decimal.Decimal `json:"yield_rate"`
}

// snapshotView is the JSON form of a snapshot, with the derived totals.
type snapshotView struct {
	ID            uuid.UUID       `json:"id"`
	TakenAt       time.Time       `json:"taken_at"`
	QuoteAsset    string          `json:"quote_asset"`
	TotalValue    decimal.Decimal `json:"total_value"`
	CountBySource map[string]int  `json:"count_by_source"`
	Complete      bool            `json:"complete"`
	FailedSources []string        `json:"failed_sources,omitempty"`
	Degraded      []string        `json:"degraded,omitempty"`
	Holdings      []holdingView   `json:"holdings"`
}

func newSnapshotView(quote string, s *portfolio.Snapshot) snapshotView {
	v := snapshotView{
		ID:            s.ID,
		TakenAt:       s.TakenAt,
		QuoteAsset:    quote,
		TotalValue:    s.TotalValue(),
		CountBySource: make(map[string]int),
		Complete:      s.Complete(),
		Degraded:      s.Degraded,
		Holdings:      make([]holdingView, len(s.Holdings)),
	}
	for src, n := range s.CountBySource() {
		v.CountBySource[src.String()] = n
	}
	for _, src := range s.FailedSources {
		v.FailedSources = append(v.FailedSources, src.String())
	}
	for i, h := range s.Holdings {
		v.Holdings[i] = holdingView{
			Asset:     h.Asset,
			Source:    h.Source.String(),
			Subtype:   h.Subtype.String(),
			Quantity:  h.Quantity,
			Price:     h.Price,
			Value:     h.Value(),
			YieldRate: h.YieldRate,
		}
	}
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
