package portfolio

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Snapshot is the result of one aggregation cycle, handed to the sink.
type Snapshot struct {
	ID       uuid.UUID
	TakenAt  time.Time
	Holdings []Holding // sorted by value, descending
	// FailedSources lists silos that could not be read this cycle.
	FailedSources []Source
	// Degraded lists parts of contributing sources that could not be read,
	// e.g. "Simple Earn/Locked".
	Degraded []string
}

// Complete reports whether every source was read in full.
func (s *Snapshot) Complete() bool {
	return len(s.FailedSources) == 0 && len(s.Degraded) == 0
}

func (s *Snapshot) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for _, h := range s.Holdings {
		total = total.Add(h.Value())
	}
	return total
}

func (s *Snapshot) CountBySource() map[Source]int {
	out := map[Source]int{
		SourceLiquidWallet: 0,
		SourceYieldProduct: 0,
	}
	for _, h := range s.Holdings {
		out[h.Source]++
	}
	return out
}

func (s *Snapshot) Assets() []string {
	out := make([]string, len(s.Holdings))
	for i, h := range s.Holdings {
		out[i] = h.Asset
	}
	return out
}
