// Package history indexes daily OHLCV records by symbol and date.
package history

import (
	"time"

	"StageScreener/internal/model"
)

// extraCalendarDays bounds the backward walk beyond the requested trading days.
const extraCalendarDays = 30

// Index is an immutable symbol -> date -> OHLCV lookup built once per run.
// It is safe for concurrent reads.
type Index struct {
	bars  map[string]map[string]model.OHLCV
	first map[string]time.Time
	last  map[string]time.Time
}

// Build groups records by symbol then date. A later duplicate (symbol, date) replaces an earlier one.
func Build(records []model.OHLCV) *Index {
	idx := &Index{
		bars:  make(map[string]map[string]model.OHLCV),
		first: make(map[string]time.Time),
		last:  make(map[string]time.Time),
	}
	for _, r := range records {
		if r.Symbol == "" {
			continue
		}
		r.Date = model.Midnight(r.Date)
		byDate, ok := idx.bars[r.Symbol]
		if !ok {
			byDate = make(map[string]model.OHLCV)
			idx.bars[r.Symbol] = byDate
		}
		byDate[r.DateKey()] = r

		if f, ok := idx.first[r.Symbol]; !ok || r.Date.Before(f) {
			idx.first[r.Symbol] = r.Date
		}
		if l, ok := idx.last[r.Symbol]; !ok || r.Date.After(l) {
			idx.last[r.Symbol] = r.Date
		}
	}
	return idx
}

// Symbols returns the number of indexed symbols.
func (idx *Index) Symbols() int { return len(idx.bars) }

// Has reports whether any record exists for symbol.
func (idx *Index) Has(symbol string) bool {
	_, ok := idx.bars[symbol]
	return ok
}

// Lookup returns the record for (symbol, date). The bool is false when not found.
func (idx *Index) Lookup(symbol string, date time.Time) (model.OHLCV, bool) {
	byDate, ok := idx.bars[symbol]
	if !ok {
		return model.OHLCV{}, false
	}
	bar, ok := byDate[date.Format(model.DateLayout)]
	return bar, ok
}

// Window returns up to days records ending at endDate (inclusive), oldest first.
// It walks backward one calendar day at a time and stops at the symbol's first
// record or after days*2+30 calendar days. Short histories return fewer records.
func (idx *Index) Window(symbol string, endDate time.Time, days int) []model.OHLCV {
	byDate, ok := idx.bars[symbol]
	if !ok || days <= 0 {
		return nil
	}
	backstop := idx.first[symbol]
	maxSteps := days*2 + extraCalendarDays

	collected := make([]model.OHLCV, 0, days)
	d := model.Midnight(endDate)
	for step := 0; step < maxSteps && len(collected) < days; step++ {
		if d.Before(backstop) {
			break
		}
		if bar, ok := byDate[d.Format(model.DateLayout)]; ok {
			collected = append(collected, bar)
		}
		d = d.AddDate(0, 0, -1)
	}

	// reverse into chronological order
	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}
	return collected
}

// Forward returns up to days records strictly after date, oldest first.
func (idx *Index) Forward(symbol string, date time.Time, days int) []model.OHLCV {
	byDate, ok := idx.bars[symbol]
	if !ok || days <= 0 {
		return nil
	}
	stop := idx.last[symbol]
	maxSteps := days*2 + extraCalendarDays

	var out []model.OHLCV
	d := model.Midnight(date).AddDate(0, 0, 1)
	for step := 0; step < maxSteps && len(out) < days; step++ {
		if d.After(stop) {
			break
		}
		if bar, ok := byDate[d.Format(model.DateLayout)]; ok {
			out = append(out, bar)
		}
		d = d.AddDate(0, 0, 1)
	}
	return out
}
