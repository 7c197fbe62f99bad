package stage

import (
	"fmt"
	"math"
	"sort"

	"StageScreener/internal/calculator"
	"StageScreener/internal/model"
)

const (
	structureWindow  = 200
	structureMinBars = 20

	maxSwingRadius = 7
	touchTolerance = 0.02
	mergeTolerance = 0.005
	volumeBins     = 20
	volumeNodeMin  = 1.5
	roundSpan      = 0.30
	sidewaysBand   = 0.02
	nearSupport    = 0.03
	levelSlots     = 3
)

// Structure derives support/resistance levels and a structural trend.
type Structure struct {
	Window int
}

func NewStructure() *Structure { return &Structure{Window: structureWindow} }

func (s *Structure) Name() model.StageName { return model.StageStructure }
func (s *Structure) Policy() Policy        { return DefaultNeutral }

func (s *Structure) Evaluate(env Env, in model.TrendResult) (model.StructureResult, error) {
	bars := env.Window(in.Symbol, max(s.Window, structureMinBars))
	if len(bars) < structureMinBars {
		return model.StructureResult{}, fmt.Errorf("%w: %d bars", ErrInsufficientData, len(bars))
	}
	price := bars[len(bars)-1].Close
	if price <= 0 {
		return model.StructureResult{}, fmt.Errorf("%w: non-positive close", ErrComputation)
	}
	closes := model.Closes(bars)

	sma20 := shrunkSMA(closes, 20)
	sma50 := shrunkSMA(closes, 50)
	sma200 := shrunkSMA(closes, 200)

	var levels []model.SupportResistanceLevel
	levels = append(levels, SwingLevels(bars)...)
	levels = append(levels, maLevels(bars, sma20, sma50, sma200)...)
	levels = append(levels, PivotLevels(bars[len(bars)-1])...)
	levels = append(levels, VolumeLevels(bars)...)
	levels = append(levels, RoundNumberLevels(bars, price)...)
	merged := MergeLevels(levels, mergeTolerance)

	supports, resistances := PartitionLevels(merged, price)
	supports = fillSupports(supports, price)
	resistances = fillResistances(resistances, price)

	high, low, err := calculator.CalculateRange(bars, 0)
	if err != nil {
		return model.StructureResult{}, indicatorErr("range", err)
	}
	rangePos, err := calculator.CalculateRangePosition(price, high, low)
	if err != nil {
		return model.StructureResult{}, indicatorErr("range position", err)
	}

	strength, confidence := meanStrengthConfidence(merged)
	trend := StructuralTrend(price, sma50, sma200)
	if err := finite(sma20, sma50, sma200, strength, confidence, rangePos); err != nil {
		return model.StructureResult{}, err
	}

	return model.StructureResult{
		StageBase:           env.base(in.StageBase, bars),
		PrimarySupport:      supports[0],
		SecondarySupport:    supports[1],
		TertiarySupport:     supports[2],
		PrimaryResistance:   resistances[0],
		SecondaryResistance: resistances[1],
		TertiaryResistance:  resistances[2],
		SMA20:               sma20,
		SMA50:               sma50,
		SMA200:              sma200,
		Trend:               trend,
		Strength:            strength,
		Confidence:          confidence,
		RangePosition:       rangePos,
		LevelCount:          len(merged),
		Score:               StructureScore(trend, strength, price, supports[0]),
	}, nil
}

func (s *Structure) Fallback(env Env, in model.TrendResult) model.StructureResult {
	price := in.CurrentPrice
	supports := fillSupports(nil, price)
	resistances := fillResistances(nil, price)
	return model.StructureResult{
		StageBase:           env.base(in.StageBase, nil),
		PrimarySupport:      supports[0],
		SecondarySupport:    supports[1],
		TertiarySupport:     supports[2],
		PrimaryResistance:   resistances[0],
		SecondaryResistance: resistances[1],
		TertiaryResistance:  resistances[2],
		Trend:               model.StructureUnknown,
		Strength:            1,
		Confidence:          10,
		RangePosition:       0.5,
		Score:               50,
		Fallback:            true,
	}
}

// StructuralTrend classifies price against SMA50 and SMA200.
func StructuralTrend(price, sma50, sma200 float64) model.StructureTrend {
	switch {
	case sma50 <= 0:
		return model.StructureUnknown
	case price > sma50 && sma50 > sma200:
		return model.StructureBullish
	case price < sma50 && sma50 < sma200:
		return model.StructureBearish
	case math.Abs(price-sma50)/sma50 <= sidewaysBand:
		return model.StructureSideways
	default:
		return model.StructureUnknown
	}
}

// StructureScore is the trend base adjusted by average level strength, plus a
// bonus when price sits just above a real primary support.
func StructureScore(trend model.StructureTrend, avgStrength, price float64, primary model.SupportResistanceLevel) int {
	var score float64
	switch trend {
	case model.StructureBullish:
		score = 75
	case model.StructureBearish:
		score = 25
	case model.StructureSideways:
		score = 55
	default:
		score = 50
	}
	score += (avgStrength - 3) * 5
	if !primary.Synthetic && primary.Price > 0 && price > 0 {
		if gap := (price - primary.Price) / price; gap >= 0 && gap <= nearSupport {
			score += 10
		}
	}
	return clampScore(score, 0, 100)
}

func shrunkSMA(closes []float64, period int) float64 {
	p := min(period, len(closes))
	v, err := calculator.CalculateSMA(closes, p)
	if err != nil {
		return 0
	}
	return v
}

// swingRadius is the neighbour window used for swing detection.
func swingRadius(n int) int {
	return min(maxSwingRadius, max(2, n/10))
}

// SwingLevels finds bars whose high (low) is not exceeded by any neighbour
// within the swing radius on either side.
func SwingLevels(bars []model.OHLCV) []model.SupportResistanceLevel {
	n := len(bars)
	w := swingRadius(n)
	if n < 2*w+1 {
		return nil
	}
	avgVol := averageVolume(bars)

	var out []model.SupportResistanceLevel
	for i := w; i < n-w; i++ {
		isHigh, isLow := true, true
		localMean := 0.0
		for j := i - w; j <= i+w; j++ {
			localMean += bars[j].Close
			if j == i {
				continue
			}
			if bars[j].High > bars[i].High {
				isHigh = false
			}
			if bars[j].Low < bars[i].Low {
				isLow = false
			}
		}
		localMean /= float64(2*w + 1)

		if isHigh {
			out = append(out, swingLevel(bars, i, bars[i].High, model.LevelSwingHigh, localMean, avgVol))
		}
		if isLow {
			out = append(out, swingLevel(bars, i, bars[i].Low, model.LevelSwingLow, localMean, avgVol))
		}
	}
	return out
}

func swingLevel(bars []model.OHLCV, i int, price float64, typ model.LevelType, localMean, avgVol float64) model.SupportResistanceLevel {
	touches, last := CountTouches(bars, price, touchTolerance)

	recency := float64(i+1) / float64(len(bars)) * 100
	volume := 50.0
	if avgVol > 0 {
		volume = math.Min(bars[i].Volume/avgVol*50, 100)
	}
	touchScore := math.Min(float64(touches)*20, 100)

	return model.SupportResistanceLevel{
		Price:         price,
		Strength:      deviationStrength(price, localMean),
		Type:          typ,
		Confidence:    0.4*touchScore + 0.3*recency + 0.3*volume,
		Touches:       touches,
		LastTouchDate: last,
	}
}

// deviationStrength grades a level 1-5 by its percent distance from the local mean.
func deviationStrength(price, mean float64) int {
	if mean <= 0 {
		return 1
	}
	dev := math.Abs(price-mean) / mean * 100
	switch {
	case dev < 1:
		return 1
	case dev < 2:
		return 2
	case dev < 3:
		return 3
	case dev < 5:
		return 4
	default:
		return 5
	}
}

// CountTouches counts bars whose high or low came within tol (fractional) of
// level and returns the date of the latest one.
func CountTouches(bars []model.OHLCV, level, tol float64) (int, string) {
	if level <= 0 {
		return 0, ""
	}
	touches := 0
	last := ""
	for _, b := range bars {
		if math.Abs(b.High-level)/level <= tol || math.Abs(b.Low-level)/level <= tol ||
			(b.Low <= level && b.High >= level) {
			touches++
			last = b.DateKey()
		}
	}
	return touches, last
}

func maLevels(bars []model.OHLCV, sma20, sma50, sma200 float64) []model.SupportResistanceLevel {
	specs := []struct {
		price      float64
		strength   int
		confidence float64
	}{
		{sma20, 3, 60},
		{sma50, 4, 70},
		{sma200, 5, 80},
	}
	var out []model.SupportResistanceLevel
	for _, s := range specs {
		if s.price <= 0 {
			continue
		}
		touches, last := CountTouches(bars, s.price, touchTolerance)
		out = append(out, model.SupportResistanceLevel{
			Price:         s.price,
			Strength:      s.strength,
			Type:          model.LevelMovingAverage,
			Confidence:    s.confidence,
			Touches:       touches,
			LastTouchDate: last,
		})
	}
	return out
}

// PivotLevels computes classic floor pivots from one completed bar.
func PivotLevels(b model.OHLCV) []model.SupportResistanceLevel {
	pp := (b.High + b.Low + b.Close) / 3
	r := b.High - b.Low
	points := []struct {
		price      float64
		strength   int
		confidence float64
	}{
		{pp, 3, 50},
		{2*pp - b.Low, 3, 50},          // R1
		{2*pp - b.High, 3, 50},         // S1
		{pp + r, 2, 40},                // R2
		{pp - r, 2, 40},                // S2
		{b.High + 2*(pp-b.Low), 1, 30}, // R3
		{b.Low - 2*(b.High-pp), 1, 30}, // S3
	}
	out := make([]model.SupportResistanceLevel, 0, len(points))
	for _, p := range points {
		if p.price <= 0 {
			continue
		}
		out = append(out, model.SupportResistanceLevel{
			Price:      p.price,
			Strength:   p.strength,
			Type:       model.LevelPivot,
			Confidence: p.confidence,
		})
	}
	return out
}

// VolumeLevels bins volume by typical price and returns the centres of bins
// holding at least 1.5x the average bin volume.
func VolumeLevels(bars []model.OHLCV) []model.SupportResistanceLevel {
	high, low, err := calculator.CalculateRange(bars, 0)
	if err != nil || high <= low {
		return nil
	}
	width := (high - low) / volumeBins
	var bins [volumeBins]float64
	total := 0.0
	for _, b := range bars {
		typical := (b.High + b.Low + b.Close) / 3
		k := int((typical - low) / width)
		k = clampInt(k, 0, volumeBins-1)
		bins[k] += b.Volume
		total += b.Volume
	}
	avg := total / volumeBins
	if avg <= 0 {
		return nil
	}

	var out []model.SupportResistanceLevel
	for k, v := range bins {
		ratio := v / avg
		if ratio < volumeNodeMin {
			continue
		}
		price := low + (float64(k)+0.5)*width
		touches, last := CountTouches(bars, price, touchTolerance)
		strength := 2
		switch {
		case ratio >= 3:
			strength = 5
		case ratio >= 2.5:
			strength = 4
		case ratio >= 2:
			strength = 3
		}
		out = append(out, model.SupportResistanceLevel{
			Price:         price,
			Strength:      strength,
			Type:          model.LevelVolume,
			Confidence:    math.Min(40+ratio*10, 90),
			Touches:       touches,
			LastTouchDate: last,
		})
	}
	return out
}

// roundStep picks the round-number spacing for a price.
func roundStep(price float64) float64 {
	switch {
	case price < 50:
		return 5
	case price < 200:
		return 10
	case price < 1000:
		return 50
	default:
		return 100
	}
}

// RoundNumberLevels returns multiples of the round step within 30% of price
// that the window actually traded through or near.
func RoundNumberLevels(bars []model.OHLCV, price float64) []model.SupportResistanceLevel {
	if price <= 0 {
		return nil
	}
	step := roundStep(price)
	lo, hi := price*(1-roundSpan), price*(1+roundSpan)

	var out []model.SupportResistanceLevel
	for lvl := math.Ceil(lo/step) * step; lvl <= hi; lvl += step {
		if lvl <= 0 {
			continue
		}
		touches, last := CountTouches(bars, lvl, touchTolerance)
		if touches == 0 {
			continue
		}
		out = append(out, model.SupportResistanceLevel{
			Price:         lvl,
			Strength:      2,
			Type:          model.LevelRoundNumber,
			Confidence:    math.Min(float64(touches)*10, 60),
			Touches:       touches,
			LastTouchDate: last,
		})
	}
	return out
}

// MergeLevels collapses levels within tol (fractional) of each other, keeping
// the stronger level's price and type and the larger touch count.
func MergeLevels(levels []model.SupportResistanceLevel, tol float64) []model.SupportResistanceLevel {
	if len(levels) == 0 {
		return nil
	}
	sorted := make([]model.SupportResistanceLevel, len(levels))
	copy(sorted, levels)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })

	out := []model.SupportResistanceLevel{sorted[0]}
	anchor := sorted[0].Price
	for _, l := range sorted[1:] {
		cur := &out[len(out)-1]
		if anchor > 0 && (l.Price-anchor)/anchor <= tol {
			touches := max(cur.Touches, l.Touches)
			lastTouch := cur.LastTouchDate
			if l.LastTouchDate > lastTouch {
				lastTouch = l.LastTouchDate
			}
			if l.Strength > cur.Strength || (l.Strength == cur.Strength && l.Confidence > cur.Confidence) {
				*cur = l
			}
			cur.Touches = touches
			cur.LastTouchDate = lastTouch
			continue
		}
		out = append(out, l)
		anchor = l.Price
	}
	return out
}

// PartitionLevels splits levels into supports below price (nearest first) and
// resistances above price (nearest first), keeping at most three of each.
func PartitionLevels(levels []model.SupportResistanceLevel, price float64) (supports, resistances []model.SupportResistanceLevel) {
	for _, l := range levels {
		switch {
		case l.Price < price:
			supports = append(supports, l)
		case l.Price > price:
			resistances = append(resistances, l)
		}
	}
	sort.SliceStable(supports, func(i, j int) bool { return supports[i].Price > supports[j].Price })
	sort.SliceStable(resistances, func(i, j int) bool { return resistances[i].Price < resistances[j].Price })
	if len(supports) > levelSlots {
		supports = supports[:levelSlots]
	}
	if len(resistances) > levelSlots {
		resistances = resistances[:levelSlots]
	}
	return supports, resistances
}

// fillSupports pads to three slots with synthetic levels at 5/10/15% below
// price, stepping past any real level already occupying a slot.
func fillSupports(supports []model.SupportResistanceLevel, price float64) []model.SupportResistanceLevel {
	out := append([]model.SupportResistanceLevel(nil), supports...)
	for k := len(out); k < levelSlots; k++ {
		p := price * (1 - 0.05*float64(k+1))
		if k > 0 && p >= out[k-1].Price {
			p = out[k-1].Price - 0.05*price
		}
		if p <= 0 && k > 0 {
			p = out[k-1].Price / 2
		}
		out = append(out, syntheticLevel(p, model.LevelSwingLow))
	}
	return out
}

// fillResistances pads to three slots with synthetic levels at 5/10/15% above price.
func fillResistances(resistances []model.SupportResistanceLevel, price float64) []model.SupportResistanceLevel {
	out := append([]model.SupportResistanceLevel(nil), resistances...)
	for k := len(out); k < levelSlots; k++ {
		p := price * (1 + 0.05*float64(k+1))
		if k > 0 && p <= out[k-1].Price {
			p = out[k-1].Price + 0.05*price
		}
		out = append(out, syntheticLevel(p, model.LevelSwingHigh))
	}
	return out
}

func syntheticLevel(price float64, typ model.LevelType) model.SupportResistanceLevel {
	return model.SupportResistanceLevel{
		Price:      price,
		Strength:   1,
		Type:       typ,
		Confidence: 10,
		Synthetic:  true,
	}
}

func meanStrengthConfidence(levels []model.SupportResistanceLevel) (float64, float64) {
	if len(levels) == 0 {
		return 1, 10
	}
	var s, c float64
	for _, l := range levels {
		s += float64(l.Strength)
		c += l.Confidence
	}
	n := float64(len(levels))
	return s / n, c / n
}

func averageVolume(bars []model.OHLCV) float64 {
	if len(bars) == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range bars {
		sum += b.Volume
	}
	return sum / float64(len(bars))
}
