package prefetch

// Statistics holds GHB prefetcher counters.
type Statistics struct {
	// Accesses is the number of observed accesses.
	Accesses uint64
	// PCPatterns counts cycles whose pattern came from the PC chain.
	PCPatterns uint64
	// PagePatterns counts cycles whose pattern came from the page chain.
	PagePatterns uint64
	// NoPattern counts cycles where neither chain produced a delta.
	NoPattern uint64
	// TableMatches counts predictions served by the pattern table.
	TableMatches uint64
	// Fallbacks counts predictions served by the last-delta heuristic.
	Fallbacks uint64
	// NoPrediction counts cycles that had a pattern but predicted nothing.
	NoPrediction uint64
	// CrossPage counts candidates dropped for leaving the page.
	CrossPage uint64
	// Candidates is the number of addresses handed to the issuer.
	Candidates uint64
}

// Predictions returns the number of cycles that produced a prediction.
func (s Statistics) Predictions() uint64 {
	return s.TableMatches + s.Fallbacks
}

// MatchRate returns the share of predictions served by the table, in percent.
func (s Statistics) MatchRate() float64 {
	total := s.Predictions()
	if total == 0 {
		return 0
	}
	return float64(s.TableMatches) / float64(total) * 100
}

// StatsSource supplies a statistics snapshot.
type StatsSource interface {
	Stats() Statistics
}
