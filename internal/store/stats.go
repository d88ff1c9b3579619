package store

// Usage counter names as they appear in the stats file.
const (
	StatTotal     = "total"
	StatSatisfied = "satisfied"
	StatAIUsed    = "ai_used"
)

// UsageStats is a point-in-time copy of the three usage counters.
type UsageStats struct {
	Total     int
	Satisfied int
	AIUsed    int
}

// SatisfiedPercent returns Satisfied as a share of Total, zero when nothing was processed.
func (s UsageStats) SatisfiedPercent() float64 {
	return percent(s.Satisfied, s.Total)
}

// AIUsedPercent returns AIUsed as a share of Total, zero when nothing was processed.
func (s UsageStats) AIUsedPercent() float64 {
	return percent(s.AIUsed, s.Total)
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// Stats tracks the total, satisfied and ai_used counters.
type Stats struct {
	counters *Counters
}

// OpenStats loads the stats file at path.
func OpenStats(path string) (*Stats, error) {
	counters, err := OpenCounters(path, StatTotal, StatSatisfied, StatAIUsed)
	if err != nil {
		return nil, err
	}
	return &Stats{counters: counters}, nil
}

func (s *Stats) IncrementTotal() error {
	_, err := s.counters.Increment(StatTotal)
	return err
}

func (s *Stats) IncrementSatisfied() error {
	_, err := s.counters.Increment(StatSatisfied)
	return err
}

func (s *Stats) IncrementAIUsed() error {
	_, err := s.counters.Increment(StatAIUsed)
	return err
}

// Snapshot reads all three counters at once.
func (s *Stats) Snapshot() UsageStats {
	all := s.counters.Snapshot()
	return UsageStats{
		Total:     all[StatTotal],
		Satisfied: all[StatSatisfied],
		AIUsed:    all[StatAIUsed],
	}
}
