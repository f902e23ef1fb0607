package model

// CleanupPlan partitions memory ids into the three actions the forgetting
// policy engine can take on a cleanup pass. It is transient: produced by
// the forgetting engine for a single batch and either discarded (dry run)
// or executed.
type CleanupPlan struct {
	SoftDelete []string
	HardDelete []string
	Review     []string

	// Scores maps memory id to the forget score that placed it in its
	// partition, kept for reporting in forgetting_stats.
	Scores map[string]float64

	// Total is the number of memories scored (pinned memories are exempt
	// and never counted here).
	Total int

	// ByKind is Total broken down by kind, for forgetting_stats'
	// distribution-by-kind reporting.
	ByKind map[Kind]int
}

// Counts returns the size of each partition, for envelope responses.
func (p CleanupPlan) Counts() (soft, hard, review int) {
	return len(p.SoftDelete), len(p.HardDelete), len(p.Review)
}

// MeanScore returns the average forget score across every scored memory,
// or 0 if none were scored.
func (p CleanupPlan) MeanScore() float64 {
	if len(p.Scores) == 0 {
		return 0
	}
	var sum float64
	for _, v := range p.Scores {
		sum += v
	}
	return sum / float64(len(p.Scores))
}
