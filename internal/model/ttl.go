package model

import "time"

// KindTTL maps a Kind to its time-to-live. A TTL of 0 means infinite (the
// kind never ages out by age_factor alone); semantic and procedural
// memories default to infinite.
type KindTTL map[Kind]time.Duration

// DefaultTTLs returns the default per-kind TTLs: working memories are
// short-lived, episodic memories last a few weeks, semantic and procedural
// memories do not expire by age.
func DefaultTTLs() KindTTL {
	return KindTTL{
		KindWorking:    24 * time.Hour,
		KindEpisodic:   30 * 24 * time.Hour,
		KindSemantic:   0,
		KindProcedural: 0,
	}
}

// TTL returns the configured TTL for k, or the working-memory default if k
// is not present in the map.
func (t KindTTL) TTL(k Kind) time.Duration {
	if d, ok := t[k]; ok {
		return d
	}
	return t[KindWorking]
}
