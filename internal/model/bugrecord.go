package model

import "time"

// SeverityWeights is the table-driven check-kind → weight map used by
// queue()'s priority computation. A table keeps adding a new check kind
// a one-line change instead of another switch branch.
var SeverityWeights = map[CheckKind]float64{
	CheckArithmeticOverflow: 1.0,
	CheckUnreachable:        0.9,
	CheckBoundsViolation:    1.0,
	CheckDivisionByZero:     0.8,
	CheckPureInconsistency:  0.7,
	CheckSignConversion:     0.5,
	CheckLoopBoundExceeded:  0.6,
}

// RecencyFactor implements §4.1's last-seen decay: 1.0 within 7 days,
// 0.5 within 30, 0.2 otherwise.
func RecencyFactor(lastSeen, now time.Time) float64 {
	age := now.Sub(lastSeen)
	switch {
	case age <= 7*24*time.Hour:
		return 1.0
	case age <= 30*24*time.Hour:
		return 0.5
	default:
		return 0.2
	}
}

// BugRecord is the one-per-fingerprint unit the store persists (§3).
type BugRecord struct {
	Fingerprint Fingerprint `json:"fingerprint"`

	// Canonical is the first observation of this fingerprint, frozen at
	// creation time.
	Canonical AnomalyEvent `json:"canonical"`

	Count     int       `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`

	Status    Status     `json:"status"`
	Diagnosis *Diagnosis `json:"diagnosis,omitempty"`
}

// Priority is the pure function of (count, severity weight, recency)
// computed on query per (I3) — never stored. weights is consulted for
// the check-kind severity factor; pass SeverityWeights for the built-in
// table, or a config-supplied override (§9).
func (r BugRecord) Priority(now time.Time, weights map[CheckKind]float64) float64 {
	weight, ok := weights[r.Canonical.CheckType]
	if !ok {
		weight = 0.5
	}
	return float64(r.Count) * weight * RecencyFactor(r.LastSeen, now)
}

// Queueable reports whether r belongs in the triage queue (§4.1 queue()).
func (r BugRecord) Queueable() bool {
	return r.Status == StatusNew || r.Status == StatusTriaged
}
