// Package triage is the sole gate between automation and human review.
package triage

import "factline/internal/domain"

// Policy holds the confidence watermarks and the priority mapping. Values
// come from configuration so operators can tune throughput vs accuracy.
type Policy struct {
	HighWatermark float64
	LowWatermark  float64
	// MidPriority is assigned to the band between the watermarks.
	MidPriority domain.Priority
}

func NewPolicy(high, low float64) Policy {
	return Policy{HighWatermark: high, LowWatermark: low, MidPriority: domain.PriorityNormal}
}

// Decision is the triage outcome: either auto-publish, or moderate at a
// priority.
type Decision struct {
	AutoPublish bool
	Priority    domain.Priority
}

// Decide maps classifier output to a decision. Pure function, no side
// effects.
func (p Policy) Decide(confidence float64, verdict domain.Verdict) Decision {
	switch {
	case confidence >= p.HighWatermark:
		return Decision{AutoPublish: true}
	case confidence < p.LowWatermark:
		// High uncertainty on a claim that may be spreading.
		return Decision{Priority: domain.PriorityUrgent}
	default:
		return Decision{Priority: p.MidPriority}
	}
}
