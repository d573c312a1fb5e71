// Package classify wraps the verdict-producing capability behind a stable
// interface. Today that capability is an ordered keyword rule table; a
// model-backed adapter can be substituted without touching triage.
package classify

import (
	"context"
	"log/slog"

	"factline/internal/domain"
	"factline/internal/ports"
)

// Service classifies claim text against an ordered rule table. Pure function
// of the text and the injected rules; never returns an error.
type Service struct {
	rules []Rule
}

func New(rules []Rule) *Service { return &Service{rules: rules} }

func (s *Service) Classify(ctx context.Context, text string) (ports.Classification, error) {
	slug := Slugify(text)
	for _, rule := range s.rules {
		if !rule.matches(slug) {
			continue
		}
		sources := make([]domain.Source, len(rule.Sources))
		for i, src := range rule.Sources {
			src.AuthorityScore = AuthorityFor(src.URL)
			sources[i] = src
		}
		return ports.Classification{
			Verdict:    rule.Verdict,
			Confidence: rule.Confidence,
			Reasoning:  []string{rule.Reason},
			Sources:    sources,
		}, nil
	}
	// No rule matched. Never an error: unmatched claims are simply unverified.
	return ports.Classification{
		Verdict:    domain.VerdictUnverified,
		Confidence: 0.2,
		Reasoning:  []string{"No matching verification rule for this claim"},
	}, nil
}

// Failsafe wraps any classifier and absorbs its failures: a timeout or error
// downgrades to UNVERIFIED with confidence 0 instead of propagating, so an
// outage of the underlying capability can never block ingestion.
type Failsafe struct {
	inner ports.Classifier
	log   *slog.Logger
}

func NewFailsafe(inner ports.Classifier, log *slog.Logger) *Failsafe {
	return &Failsafe{inner: inner, log: log}
}

func (f *Failsafe) Classify(ctx context.Context, text string) (ports.Classification, error) {
	out, err := f.inner.Classify(ctx, text)
	if err == nil && ctx.Err() == nil {
		return out, nil
	}
	if err == nil {
		err = ctx.Err()
	}
	f.log.Warn("classifier unavailable, downgrading to unverified", "err", err)
	return ports.Classification{
		Verdict:    domain.VerdictUnverified,
		Confidence: 0,
		Reasoning:  []string{"Classification unavailable"},
	}, nil
}
