// Package metrics holds the prometheus instruments for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factline_submissions_total",
		Help: "Inbound submissions by source channel.",
	}, []string{"channel"})

	Verdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factline_verdicts_total",
		Help: "Classifier verdicts produced.",
	}, []string{"verdict"})

	AutoPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "factline_auto_published_total",
		Help: "Records published without human review.",
	})

	ModerationResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factline_moderation_resolved_total",
		Help: "Moderator decisions by action.",
	}, []string{"action"})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factline_notifications_sent_total",
		Help: "Outbound notification deliveries by channel and outcome.",
	}, []string{"channel", "outcome"})
)
