package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	workflowTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_transitions_total",
			Help: "Revision workflow operations that committed",
		},
		[]string{"action"},
	)

	hookFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_post_publish_hook_failures_total",
			Help: "Post-publish hooks that returned an error or panicked",
		},
		[]string{"hook"},
	)

	contentMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_mutations_total",
			Help: "Content service mutations by kind and action",
		},
		[]string{"kind", "action"},
	)
)
