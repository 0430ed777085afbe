package index

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("rulegraph.index")

var (
	datasetLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rulegraph_dataset_loads_total",
		Help: "Dataset loads by country, origin and result",
	}, []string{"country", "origin", "result"})

	datasetLoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rulegraph_dataset_load_duration_seconds",
		Help:    "Time to load a dataset",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"country"})

	datasetVariables = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rulegraph_dataset_variables",
		Help: "Variables in the currently loaded dataset",
	}, []string{"country"})
)
