package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    EndpointLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "marketsweep",
            Subsystem: "api",
            Name:      "latency_seconds",
            Help:      "Latency of engine endpoints",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"endpoint"},
    )

    EndpointErrors = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "marketsweep",
            Subsystem: "api",
            Name:      "errors_total",
            Help:      "Errors by engine endpoint",
        },
        []string{"endpoint"},
    )
)

func Register() {
    once.Do(func() {
        prometheus.MustRegister(EndpointLatency, EndpointErrors)
    })
}
