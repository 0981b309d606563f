package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	profileVisitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treebio_profile_visits_total",
			Help: "Profile visit logging outcomes",
		},
		[]string{"result"},
	)

	linkClicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treebio_link_clicks_total",
			Help: "Link click logging outcomes partitioned by the path that handled them",
		},
		[]string{"path"},
	)

	divergentLinks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "treebio_click_counter_divergent_links",
			Help: "Links whose click counter disagreed with their click events at the last reconciliation",
		},
	)
)

const (
	visitResultLogged       = "logged"
	visitResultDeduplicated = "deduplicated"
	visitResultFailed       = "failed"
)
