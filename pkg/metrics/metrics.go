package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectedClients is the number of open websocket connections.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dev2gether_connected_clients",
		Help: "Open websocket connections.",
	})

	// ActiveRooms is the number of live rooms.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dev2gether_active_rooms",
		Help: "Rooms with at least one member.",
	})

	// EventsTotal counts inbound client events by event name.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dev2gether_events_total",
		Help: "Inbound client events processed.",
	}, []string{"event"})
)

// Handler exposes Prometheus metrics at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
