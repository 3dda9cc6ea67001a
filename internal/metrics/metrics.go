package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the application's Prometheus metrics. A nil *Collector
// is safe to call, so workers without a registry can share code paths.
type Collector struct {
	registry *prometheus.Registry

	apiRequests       *prometheus.CounterVec
	listingsCreated   *prometheus.CounterVec
	listingsAssigned  prometheus.Counter
	listingsCompleted prometheus.Counter
	commentsAdded     prometheus.Counter
	emailsSent        *prometheus.CounterVec
}

// NewCollector creates and registers the application metrics on a fresh
// registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sws_api_requests_total",
			Help: "Mutation API calls by method.",
		}, []string{"method"}),
		listingsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sws_listings_created_total",
			Help: "Listings created by item type.",
		}, []string{"item_type"}),
		listingsAssigned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sws_listings_assigned_total",
			Help: "Waste listings claimed by collectors.",
		}),
		listingsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sws_listings_completed_total",
			Help: "Listings marked as completed.",
		}),
		commentsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sws_comments_added_total",
			Help: "Comments added to listings.",
		}),
		emailsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sws_emails_sent_total",
			Help: "Notification emails delivered by template.",
		}, []string{"template"}),
	}

	registry.MustRegister(
		c.apiRequests,
		c.listingsCreated,
		c.listingsAssigned,
		c.listingsCompleted,
		c.commentsAdded,
		c.emailsSent,
	)
	return c
}

// Handler exposes the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) APIRequest(method string) {
	if c == nil {
		return
	}
	c.apiRequests.WithLabelValues(method).Inc()
}

func (c *Collector) ListingCreated(itemType string) {
	if c == nil {
		return
	}
	c.listingsCreated.WithLabelValues(itemType).Inc()
}

func (c *Collector) ListingAssigned() {
	if c == nil {
		return
	}
	c.listingsAssigned.Inc()
}

func (c *Collector) ListingCompleted() {
	if c == nil {
		return
	}
	c.listingsCompleted.Inc()
}

func (c *Collector) CommentAdded() {
	if c == nil {
		return
	}
	c.commentsAdded.Inc()
}

func (c *Collector) EmailSent(template string) {
	if c == nil {
		return
	}
	c.emailsSent.WithLabelValues(template).Inc()
}
