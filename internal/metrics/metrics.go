// Package metrics exports storage and analysis progress to Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yourusername/awari/pkg/retro"
	"github.com/yourusername/awari/pkg/storage"
)

var (
	accessTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "awari_storage_access_total",
		Help: "Table accesses by operation",
	}, []string{"op"})

	cacheEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "awari_storage_cache_events_total",
		Help: "Block cache events by kind",
	}, []string{"event"})

	classDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "awari_class_duration_seconds",
		Help:    "Time to analyse one seed class",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 12),
	})

	boardsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "awari_boards_total",
		Help: "Analysed boards by outcome for the player to move",
	}, []string{"outcome"})

	stabilizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "awari_stabilized_total",
		Help: "Boards made final by the sweep and propagation",
	})

	forcedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "awari_forced_draws_total",
		Help: "Boards declared drawn at the end of their class",
	})

	currentClass = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "awari_current_class",
		Help: "Seed class under analysis",
	})

	currentLevel = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "awari_current_level",
		Help: "Last finished saturation level per seed class",
	}, []string{"seeds"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "awari_api_requests_total",
		Help: "Query API requests by route and status",
	}, []string{"route", "status"})
)

// Children of the vectors touched on every board access, resolved once.
var (
	loadsTotal  = accessTotal.WithLabelValues("load")
	storesTotal = accessTotal.WithLabelValues("store")

	cacheEvents = [...]prometheus.Counter{
		storage.CacheHit:       cacheEventsTotal.WithLabelValues(storage.CacheHit.String()),
		storage.CacheMiss:      cacheEventsTotal.WithLabelValues(storage.CacheMiss.String()),
		storage.CacheEvict:     cacheEventsTotal.WithLabelValues(storage.CacheEvict.String()),
		storage.CacheWriteBack: cacheEventsTotal.WithLabelValues(storage.CacheWriteBack.String()),
	}
)

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// ObserveRequest counts one API request.
func ObserveRequest(route string, status int) {
	requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// Storage feeds backend statistics into the exported counters.
type Storage struct{}

var _ storage.Observer = Storage{}

func (Storage) ObserveAccess(store bool) {
	if store {
		storesTotal.Inc()
	} else {
		loadsTotal.Inc()
	}
}

func (Storage) ObserveCache(e storage.CacheEvent) {
	if int(e) >= 0 && int(e) < len(cacheEvents) {
		cacheEvents[e].Inc()
		return
	}
	cacheEventsTotal.WithLabelValues(e.String()).Inc()
}

// Progress records solver progress.
type Progress struct{}

var _ retro.Reporter = Progress{}

func (Progress) ClassStarted(_ uuid.UUID, seeds int, _ uint64) {
	currentClass.Set(float64(seeds))
}

func (Progress) LevelDone(_ uuid.UUID, seeds, level int, stabilized uint64) {
	currentLevel.WithLabelValues(strconv.Itoa(seeds)).Set(float64(level))
	stabilizedTotal.Add(float64(stabilized))
}

func (Progress) ClassDone(c retro.ClassSummary) {
	classDuration.Observe(c.Duration.Seconds())
	boardsTotal.WithLabelValues("win").Add(float64(c.Wins))
	boardsTotal.WithLabelValues("loss").Add(float64(c.Losses))
	boardsTotal.WithLabelValues("draw").Add(float64(c.Draws))
	forcedTotal.Add(float64(c.Forced))
}

func (Progress) Finished(retro.Summary) {}
