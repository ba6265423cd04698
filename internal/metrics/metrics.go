// Package metrics объявляет метрики Prometheus сервера.
// Все метрики регистрируются в реестре по умолчанию при импорте пакета.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "artem"

// ConnectionsActive - открытые WebSocket соединения, включая неаутентифицированные.
var ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "connections_active",
	Help:      "Number of open WebSocket connections.",
})

// UsersOnline - пользователи с привязкой в реестре.
var UsersOnline = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "users_online",
	Help:      "Number of users bound to a live connection.",
})

// AuthTotal считает попытки аутентификации.
// Метки: method (register, login, session), result (ok или код ошибки).
var AuthTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "auth_total",
	Help:      "Authentication attempts by method and result.",
}, []string{"method", "result"})

// FramesTotal считает обработанные входящие кадры по типу и результату.
var FramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "frames_total",
	Help:      "Inbound frames handled on active connections.",
}, []string{"type", "result"})

var FrameDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "frame_duration_seconds",
	Help:      "Time spent handling one inbound frame.",
	Buckets:   prometheus.DefBuckets,
}, []string{"type"})

// MessagesRelayed считает сохранённые сообщения; delivered показывает,
// был ли получатель онлайн.
var MessagesRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "messages_total",
	Help:      "Direct messages persisted, by live delivery outcome.",
}, []string{"delivered"})

var ModerationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "moderation_actions_total",
	Help:      "Admin actions by action and result.",
}, []string{"action", "result"})

var OutboundDropped = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "outbound_dropped_total",
	Help:      "Outbound frames dropped because the connection queue was full or closed.",
})

// SweepExpired считает снятые по сроку баны, муты и сессии.
var SweepExpired = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "sweep_expired_total",
	Help:      "Records expired by the maintenance sweeper.",
}, []string{"kind"})
