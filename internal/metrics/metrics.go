// ABOUTME: Prometheus counters for the realtime core
// ABOUTME: Tracks channel lifecycle, frame dispatch, and notification delivery

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChannelConnects counts successful channel connections.
	ChannelConnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_channel_connects_total",
		Help: "Successful push channel connections.",
	})

	// ChannelReconnects counts reconnect attempts after an unexpected close.
	ChannelReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_channel_reconnects_total",
		Help: "Reconnect attempts after an unexpected channel close.",
	})

	// FramesDispatched counts inbound frames delivered to at least one handler.
	FramesDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_frames_dispatched_total",
		Help: "Inbound push frames dispatched to subscribers.",
	})

	// FramesDropped counts inbound frames dropped because they failed to parse.
	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_frames_dropped_total",
		Help: "Inbound push frames dropped due to parse failures.",
	})

	// NotificationsEmitted counts notifications delivered to UI consumers.
	NotificationsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_notifications_emitted_total",
		Help: "Canonical notifications emitted to consumers.",
	})

	// NotificationsSuppressed counts notifications suppressed by deduplication.
	NotificationsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_notifications_suppressed_total",
		Help: "Notifications suppressed as duplicates or already read.",
	})

	// PollCycles counts polling-mode fetch cycles.
	PollCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_poll_cycles_total",
		Help: "Notification poll cycles executed in fallback mode.",
	})

	// MessagesSent counts chat messages submitted to the REST collaborator.
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_messages_sent_total",
		Help: "Chat messages submitted to the backend.",
	})
)
