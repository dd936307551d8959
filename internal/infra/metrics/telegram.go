package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(telegramUpdatesTotal) }

var telegramUpdatesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "photobridge_telegram_updates_total",
		Help: "Telegram updates handled, labeled by kind.",
	},
	[]string{"kind"}, // command, callback, photo, other
)

func IncTelegramUpdate(kind string) {
	telegramUpdatesTotal.WithLabelValues(norm(kind)).Inc()
}
