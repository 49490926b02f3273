// Метрики Prometheus клиента синхронизации.
package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// pushesTotal — количество успешных публикаций
	pushesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prodstore_client_pushes_total",
		Help: "Количество успешно опубликованных версий продуктов.",
	})

	// uploadsTotal — количество фактических передач содержимого
	uploadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prodstore_client_uploads_total",
		Help: "Количество фактических загрузок содержимого (без дедуплицированных).",
	})
)
