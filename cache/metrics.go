// Метрики Prometheus кэша источников.
package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits — количество попаданий в кэш
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prodstore_cache_hits_total",
		Help: "Количество обращений, обслуженных из кэша без скачивания.",
	})

	// cacheMisses — количество промахов кэша
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prodstore_cache_misses_total",
		Help: "Количество обращений, не нашедших запись в кэше.",
	})

	// cacheFetches — количество фактических скачиваний
	cacheFetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prodstore_cache_fetches_total",
		Help: "Количество фактических скачиваний содержимого (после схлопывания).",
	})

	// cacheCorruptions — количество несовпадений дайджеста
	cacheCorruptions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prodstore_cache_corruptions_total",
		Help: "Количество обнаруженных несовпадений дайджеста содержимого.",
	})

	// cacheReclaimedBytes — освобождено байт при вытеснении и очистке
	cacheReclaimedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prodstore_cache_reclaimed_bytes_total",
		Help: "Количество байт, освобождённых вытеснением и очисткой кэша.",
	})
)
