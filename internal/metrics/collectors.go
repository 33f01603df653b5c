package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// RedisPoolCollector exposes go-redis connection pool stats
type RedisPoolCollector struct {
	client *redis.Client

	hits       *prometheus.Desc
	misses     *prometheus.Desc
	timeouts   *prometheus.Desc
	totalConns *prometheus.Desc
	idleConns  *prometheus.Desc
}

func NewRedisPoolCollector(client *redis.Client) *RedisPoolCollector {
	return &RedisPoolCollector{
		client: client,
		hits: prometheus.NewDesc(
			"dpterminal_redis_pool_hits_total",
			"Free connection found in the pool",
			nil, nil,
		),
		misses: prometheus.NewDesc(
			"dpterminal_redis_pool_misses_total",
			"Free connection not found in the pool",
			nil, nil,
		),
		timeouts: prometheus.NewDesc(
			"dpterminal_redis_pool_timeouts_total",
			"Wait timeouts while acquiring a connection",
			nil, nil,
		),
		totalConns: prometheus.NewDesc(
			"dpterminal_redis_pool_connections",
			"Connections in the pool",
			nil, nil,
		),
		idleConns: prometheus.NewDesc(
			"dpterminal_redis_pool_idle_connections",
			"Idle connections in the pool",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *RedisPoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.timeouts
	ch <- c.totalConns
	ch <- c.idleConns
}

// Collect implements prometheus.Collector
func (c *RedisPoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.client.PoolStats()
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, float64(s.Timeouts))
	ch <- prometheus.MustNewConstMetric(c.totalConns, prometheus.GaugeValue, float64(s.TotalConns))
	ch <- prometheus.MustNewConstMetric(c.idleConns, prometheus.GaugeValue, float64(s.IdleConns))
}

// RegisterRedisPoolCollector registers the collector with the default registry
func RegisterRedisPoolCollector(client *redis.Client) {
	prometheus.MustRegister(NewRedisPoolCollector(client))
}
