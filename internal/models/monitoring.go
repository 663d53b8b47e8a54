package models

import "time"

// MonitoringResponse resposta completa do sistema de monitoring
type MonitoringResponse struct {
	Requests    RequestMetrics     `json:"requests"`
	Performance PerformanceMetrics `json:"performance"`
	Engine      EngineCounters     `json:"engine"`
	Cache       CacheMetrics       `json:"cache"`
	Database    DatabaseMetrics    `json:"database"`
	System      SystemMetrics      `json:"system"`
	Redis       RedisMetrics       `json:"redis"`
	Timestamp   string             `json:"timestamp"`
	Version     string             `json:"version"`
}

// EngineCounters contadores do motor de custeio FIFO
type EngineCounters struct {
	Commits               int64 `json:"commits"`
	Estornos              int64 `json:"estornos"`
	Edicoes               int64 `json:"edicoes"`
	Previews              int64 `json:"previews"`
	Insuficiencias        int64 `json:"insuficiencias"`
	RestauracoesClampadas int64 `json:"restauracoes_clampadas"`
}

// RequestMetrics métricas de requests
type RequestMetrics struct {
	Total             int                        `json:"total"`
	ByEndpoint        map[string]EndpointMetrics `json:"by_endpoint"`
	SlowRequests      []SlowRequest              `json:"slow_requests"`
	Errors            []RequestError             `json:"errors"`
	TotalRequests     int                        `json:"total_requests"`
	SlowRequestsCount int                        `json:"slow_requests_count"`
	ErrorsCount       int                        `json:"errors_count"`
	TopEndpoints      []TopEndpoint              `json:"top_endpoints"`
}

// EndpointMetrics métricas por endpoint
type EndpointMetrics struct {
	Count     int     `json:"count"`
	AvgTime   float64 `json:"avg_time"`
	TotalTime int64   `json:"total_time"`
}

// SlowRequest request lento
type SlowRequest struct {
	Endpoint  string    `json:"endpoint"`
	Duration  int64     `json:"duration"`
	Timestamp time.Time `json:"timestamp"`
}

// RequestError erro de request
type RequestError struct {
	Endpoint   string    `json:"endpoint"`
	StatusCode int       `json:"status_code"`
	Timestamp  time.Time `json:"timestamp"`
}

// TopEndpoint endpoint mais usado
type TopEndpoint struct {
	Endpoint  string `json:"endpoint"`
	Count     int    `json:"count"`
	AvgTimeMs string `json:"avg_time_ms"`
}

// PerformanceMetrics métricas de desempenho
type PerformanceMetrics struct {
	AvgResponseTime   float64 `json:"avg_response_time"`
	MaxResponseTime   int64   `json:"max_response_time"`
	MinResponseTime   int64   `json:"min_response_time"`
	AvgResponseTimeMs string  `json:"avg_response_time_ms"`
	MaxResponseTimeMs string  `json:"max_response_time_ms"`
	MinResponseTimeMs string  `json:"min_response_time_ms"`
}

// CacheMetrics métricas do cache de itens de catálogo
type CacheMetrics struct {
	Connected         bool    `json:"connected"`
	TotalKeys         int     `json:"total_keys"`
	HitRate           float64 `json:"hit_rate"`
	HitRatePercentage string  `json:"hit_rate_percentage"`
	Status            string  `json:"status"`
	TotalHits         int64   `json:"total_hits"`
	TotalMisses       int64   `json:"total_misses"`
	TotalRequests     int64   `json:"total_requests"`
}

// DatabaseMetrics métricas da base de dados
type DatabaseMetrics struct {
	ActiveConnections int    `json:"active_connections"`
	Idle              int    `json:"idle"`
	InUse             int    `json:"in_use"`
	Status            string `json:"status"`
}

// SystemMetrics métricas do sistema
type SystemMetrics struct {
	MemoryUsage string        `json:"memory_usage"`
	Uptime      float64       `json:"uptime"`
	Memory      MemoryMetrics `json:"memory"`
	UptimeHours string        `json:"uptime_hours"`
	GoVersion   string        `json:"go_version"`
	Platform    string        `json:"platform"`
	Environment string        `json:"environment"`
}

// MemoryMetrics métricas de memória
type MemoryMetrics struct {
	HeapUsed  string `json:"heap_used"`
	HeapTotal string `json:"heap_total"`
	Sys       string `json:"sys"`
}

// RedisMetrics métricas do Redis
type RedisMetrics struct {
	Connected bool   `json:"connected"`
	Keys      int    `json:"keys"`
	Memory    string `json:"memory"`
	MemoryMB  string `json:"memory_mb"`
	Status    string `json:"status"`
}

// RequestData dados de um request individual
type RequestData struct {
	Endpoint   string
	Method     string
	Duration   time.Duration
	StatusCode int
	Timestamp  time.Time
}
