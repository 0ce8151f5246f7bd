package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// AggregationMetrics is returned by GET /api/v1/metrics/aggregation.
type AggregationMetrics struct {
	EstablishmentsOK     int64   `json:"establishmentsOk"`
	EstablishmentsFailed int64   `json:"establishmentsFailed"`
	FailureRate          float64 `json:"failureRate"`
	FetchAttempts        int64   `json:"fetchAttempts"`
	ExternalErrors       int64   `json:"externalErrors"`
	TokenCacheHitRate    float64 `json:"tokenCacheHitRate"`
	Period               string  `json:"period"`
}

// ============================================================
// Generic API Response wrappers
// ============================================================

// Envelope is the response shape shared by every endpoint.
type Envelope struct {
	Status  bool               `json:"status"`
	Message string             `json:"message"`
	Data    any                `json:"data"`
	Meta    *PageMeta          `json:"meta,omitempty"`
	Errors  []AggregationError `json:"errors,omitempty"`
}
