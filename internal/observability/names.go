// Package observability provides OpenTelemetry metrics and tracing for the course generation pipeline.
package observability

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameStageDuration       = "coursegen_stage_duration_seconds"
	MetricNameLLMTokens           = "coursegen_llm_tokens_total"
	MetricNameGenerationCost      = "coursegen_generation_cost_usd_total"
	MetricNameBatchNodes          = "coursegen_batch_nodes_total"
	MetricNameIndexChunks         = "coursegen_index_chunks_total"
	MetricNameEmbeddingDuration   = "coursegen_embedding_duration_seconds"
	MetricNameEmbeddingErrors     = "coursegen_embedding_errors_total"
	MetricNameCacheHits           = "coursegen_cache_hits_total"
	MetricNameCacheMisses         = "coursegen_cache_misses_total"
	MetricNameRiverQueueDepth     = "coursegen_river_queue_depth"
	MetricNameRequestBodyTooLarge = "coursegen_request_body_too_large_total"
)

// Attribute keys.
const (
	AttrStage  = "stage"
	AttrStatus = "status"
	AttrReason = "reason"
	AttrCache  = "cache"
)

// AllowedStages for stage-labelled metrics.
var AllowedStages = map[string]bool{
	"analysis":   true,
	"structure":  true,
	"content":    true,
	"assessment": true,
}

// AllowedOutcomeStatuses for stage, batch and chunk outcomes.
var AllowedOutcomeStatuses = map[string]bool{
	"success":  true,
	"failed":   true,
	"degraded": true,
	"reused":   true,
	"skipped":  true,
}

// AllowedEmbeddingErrorReasons for coursegen_embedding_errors_total.
var AllowedEmbeddingErrorReasons = map[string]bool{
	"provider":  true,
	"empty":     true,
	"cancelled": true,
}

// AllowedCacheNames for cache hit/miss counters.
var AllowedCacheNames = map[string]bool{
	"query_embedding": true,
	"semantic":        true,
}

// NormalizeReason returns reason if in allowed, otherwise "other".
func NormalizeReason(reason string, allowed map[string]bool) string {
	if allowed[reason] {
		return reason
	}

	return "other"
}

// NormalizeStage returns stage if known, otherwise "unknown".
func NormalizeStage(stage string) string {
	if AllowedStages[stage] {
		return stage
	}

	return "unknown"
}

// NormalizeStatus returns status if in AllowedOutcomeStatuses, otherwise "other".
func NormalizeStatus(status string) string {
	if AllowedOutcomeStatuses[status] {
		return status
	}

	return "other"
}

// NormalizeCacheName returns name if known, otherwise "other".
func NormalizeCacheName(name string) string {
	return NormalizeReason(name, AllowedCacheNames)
}
