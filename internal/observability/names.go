// Package observability provides OpenTelemetry metrics, tracing, and log correlation for the catalog assistant.
package observability

import (
	"github.com/bitumen-hub/catalog-assistant/internal/datatypes"
)

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameEventsDiscarded      = "catalog_events_discarded_total"
	MetricNameFanOutDuration       = "catalog_message_publisher_fan_out_duration_seconds"
	MetricNameEventChannelDepth    = "catalog_event_channel_depth"
	MetricNameRiverQueueDepth      = "catalog_river_queue_depth"
	MetricNameSyncJobsEnqueued     = "catalog_sync_jobs_enqueued_total"
	MetricNameSyncProviderErrors   = "catalog_sync_provider_errors_total"
	MetricNameReindexOutcomes      = "catalog_reindex_outcomes_total"
	MetricNameReindexWorkerErrors  = "catalog_reindex_worker_errors_total"
	MetricNameReindexDuration      = "catalog_reindex_duration_seconds"
	MetricNameChunksIndexed        = "catalog_chunks_indexed_total"
	MetricNameChunksSkipped        = "catalog_chunks_skipped_total"
	MetricNameSearches             = "catalog_searches_total"
	MetricNameSearchDuration       = "catalog_search_duration_seconds"
	MetricNameSearchStageErrors    = "catalog_search_stage_errors_total"
	MetricNameAnswers              = "catalog_answers_total"
	MetricNameAnswerDuration       = "catalog_answer_duration_seconds"
	MetricNameLLMErrors            = "catalog_llm_errors_total"
	MetricNameLedgerErrors         = "catalog_ledger_errors_total"
	MetricNameCacheHits            = "catalog_cache_hits_total"
	MetricNameCacheMisses          = "catalog_cache_misses_total"
	MetricNameRequestBodyTooLarge  = "catalog_request_body_too_large_total"
	MetricNameHTTPRequests         = "catalog_http_requests_total"
	MetricNameHTTPRequestDuration  = "catalog_http_request_duration_seconds"
	durationHistogramInstrumentPat = "catalog_*_duration_seconds"
)

// Attribute keys.
const (
	AttrEventType   = "event_type"
	AttrReason      = "reason"
	AttrStatus      = "status"
	AttrStage       = "stage"
	AttrOutcome     = "outcome"
	AttrKind        = "kind"
	AttrOperation   = "operation"
	AttrMethod      = "method"
	AttrRoute       = "route"
	AttrStatusClass = "status_class"
)

// AllowedSyncProviderReasons for catalog_sync_provider_errors_total.
var AllowedSyncProviderReasons = map[string]bool{
	"enqueue_failed": true,
	"bad_payload":    true,
	"list_failed":    true,
}

// AllowedReindexWorkerReasons for catalog_reindex_worker_errors_total.
var AllowedReindexWorkerReasons = map[string]bool{
	"get_product_failed": true,
	"index_failed":       true,
	"remove_failed":      true,
	"job_error":          true,
	"panic":              true,
}

// AllowedReindexStatuses for catalog_reindex_outcomes_total and catalog_reindex_duration_seconds.
var AllowedReindexStatuses = map[string]bool{
	"indexed":      true,
	"removed":      true,
	"skipped":      true,
	"failed_final": true,
}

// AllowedChunkSkipReasons for catalog_chunks_skipped_total.
var AllowedChunkSkipReasons = map[string]bool{
	"embedding_failed": true,
	"file_unreadable":  true,
}

// AllowedSearchStages for search metrics.
var AllowedSearchStages = map[string]bool{
	"lexical":  true,
	"semantic": true,
	"none":     true,
}

// AllowedAnswerOutcomes for catalog_answers_total and catalog_answer_duration_seconds.
var AllowedAnswerOutcomes = map[string]bool{
	"generated":       true,
	"no_info":         true,
	"llm_failed":      true,
	"retrieval_error": true,
}

// AllowedLLMErrorKinds for catalog_llm_errors_total.
var AllowedLLMErrorKinds = map[string]bool{
	"timeout":      true,
	"rate_limited": true,
	"auth":         true,
	"malformed":    true,
	"provider":     true,
}

// AllowedLedgerOperations for catalog_ledger_errors_total.
var AllowedLedgerOperations = map[string]bool{
	"log_query":    true,
	"log_response": true,
	"feedback":     true,
}

// AllowedCacheNames for cache metrics.
var AllowedCacheNames = map[string]bool{
	"query_embedding": true,
}

// NormalizeEventType returns eventType if allowed, otherwise "unknown".
func NormalizeEventType(eventType string) string {
	if datatypes.IsValidEventType(eventType) {
		return eventType
	}

	return "unknown"
}

// NormalizeReason returns reason if in allowed, otherwise "other".
func NormalizeReason(reason string, allowed map[string]bool) string {
	if allowed[reason] {
		return reason
	}

	return "other"
}

// NormalizeCacheName returns name if it is a known cache, otherwise "other".
func NormalizeCacheName(name string) string {
	return NormalizeReason(name, AllowedCacheNames)
}

// StatusClass maps an HTTP status code to "2xx".."5xx".
func StatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
