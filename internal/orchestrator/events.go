package orchestrator

// Event names emitted while a turn progresses.
const (
	EventPreparing           = "preparing"
	EventWhitelistLoading    = "whitelist_loading"
	EventWhitelistValidating = "whitelist_validating"
	EventContextLoading      = "context_loading"
	EventProviderProcessing  = "provider_processing"
	EventToolExecuting       = "tool_executing"
	EventToolCall            = "tool_call"
	EventProviderRetry       = "provider_retry"
	EventFinalizing          = "finalizing"
)

// EventFunc receives phase notifications. It must not block.
type EventFunc func(status, details string)

func (f EventFunc) emit(status, details string) {
	if f != nil {
		f(status, details)
	}
}
