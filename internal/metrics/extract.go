package metrics

// Extract builds the result of a local run from the captured stdout, the event
// log path and the script that was executed. The error is non-nil only when
// the event log exists but could not be read; the returned Result is usable
// either way.
func Extract(stdout, eventLogPath, script string) (Result, error) {
	endpoints, err := ExtractEndpoints(eventLogPath, script)
	return Result{
		Aggregate: ParseSummary(stdout),
		Endpoints: endpoints,
	}, err
}
