package lifecycle

import (
	"embedkeeper/internal/credential"
	"embedkeeper/internal/scheduler"
	"embedkeeper/pkg/logging"
)

// Reporter is the error-reporting channel. It receives every initial-fetch
// and refresh failure as an (identifier, error) pair.
type Reporter = scheduler.Reporter

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(id string, err error)

// Report calls f.
func (f ReporterFunc) Report(id string, err error) {
	f(id, err)
}

// LogReporter writes failures to the application log.
type LogReporter struct{}

// Report logs the failure with a hint about its class.
func (LogReporter) Report(id string, err error) {
	switch {
	case credential.IsTransportError(err):
		logging.Error("Lifecycle", err, "Report %s: credential endpoint unreachable", id)
	case credential.IsFetchError(err):
		logging.Error("Lifecycle", err, "Report %s: credential endpoint rejected the request", id)
	default:
		logging.Error("Lifecycle", err, "Report %s: credential refresh failed", id)
	}
}

// MultiReporter fans a failure out to several reporters.
type MultiReporter []Reporter

// Report forwards to every non-nil reporter.
func (m MultiReporter) Report(id string, err error) {
	for _, r := range m {
		if r != nil {
			r.Report(id, err)
		}
	}
}
