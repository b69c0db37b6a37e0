package nse

// Adapted from internal/scan/logging.go's LoggingClient wrapper: same
// idea (wrap an SDK client behind a small interface) applied to the
// engine's own error taxonomy (§7) instead of scan-lifecycle events.

import (
	"fmt"
	"log"

	sdklogging "github.com/SiriusScan/go-api/sirius/logging"
)

// Logger is how the engine reports configuration errors, task errors and
// timeouts (§7). The default forwards to the standard log package,
// matching the teacher's own log.Printf/log.Fatalf use outside cmd/.
type Logger interface {
	Logf(format string, args ...interface{})
}

type stdLogger struct{}

func (stdLogger) Logf(format string, args ...interface{}) {
	log.Printf(format, args...)
}

// DefaultLogger is used whenever a Scheduler is built without an explicit
// Logger.
var DefaultLogger Logger = stdLogger{}

// SDKLogger forwards engine log lines to the host program's logging
// backend as scan events, for deployments that already run the SDK's
// logging client.
type SDKLogger struct {
	client *sdklogging.LoggingClient
	scanID string
}

// NewSDKLogger wraps client, tagging every line with scanID.
func NewSDKLogger(client *sdklogging.LoggingClient, scanID string) *SDKLogger {
	return &SDKLogger{client: client, scanID: scanID}
}

func (l *SDKLogger) Logf(format string, args ...interface{}) {
	l.client.LogScanEvent(l.scanID, "nse", fmt.Sprintf(format, args...), nil)
}
