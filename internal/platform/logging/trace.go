package logging

import (
	"fmt"
	"os"
	"regexp"
	"sync/atomic"

	"go.uber.org/zap"
)

const traceparentHeader = "traceparent"

// W3C Trace Context: {version}-{trace-id}-{parent-id}-{trace-flags}
// e.g. 00-ab42124a3c573678d4d8b21ba52df3bf-d21f7bc17caa5aba-01
var traceHeaderRe = regexp.MustCompile(`^([0-9a-fA-F]{2})-([0-9a-fA-F]{32})-([0-9a-fA-F]{16})-([0-9a-fA-F]{2})$`)

var projectID atomic.Pointer[string]

// SetProjectID sets the Google Cloud project used to build trace resource names.
// Without it the project is taken from the usual environment variables.
func SetProjectID(id string) {
	projectID.Store(&id)
}

func resolveProjectID() string {
	if id := projectID.Load(); id != nil {
		return *id
	}
	for _, key := range []string{"FIREBASE_PROJECT_ID", "GOOGLE_CLOUD_PROJECT", "GCP_PROJECT"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// parseTraceparent returns trace id, span id and the sampled flag.
func parseTraceparent(header string) (traceID, spanID string, sampled, ok bool) {
	m := traceHeaderRe.FindStringSubmatch(header)
	if m == nil {
		return "", "", false, false
	}
	return m[2], m[3], m[4] == "01", true
}

func traceResource(header, project string) string {
	if project == "" {
		return ""
	}
	traceID, _, _, ok := parseTraceparent(header)
	if !ok {
		return ""
	}
	return fmt.Sprintf("projects/%s/traces/%s", project, traceID)
}

func traceFields(header, project string) []zap.Field {
	resource := traceResource(header, project)
	if resource == "" {
		return nil
	}
	_, spanID, sampled, _ := parseTraceparent(header)
	return []zap.Field{
		zap.String("logging.googleapis.com/trace", resource),
		zap.String("logging.googleapis.com/spanId", spanID),
		zap.Bool("logging.googleapis.com/trace_sampled", sampled),
	}
}

func loggerWithTrace(base *zap.Logger, header, project, requestID string) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	fields := traceFields(header, project)
	if requestID != "" {
		fields = append(fields, zap.String("requestId", requestID))
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
