// Package audit implements the Audit Sink (C7): row construction from a
// dispatch outcome plus pluggable, best-effort persistence (file, log,
// or an in-memory ring buffer), none of which may ever affect a
// dispatch's result.
package audit

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/aishacrm/braid/infrastructure/logging"
	"github.com/aishacrm/braid/infrastructure/redaction"
	"github.com/aishacrm/braid/internal/engine/core"
)

// argRedactor scrubs credential-shaped fields (token, secret, api_key,
// password) out of a tool call's arguments before they are written to the
// audit trail. Arguments are user/LLM-supplied and occasionally echo back
// a credential the caller pasted by mistake.
var argRedactor = redaction.NewRedactor(redaction.DefaultConfig())

const errorMessageMaxLen = 500

// placeholderResultValue replaces a successful tool's actual return value
// in the audit row: the row records that a result was produced, not the
// (possibly PII-bearing) result itself.
var placeholderResultValue = map[string]string{"summary": "Result logged"}

// BuildRow constructs the AuditRow for a completed dispatch: PII-safe
// result placeholder, truncated error messages, and a user identifier
// that falls back to email when userID isn't a valid uuid.
func BuildRow(tool core.Tool, pol core.Policy, tenantID, userID, userEmail, userRole string, args map[string]any, result core.Result, executionTimeMs int64, cacheHit bool, entityType, entityID string, timestamp int64) core.AuditRow {
	row := core.AuditRow{
		Tool:            tool.Name,
		BraidFunction:   tool.FunctionName,
		BraidFile:       tool.SourceFile,
		Policy:          pol.Name,
		ToolClass:       pol.ToolClass,
		TenantID:        tenantID,
		UserRole:        userRole,
		InputArgs:       argRedactor.RedactMap(args),
		ExecutionTimeMs: executionTimeMs,
		CacheHit:        cacheHit,
		EntityType:      entityType,
		EntityID:        entityID,
		Timestamp:       timestamp,
	}

	if _, err := uuid.Parse(userID); err == nil {
		row.UserID = userID
	} else {
		row.UserEmail = userEmail
	}

	if result.IsOk() {
		row.ResultTag = "ok"
		row.ResultValue = placeholderResultValue
	} else {
		row.ResultTag = "error"
		row.ErrorType = string(result.Err.Kind)
		row.ErrorMessage = truncate(result.Err.Message, errorMessageMaxLen)
	}

	return row
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// Sink appends audit rows to some durable or observable destination.
// Every implementation must treat its own errors as non-fatal to the
// caller: Append returning an error only ever causes the caller to log
// and continue.
type Sink = core.AuditStore

// FileSink appends audit rows as JSONL to a file opened in append mode.
type FileSink struct {
	mu   sync.Mutex
	file fileWriter
}

type fileWriter interface {
	Write([]byte) (int, error)
}

// NewFileSink wraps an already-open append-mode file (or any io.Writer
// shaped destination). Passing nil yields a Sink whose Append is a no-op.
func NewFileSink(w fileWriter) *FileSink {
	return &FileSink{file: w}
}

func (s *FileSink) Append(_ context.Context, row core.AuditRow) error {
	if s == nil || s.file == nil {
		return nil
	}
	b, err := json.Marshal(row)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.file.Write(append(b, '\n'))
	return err
}

// LogSink appends audit rows as structured log entries via
// infrastructure/logging, for deployments that ship logs to a central
// aggregator instead of (or in addition to) a dedicated audit file.
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink builds a LogSink.
func NewLogSink(logger *logging.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Append(ctx context.Context, row core.AuditRow) error {
	if s == nil || s.logger == nil {
		return nil
	}
	resource := row.EntityType
	if resource == "" {
		resource = row.ToolClass
	}
	s.logger.LogAudit(ctx, row.Tool, resource, row.EntityID, row.ResultTag)
	return nil
}

// RingSink keeps the most recent rows in memory, for inspection tools
// and tests. It never returns an error.
type RingSink struct {
	mu      sync.Mutex
	rows    []core.AuditRow
	maxSize int
}

// NewRingSink builds a RingSink holding at most maxSize rows; a maxSize of
// zero or less means 200.
func NewRingSink(maxSize int) *RingSink {
	if maxSize <= 0 {
		maxSize = 200
	}
	return &RingSink{maxSize: maxSize}
}

func (s *RingSink) Append(_ context.Context, row core.AuditRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	if len(s.rows) > s.maxSize {
		s.rows = s.rows[len(s.rows)-s.maxSize:]
	}
	return nil
}

// Recent returns up to limit of the most recently appended rows, newest
// last. A non-positive limit returns everything held.
func (s *RingSink) Recent(limit int) []core.AuditRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]core.AuditRow, len(s.rows))
	copy(all, s.rows)
	if limit <= 0 || limit >= len(all) {
		return all
	}
	return all[len(all)-limit:]
}

// Fanout appends a row to every wrapped Sink, collecting (but never
// raising) each one's error as a combined warning log.
type Fanout struct {
	sinks  []Sink
	logger *logging.Logger
}

// NewFanout builds a Fanout over the given sinks, skipping any nil entries.
func NewFanout(logger *logging.Logger, sinks ...Sink) *Fanout {
	nonNil := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			nonNil = append(nonNil, s)
		}
	}
	return &Fanout{sinks: nonNil, logger: logger}
}

func (f *Fanout) Append(ctx context.Context, row core.AuditRow) error {
	var failures []string
	for _, s := range f.sinks {
		if err := s.Append(ctx, row); err != nil {
			failures = append(failures, err.Error())
		}
	}
	if len(failures) > 0 && f.logger != nil {
		f.logger.Logger.WithField("tool", row.Tool).Warn("audit: " + strings.Join(failures, "; "))
	}
	return nil
}
