package authcore

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"
)

// AuditEvent records one security-relevant outcome: a login, refresh,
// logout, register, verification, reset, or rate-limit decision.
type AuditEvent struct {
	Timestamp   time.Time         `json:"timestamp"`
	EventType   string            `json:"event_type"`
	PrincipalID string            `json:"principal_id,omitempty"`
	IP          string            `json:"ip,omitempty"`
	Success     bool              `json:"success"`
	Error       string            `json:"error,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

const (
	auditEventLogin        = "login"
	auditEventRefresh      = "refresh"
	auditEventLogout       = "logout"
	auditEventRegister     = "register"
	auditEventVerify       = "verify_account"
	auditEventResetRequest = "password_reset_request"
	auditEventResetConfirm = "password_reset_confirm"
	auditEventRateLimited  = "rate_limited"
	auditEventDelete       = "account_delete"
	auditEventPurge        = "account_purge"
)

// AuditSink receives audit events from the dispatcher goroutine.
// Implementations must be safe for use from a single background goroutine
// and should not block for long; slow sinks back up the buffer.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards every event.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// JSONWriterSink writes one JSON line per event.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Emit(_ context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// SlogSink forwards events to a structured logger at Info (success) or
// Warn (failure).
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Emit(ctx context.Context, event AuditEvent) {
	attrs := []any{
		"event_type", event.EventType,
		"success", event.Success,
	}
	if event.PrincipalID != "" {
		attrs = append(attrs, "principal_id", event.PrincipalID)
	}
	if event.IP != "" {
		attrs = append(attrs, "ip", event.IP)
	}
	if event.Error != "" {
		attrs = append(attrs, "error", event.Error)
	}
	for k, v := range event.Metadata {
		attrs = append(attrs, k, v)
	}

	if event.Success {
		s.logger.InfoContext(ctx, "audit", attrs...)
		return
	}
	s.logger.WarnContext(ctx, "audit", attrs...)
}
