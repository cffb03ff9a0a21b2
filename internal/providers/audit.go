package providers

import (
	"context"
	"time"
)

const (
	CallKindGenerate = "generate"
	CallKindEmbed    = "embed"

	CallStatusOK    = "ok"
	CallStatusError = "error"
)

// CallRecord describes one attempt against one provider.
type CallRecord struct {
	Operation string
	Kind      string
	Provider  string
	Model     string
	Status    string
	ErrorType ErrorType
	Latency   time.Duration
}

// Auditor persists provider call records. Failures to record never fail the call.
type Auditor interface {
	RecordCall(ctx context.Context, rec CallRecord) error
}

func (m *Manager) SetAuditor(a Auditor) {
	m.auditor = a
}

func (m *Manager) audit(ctx context.Context, rec CallRecord, err error) {
	if m.auditor == nil {
		return
	}
	rec.Status = CallStatusOK
	if err != nil {
		rec.Status = CallStatusError
		rec.ErrorType = ClassifyError(err)
	}
	if aerr := m.auditor.RecordCall(context.WithoutCancel(ctx), rec); aerr != nil {
		m.logger.Debug().Err(aerr).Str("operation", rec.Operation).Msg("Failed to record provider call")
	}
}
