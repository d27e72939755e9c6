package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/nwthomas/deep-learning-research-agent/internal/logger"
	"github.com/nwthomas/deep-learning-research-agent/internal/metrics"
	"github.com/nwthomas/deep-learning-research-agent/internal/model"
)

// journalTimeout bounds journal writes made after the request context may
// already be gone.
const journalTimeout = 5 * time.Second

// begin journals a running session. Journal failures are logged and never
// affect the session.
func (d *Driver) begin(ctx context.Context, id, query, source string) *model.ResearchSession {
	now := time.Now().UTC()
	rec := &model.ResearchSession{
		ID:        id,
		Query:     query,
		Source:    source,
		Status:    model.SessionStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if d.journal == nil {
		return rec
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	if err := d.journal.Create(ctx, rec); err != nil {
		d.logger.Warn("failed to journal session", zap.String("session_id", id), zap.Error(err))
	}
	return rec
}

// finish classifies err, journals the outcome and records metrics.
func (d *Driver) finish(rec *model.ResearchSession, out *outbox, err error, start time.Time, log *zap.Logger) {
	outcome := metrics.OutcomeCompleted
	rec.Status = model.SessionStatusCompleted
	switch {
	case err == nil:
	case errors.Is(err, model.ErrTransportDisconnect):
		outcome = metrics.OutcomeDisconnected
		rec.Status = model.SessionStatusDisconnected
	default:
		outcome = metrics.OutcomeFailed
		rec.Status = model.SessionStatusFailed
		rec.ErrorMessage = err.Error()
		rec.ErrorType = ErrorType(err)
	}
	rec.FrameCount = out.frames
	rec.ResultPreview = out.preview.String()
	rec.UpdatedAt = time.Now().UTC()

	elapsed := time.Since(start)
	d.metrics.SessionFinished(outcome, elapsed)

	fields := []zap.Field{
		zap.String("session_id", rec.ID),
		zap.String("status", string(rec.Status)),
		zap.Int("frames", rec.FrameCount),
		zap.Duration("elapsed", elapsed),
	}
	switch rec.Status {
	case model.SessionStatusFailed:
		log.Error("research session failed", append(fields, zap.String("error_type", rec.ErrorType), zap.Error(err))...)
	case model.SessionStatusDisconnected:
		log.Info("client disconnected during research", append(fields, zap.Error(err))...)
	default:
		log.Info("research session completed", fields...)
	}

	if d.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := d.journal.UpdateOutcome(ctx, rec); err != nil {
		log.Warn("failed to journal session outcome", zap.Error(err))
	}
}

// openTranscript starts the session transcript, or returns nil when
// transcripts are disabled or the file cannot be created.
func (d *Driver) openTranscript(id, query string, log *zap.Logger) *logger.Transcript {
	if d.transcriptDir == "" {
		return nil
	}
	tr, err := logger.NewTranscript(d.transcriptDir, id)
	if err != nil {
		log.Warn("failed to create transcript", zap.Error(err))
		return nil
	}
	if err := tr.WriteHeader(id, query); err != nil {
		log.Warn("failed to write transcript header", zap.Error(err))
		tr.Close()
		return nil
	}
	return tr
}
