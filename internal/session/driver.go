// Package session drives one research session: it reads the request, runs
// a freshly built agent and streams the translated frames back.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/nwthomas/deep-learning-research-agent/internal/agent"
	"github.com/nwthomas/deep-learning-research-agent/internal/llm"
	"github.com/nwthomas/deep-learning-research-agent/internal/metrics"
	"github.com/nwthomas/deep-learning-research-agent/internal/model"
	"github.com/nwthomas/deep-learning-research-agent/internal/translator"
	"github.com/nwthomas/deep-learning-research-agent/internal/transport"
)

var tracer = otel.Tracer("github.com/nwthomas/deep-learning-research-agent/internal/session")

// EngineFactory builds a fresh agent for every session.
type EngineFactory interface {
	Build(ctx context.Context) (agent.Engine, error)
}

// Releaser frees the connection slot of a finished session.
type Releaser interface {
	Release(connID string)
}

// Journal persists session records.
type Journal interface {
	Create(ctx context.Context, s *model.ResearchSession) error
	UpdateOutcome(ctx context.Context, s *model.ResearchSession) error
}

// Config holds the collaborators of a Driver. Only Factory is required.
type Config struct {
	Factory  EngineFactory
	Releaser Releaser
	Journal  Journal

	// TranscriptDir receives one JSON-lines transcript per session. Empty
	// disables transcripts.
	TranscriptDir string

	// PreviewBytes bounds the result preview kept in the journal. Defaults to 512.
	PreviewBytes int

	Translator *translator.Translator
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// Driver runs research sessions.
type Driver struct {
	factory       EngineFactory
	releaser      Releaser
	journal       Journal
	transcriptDir string
	previewBytes  int
	translator    *translator.Translator
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

// NewDriver creates a new Driver.
func NewDriver(cfg Config) *Driver {
	if cfg.PreviewBytes <= 0 {
		cfg.PreviewBytes = 512
	}
	if cfg.Translator == nil {
		cfg.Translator = translator.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Driver{
		factory:       cfg.Factory,
		releaser:      cfg.Releaser,
		journal:       cfg.Journal,
		transcriptDir: cfg.TranscriptDir,
		previewBytes:  cfg.PreviewBytes,
		translator:    cfg.Translator,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
	}
}

// Run serves one admitted connection: it receives exactly one request,
// acknowledges it, streams the agent's frames as they are produced and ends
// with a completed or error frame. The connection is released on every
// path. A vanished peer ends the session silently.
func (d *Driver) Run(ctx context.Context, connID string, t transport.Transport) {
	if d.releaser != nil {
		defer d.releaser.Release(connID)
	}

	start := time.Now()
	log := d.logger.With(zap.String("conn_id", connID))

	// a read does not watch ctx; closing the transport is what unblocks it
	stop := context.AfterFunc(ctx, func() { _ = t.Close() })
	raw, err := t.Receive()
	stop()
	if err != nil && !errors.Is(err, model.ErrMalformedInput) {
		log.Info("client left before sending a request", zap.Error(err))
		d.metrics.SessionFinished(metrics.OutcomeDisconnected, time.Since(start))
		return
	}

	var req *model.ResearchRequest
	if err == nil {
		req, err = model.ParseResearchRequest(raw)
	}
	if err != nil {
		log.Warn("malformed research request", zap.Error(err))
		frame := model.NewError(model.ErrorData{
			Message:   malformedMessage(err),
			ErrorType: ErrorType(err),
		}, model.Now())
		if err := newOutbox(t, d.metrics, 1, log).send(frame); err != nil {
			log.Debug("error frame not delivered", zap.Error(err))
		}
		d.metrics.SessionFinished(metrics.OutcomeMalformed, time.Since(start))
		return
	}

	ctx, span := tracer.Start(ctx, "session.run", trace.WithAttributes(
		attribute.String("session.id", connID),
		attribute.String("session.source", model.SourceWebSocket),
	))
	defer span.End()

	rec := d.begin(ctx, connID, req.Query, model.SourceWebSocket)
	out := newOutbox(t, d.metrics, d.previewBytes, log)
	out.transcript = d.openTranscript(connID, req.Query, log)
	defer out.close()

	status := model.StatusUpdate{
		Graph:   "system",
		Node:    "connection",
		Status:  model.StatusConnected,
		Message: "Starting research for: " + req.Query,
	}
	if err := out.send(model.NewStatusUpdate(status, model.Now())); err != nil {
		d.finish(rec, out, err, start, log)
		return
	}

	_, err = d.execute(ctx, req.Query, out.send)
	switch {
	case err == nil:
		err = out.send(model.NewCompleted(model.Completed{
			Message:    msgCompleted,
			FinalState: "completed",
		}, model.Now()))
	case !errors.Is(err, model.ErrTransportDisconnect):
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		frame := model.NewError(model.ErrorData{
			Message:   fmt.Sprintf("%s: %v", msgAgentFailed, err),
			ErrorType: ErrorType(err),
		}, model.Now())
		if sendErr := out.send(frame); sendErr != nil {
			log.Debug("error frame not delivered", zap.Error(sendErr))
		}
	}
	d.finish(rec, out, err, start, log)
}

// Research runs one query to completion without streaming and returns the
// supervisor's final answer.
func (d *Driver) Research(ctx context.Context, query string) (*model.ResearchResponse, error) {
	req := &model.ResearchRequest{Query: query}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrMalformedInput, err)
	}

	id := uuid.New().String()
	start := time.Now()
	log := d.logger.With(zap.String("session_id", id))

	ctx, span := tracer.Start(ctx, "session.research", trace.WithAttributes(
		attribute.String("session.id", id),
		attribute.String("session.source", model.SourceHTTP),
	))
	defer span.End()

	rec := d.begin(ctx, id, query, model.SourceHTTP)
	out := newOutbox(nil, nil, d.previewBytes, log)
	out.transcript = d.openTranscript(id, query, log)
	defer out.close()

	final, err := d.execute(ctx, query, out.send)
	d.finish(rec, out, err, start, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%s: %w", strings.ToLower(msgAgentFailed), err)
	}

	result := finalAnswer(final)
	if result == "" {
		result = msgNoOutput
	}
	return &model.ResearchResponse{
		Query:  query,
		Result: result,
		Status: "completed",
	}, nil
}

// execute builds a fresh agent and streams it, handing every frame to emit
// as soon as it is translated. It returns the last values snapshot.
func (d *Driver) execute(ctx context.Context, query string, emit func(model.EventFrame) error) (agent.State, error) {
	if d.factory == nil {
		return agent.State{}, errors.New("no agent factory configured")
	}
	engine, err := d.factory.Build(ctx)
	if err != nil {
		return agent.State{}, err
	}

	var final agent.State
	input := agent.State{Messages: []llm.Message{llm.HumanMessage(query)}}
	err = engine.Stream(ctx, input, func(ev agent.Event) error {
		if ev.Mode == agent.ModeValues {
			if len(ev.Path) == 0 {
				final = ev.Values
			}
			return nil
		}
		for _, frame := range d.translator.Translate(ev) {
			if err := emit(frame); err != nil {
				return err
			}
		}
		return nil
	})
	return final, err
}

// finalAnswer is the text of the last AI message of the final state.
func finalAnswer(s agent.State) string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == llm.RoleAI {
			if text := strings.TrimSpace(translator.ExtractText(s.Messages[i].Content)); text != "" {
				return text
			}
		}
	}
	return ""
}
