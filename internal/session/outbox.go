package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nwthomas/deep-learning-research-agent/internal/buffer"
	"github.com/nwthomas/deep-learning-research-agent/internal/logger"
	"github.com/nwthomas/deep-learning-research-agent/internal/metrics"
	"github.com/nwthomas/deep-learning-research-agent/internal/model"
	"github.com/nwthomas/deep-learning-research-agent/internal/translator"
	"github.com/nwthomas/deep-learning-research-agent/internal/transport"
)

// outbox delivers the frames of one session in order. With a nil transport
// frames are only recorded.
type outbox struct {
	t          transport.Transport
	transcript *logger.Transcript
	metrics    *metrics.Metrics
	preview    *buffer.Tail
	frames     int
	logger     *zap.Logger
}

func newOutbox(t transport.Transport, m *metrics.Metrics, previewBytes int, log *zap.Logger) *outbox {
	return &outbox{t: t, metrics: m, preview: buffer.NewTail(previewBytes), logger: log}
}

// send writes frame to the client immediately. A failure means the peer is
// gone and is reported as model.ErrTransportDisconnect.
func (o *outbox) send(frame model.EventFrame) error {
	if o.t != nil {
		data, err := json.Marshal(frame)
		if err != nil {
			return fmt.Errorf("failed to marshal %s frame: %w", frame.EventType, err)
		}
		if err := o.t.Send(data); err != nil {
			if !errors.Is(err, model.ErrTransportDisconnect) {
				err = fmt.Errorf("%w: %v", model.ErrTransportDisconnect, err)
			}
			return err
		}
		o.metrics.FrameSent(string(frame.EventType))
	}

	o.frames++
	o.record(frame)
	return nil
}

func (o *outbox) record(frame model.EventFrame) {
	if chunk, ok := frame.Data.(model.ResultChunk); ok &&
		chunk.Graph == translator.RootGraph && chunk.MessageType == "AI" {
		if o.preview.Len() > 0 {
			o.preview.WriteString("\n\n")
		}
		o.preview.WriteString(chunk.Content)
	}

	if o.transcript == nil {
		return
	}
	if err := o.transcript.Record(frame); err != nil {
		o.logger.Warn("transcript write failed, disabling transcript", zap.Error(err))
		o.transcript.Close()
		o.transcript = nil
	}
}

func (o *outbox) close() {
	if o.transcript != nil {
		if err := o.transcript.Close(); err != nil {
			o.logger.Warn("failed to close transcript", zap.Error(err))
		}
	}
}
