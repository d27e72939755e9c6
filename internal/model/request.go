package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ResearchRequest is the single request a client submits at session start.
type ResearchRequest struct {
	Query string `json:"query" binding:"required"`
}

// Validate validates the research request.
func (r *ResearchRequest) Validate() error {
	if r.Query == "" {
		return ErrQueryRequired
	}
	return nil
}

// SyntaxError reports whether err came from a frame that was not JSON at all.
type SyntaxError struct {
	Err error
}

func (e *SyntaxError) Error() string { return "invalid JSON: " + e.Err.Error() }

func (e *SyntaxError) Unwrap() error { return e.Err }

// Is makes a SyntaxError match ErrMalformedInput.
func (e *SyntaxError) Is(target error) bool { return target == ErrMalformedInput }

// ParseResearchRequest decodes one text frame into a ResearchRequest.
// Unknown fields and a missing or empty query are
// reported as ErrMalformedInput; non-JSON input is additionally a *SyntaxError.
func ParseResearchRequest(frame []byte) (*ResearchRequest, error) {
	if !json.Valid(frame) {
		var v any
		err := json.Unmarshal(frame, &v)
		if err == nil {
			err = fmt.Errorf("invalid JSON")
		}
		return nil, &SyntaxError{Err: err}
	}

	dec := json.NewDecoder(bytes.NewReader(frame))
	dec.DisallowUnknownFields()

	var req ResearchRequest
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}
	return &req, nil
}
