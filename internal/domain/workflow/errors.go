package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
)

var (
	// ErrUnauthorizedTransition is returned when the actor's role may not act on the stage
	ErrUnauthorizedTransition = errors.New("unauthorized transition")

	// ErrInvalidActionAtStage is returned when the stage declares no target for the action
	ErrInvalidActionAtStage = errors.New("invalid action at stage")

	// ErrStaleState is returned when the record moved since the caller read it
	ErrStaleState = errors.New("stale workflow state")

	// ErrNoteRequired is returned when a rejection carries no reason
	ErrNoteRequired = errors.New("note is required")

	// ErrUnknownGraph is returned when no stage graph is registered for a document type
	ErrUnknownGraph = errors.New("unknown stage graph")

	// ErrInvalidStage is returned when a stage is not part of the graph
	ErrInvalidStage = errors.New("invalid stage")

	// ErrReplayMismatch is returned when the audit trail does not reproduce the current stage
	ErrReplayMismatch = errors.New("stage history replay mismatch")

	// ErrInvalidGraph is returned by the builder for malformed graphs
	ErrInvalidGraph = errors.New("invalid stage graph")
)

// TransitionError reports a refused transition together with the record's
// current stage and the actions the actor may still take from it.
type TransitionError struct {
	Kind         error
	DocumentType entity.DocumentType
	Stage        entity.Stage
	Action       entity.Action
	ActorRole    entity.Role
	Allowed      []entity.Action
}

func (e *TransitionError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, a := range e.Allowed {
		allowed[i] = string(a)
	}
	return fmt.Sprintf("%v: %s by %s on %s at stage %s (allowed: [%s])",
		e.Kind, e.Action, e.ActorRole, e.DocumentType, e.Stage, strings.Join(allowed, ","))
}

func (e *TransitionError) Unwrap() error {
	return e.Kind
}

// AsTransitionError extracts a TransitionError from an error chain
func AsTransitionError(err error) (*TransitionError, bool) {
	var te *TransitionError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
