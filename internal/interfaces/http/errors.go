package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ebaz7/lepan-crm-sub000/internal/application/port"
	"github.com/ebaz7/lepan-crm-sub000/internal/application/sequence"
	"github.com/ebaz7/lepan-crm-sub000/internal/application/service"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
	domainwf "github.com/ebaz7/lepan-crm-sub000/internal/domain/workflow"
)

// errInvalidRequest marks malformed request input
var errInvalidRequest = errors.New("invalid request")

// statusFor maps an error chain to an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, errInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, port.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainwf.ErrUnauthorizedTransition):
		return http.StatusForbidden
	case errors.Is(err, domainwf.ErrStaleState), errors.Is(err, port.ErrStaleState):
		return http.StatusConflict
	case errors.Is(err, sequence.ErrInvalidScope),
		errors.Is(err, port.ErrUnknownCompany),
		errors.Is(err, domainwf.ErrInvalidActionAtStage),
		errors.Is(err, domainwf.ErrNoteRequired),
		errors.Is(err, domainwf.ErrUnknownGraph),
		errors.Is(err, domainwf.ErrInvalidStage),
		errors.Is(err, service.ErrInvalidPayload):
		return http.StatusUnprocessableEntity
	case errors.Is(err, port.ErrContention), errors.Is(err, sequence.ErrRetriesExhausted):
		return http.StatusServiceUnavailable
	}
	// DuplicateSequence lands here: a number reused within its scope is a
	// data-integrity failure, not a client error.
	return http.StatusInternalServerError
}

// writeError renders err in the standard envelope. Refused transitions also
// carry the record's current stage and the caller's allowed actions.
func (h *Handlers) writeError(c *gin.Context, err error) {
	status := statusFor(err)

	resp := Response{Success: false, Error: err.Error()}
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.FullPath(), "error", err)
		if !errors.Is(err, port.ErrDuplicateSequence) {
			resp.Error = "internal error"
		}
	}

	if te, ok := domainwf.AsTransitionError(err); ok {
		resp.CurrentStage = te.Stage
		resp.AllowedActions = actionList(te.Allowed)
	}

	c.JSON(status, resp)
}

func actionList(actions []entity.Action) *[]entity.Action {
	if actions == nil {
		actions = []entity.Action{}
	}
	return &actions
}
