package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/jonathan/doc-composer/internal/assemble"
	"github.com/jonathan/doc-composer/internal/excel"
	"github.com/jonathan/doc-composer/internal/mapping"
)

// errorResponse writes the structured error body.
func (s *Server) errorResponse(w http.ResponseWriter, status int, kind, message string) {
	s.jsonResponse(w, status, map[string]string{"error": kind, "message": message})
}

// generateError translates a pipeline error into the taxonomy response:
// configuration problems are unprocessable, rendering and assembly
// problems are internal.
func (s *Server) generateError(w http.ResponseWriter, requestID string, err error) {
	kind, status := classifyError(err)
	log.Printf("[GENERATE] %s failed (%s): %v", requestID, kind, err)
	s.errorResponse(w, status, kind, err.Error())
}

func classifyError(err error) (string, int) {
	var ae *assemble.Error
	if errors.As(err, &ae) {
		switch ae.Kind {
		case assemble.KindInvalidPlan, assemble.KindUnknownEnricher,
			assemble.KindUnknownSectionType, assemble.KindUnknownGenerator,
			assemble.KindTemplateNotFound:
			return string(ae.Kind), http.StatusUnprocessableEntity
		default:
			return string(ae.Kind), http.StatusInternalServerError
		}
	}

	var ve *mapping.ValidationError
	if errors.As(err, &ve) {
		return "MappingInvalid", http.StatusUnprocessableEntity
	}
	var ce *mapping.ComposeError
	if errors.As(err, &ce) {
		return "MappingInvalid", http.StatusUnprocessableEntity
	}
	if errors.Is(err, excel.ErrRendererUnavailable) {
		return "RendererUnavailable", http.StatusInternalServerError
	}
	return "AssemblyFailure", http.StatusInternalServerError
}
