package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jonathan/doc-composer/internal/mapping"
	"github.com/jonathan/doc-composer/internal/preprocess"
	"github.com/jonathan/doc-composer/internal/value"
)

// GenerateRequest is the body of the generate endpoints.
type GenerateRequest struct {
	TemplateName    string          `json:"templateName" validate:"required"`
	ClientService   string          `json:"clientService" validate:"required"`
	Label           string          `json:"label"`
	ProductType     string          `json:"productType"`
	MarketCategory  string          `json:"marketCategory"`
	State           string          `json:"state"`
	Payload         json.RawMessage `json:"payload"`
	MappingOverride string          `json:"mappingOverride"`
}

// parseGenerateRequest decodes, validates, and converts the request
// into a mapping request. A nil return means the error response has
// already been written.
func (s *Server) parseGenerateRequest(w http.ResponseWriter, r *http.Request) *mapping.Request {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "ValidationError", "invalid request body: "+err.Error())
		return nil
	}
	if err := s.validate.Struct(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			s.errorResponse(w, http.StatusBadRequest, "ValidationError", verrs[0].Field()+" is required")
			return nil
		}
		s.errorResponse(w, http.StatusBadRequest, "ValidationError", err.Error())
		return nil
	}

	payload := value.NewMap()
	if len(req.Payload) > 0 {
		decoded, err := value.DecodeJSONMap(req.Payload)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "ValidationError", "payload must be a JSON object: "+err.Error())
			return nil
		}
		payload = decoded
	}

	return &mapping.Request{
		TemplateName:    req.TemplateName,
		ClientService:   req.ClientService,
		Label:           req.Label,
		ProductType:     req.ProductType,
		MarketCategory:  req.MarketCategory,
		State:           req.State,
		Payload:         payload,
		MappingOverride: req.MappingOverride,
	}
}

// handleGenerate composes the mapping document for the request and
// produces the PDF it describes.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req := s.parseGenerateRequest(w, r)
	if req == nil {
		return
	}
	requestID := uuid.NewString()
	log.Printf("[GENERATE] %s template=%s client=%s", requestID, req.TemplateName, req.ClientService)

	doc, err := s.composer.ComposeDocument(r.Context(), req)
	if err != nil {
		s.generateError(w, requestID, err)
		return
	}
	if err := mapping.ValidateTree(doc.Tree); err != nil {
		s.generateError(w, requestID, err)
		return
	}

	payload := s.preprocessed(r.Context(), doc, req)

	plan, hasPlan, err := s.plans.Resolve(r.Context(), doc.Tree)
	if err != nil {
		s.generateError(w, requestID, err)
		return
	}
	var out []byte
	if hasPlan {
		out, err = s.assembler.Generate(r.Context(), plan, payload)
	} else {
		out, err = s.assembler.RenderSingle(r.Context(), doc, payload)
	}
	if err != nil {
		s.generateError(w, requestID, err)
		return
	}

	log.Printf("[GENERATE] %s produced %d bytes", requestID, len(out))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+req.TemplateName+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// handleGenerateExcel fills the workbook the mapping document
// describes.
func (s *Server) handleGenerateExcel(w http.ResponseWriter, r *http.Request) {
	req := s.parseGenerateRequest(w, r)
	if req == nil {
		return
	}
	requestID := uuid.NewString()
	log.Printf("[GENERATE] %s excel template=%s client=%s", requestID, req.TemplateName, req.ClientService)

	doc, err := s.composer.ComposeDocument(r.Context(), req)
	if err != nil {
		s.generateError(w, requestID, err)
		return
	}
	if err := mapping.ValidateTree(doc.Tree); err != nil {
		s.generateError(w, requestID, err)
		return
	}
	payload := s.preprocessed(r.Context(), doc, req)

	out, err := s.assembler.GenerateExcel(r.Context(), doc, payload)
	if err != nil {
		s.generateError(w, requestID, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+req.TemplateName+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// handleCandidates previews the candidate resolution for a request
// without generating anything.
func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	req := s.parseGenerateRequest(w, r)
	if req == nil {
		return
	}
	candidates := s.composer.Candidates(req)
	tree := s.composer.Compose(r.Context(), req, candidates)

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"candidateOrder": s.composer.CandidateOrder(),
		"candidates":     candidates,
		"composedKeys":   tree.Keys(),
	})
}

// handleCacheStats reports hit/miss counters for every registered
// cache.
func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{"caches": s.caches.Stats()})
}

// handleCacheEvict clears every registered cache plus the parsed
// preprocessing rules.
func (s *Server) handleCacheEvict(w http.ResponseWriter, _ *http.Request) {
	s.caches.ClearAll()
	s.rules.Reset()
	log.Printf("[ADMIN] all caches evicted")
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "evicted"})
}

// handleFunctions lists the registered payload functions.
func (s *Server) handleFunctions(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"functions": s.assembler.Functions().Descriptions(),
	})
}

// preprocessed applies the document's preprocessing rules to the
// request payload. The extracted fields are added next to the original
// structure, never over it. Unavailable rules files degrade to the raw
// payload.
func (s *Server) preprocessed(ctx context.Context, doc *mapping.Document, req *mapping.Request) *value.Map {
	rules, err := s.rules.ForDocument(ctx, req.Label, doc.Tree)
	if err != nil {
		log.Printf("[GENERATE] preprocessing rules unavailable: %v", err)
		return req.Payload
	}
	if rules == nil || rules.Empty() {
		return req.Payload
	}
	return preprocess.Enrich(req.Payload, rules)
}
