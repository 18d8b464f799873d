package web

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/conorfennell/vocadeck/internal/domain"
	"github.com/conorfennell/vocadeck/internal/review"
	"github.com/conorfennell/vocadeck/pkg/validator"
)

type wordDetailResponse struct {
	Term      string                   `json:"term"`
	Meanings  []string                 `json:"meanings"`
	Example   string                   `json:"example,omitempty"`
	CreatedAt time.Time                `json:"created_at"`
	Stats     map[string]statsResponse `json:"stats"`
}

func toWordDetail(w domain.WordEntry) wordDetailResponse {
	resp := wordDetailResponse{
		Term:      w.Term,
		Meanings:  w.Meanings,
		Example:   w.Example,
		CreatedAt: w.CreatedAt,
		Stats:     make(map[string]statsResponse, len(w.ReviewStats)),
	}
	for d, st := range w.ReviewStats {
		resp.Stats[string(d)] = toStats(st)
	}
	return resp
}

type wordUpdateRequest struct {
	Meanings []string `json:"meanings" validate:"required,min=1,dive,required"`
	Example  *string  `json:"example"`
}

// handleListWords lists every word of a deck, sorted by term.
func (s *Server) handleListWords() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		words, err := s.store.ListWords(r.Context(), r.PathValue("deck"))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		resp := make([]wordDetailResponse, 0, len(words))
		for _, word := range words {
			resp = append(resp, toWordDetail(word))
		}
		s.writeJSON(w, http.StatusOK, resp)
	}
}

// handleGetWord returns one word with the stats of both directions.
func (s *Server) handleGetWord() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deck, term := r.PathValue("deck"), r.PathValue("term")
		word, err := s.store.GetWord(r.Context(), deck, term)
		if err == nil && word == nil {
			err = fmt.Errorf("word %s: %w", term, review.ErrUnknownWord)
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, toWordDetail(*word))
	}
}

// handlePutWord replaces the meanings of a word and, if given, its example.
func (s *Server) handlePutWord() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req wordUpdateRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid_request", err)
			return
		}
		for i := range req.Meanings {
			req.Meanings[i] = strings.TrimSpace(req.Meanings[i])
		}
		if err := validator.ValidateStruct(req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid_request", err)
			return
		}

		deck, term := r.PathValue("deck"), r.PathValue("term")
		word, err := s.store.GetWord(r.Context(), deck, term)
		if err == nil && word == nil {
			err = fmt.Errorf("word %s: %w", term, review.ErrUnknownWord)
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
		word.Meanings = req.Meanings
		if req.Example != nil {
			word.Example = strings.TrimSpace(*req.Example)
		}
		if err := s.store.UpdateWord(r.Context(), deck, *word); err != nil {
			s.fail(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, toWordDetail(*word))
	}
}

// handleDeleteWord removes a word and its review history.
func (s *Server) handleDeleteWord() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.store.DeleteWord(r.Context(), r.PathValue("deck"), r.PathValue("term")); err != nil {
			s.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleDeleteDeck removes a deck and forgets any session still reviewing it.
func (s *Server) handleDeleteDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deck := r.PathValue("deck")
		if err := s.store.DeleteDeck(r.Context(), deck); err != nil {
			s.fail(w, r, err)
			return
		}
		if n := s.dropDeckSessions(deck); n > 0 {
			reviewSessionsTotal.WithLabelValues("discarded").Add(float64(n))
			s.log.Info("discarded sessions of deleted deck", zap.String("deck", deck), zap.Int("sessions", n))
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
