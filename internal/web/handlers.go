package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/conorfennell/vocadeck/internal/domain"
	"github.com/conorfennell/vocadeck/internal/review"
	"github.com/conorfennell/vocadeck/internal/studylog"
)

var errSessionNotFound = errors.New("session not found")

type statsResponse struct {
	CorrectCount   int        `json:"correct_count"`
	IncorrectCount int        `json:"incorrect_count"`
	QuestionMode   string     `json:"question_mode"`
	LastReviewedAt *time.Time `json:"last_reviewed_at"`
	NextReviewAt   *time.Time `json:"next_review_at"`
}

func toStats(st domain.DirectionStats) statsResponse {
	return statsResponse{
		CorrectCount:   st.CorrectCount,
		IncorrectCount: st.IncorrectCount,
		QuestionMode:   string(st.QuestionMode),
		LastReviewedAt: st.LastReviewedAt,
		NextReviewAt:   st.NextReviewAt,
	}
}

type wordResponse struct {
	Term     string        `json:"term"`
	Meanings []string      `json:"meanings"`
	Example  string        `json:"example,omitempty"`
	Stats    statsResponse `json:"stats"`
}

type dueResponse struct {
	Deck      string         `json:"deck"`
	Direction string         `json:"direction"`
	Count     int            `json:"count"`
	Words     []wordResponse `json:"words"`
}

type startRequest struct {
	Direction string `json:"direction"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	Deck      string `json:"deck"`
	Direction string `json:"direction"`
	State     string `json:"state"`
	Remaining int    `json:"remaining"`
}

type questionResponse struct {
	Direction string   `json:"direction"`
	Mode      string   `json:"mode"`
	Prompt    string   `json:"prompt"`
	Language  string   `json:"language"`
	Choices   []string `json:"choices,omitempty"`
	Remaining int      `json:"remaining"`
}

type answerRequest struct {
	Response string `json:"response"`
}

type answerResponse struct {
	Term                  string        `json:"term"`
	Verdict               string        `json:"verdict"`
	Suggestion            string        `json:"suggestion,omitempty"`
	Answers               []string      `json:"answers"`
	Stats                 statsResponse `json:"stats"`
	NextQuestionAvailable bool          `json:"next_question_available"`
	MistakeReviewOffered  bool          `json:"mistake_review_offered"`
	SaveError             string        `json:"save_error,omitempty"`
	State                 string        `json:"state"`
	// Exhausted is set once only finishing the session remains.
	Exhausted             bool          `json:"exhausted"`
}

type summaryResponse struct {
	StudiedCount int             `json:"studied_count"`
	Correct      int             `json:"correct"`
	Incorrect    int             `json:"incorrect"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
	Log          domain.DailyLog `json:"daily_log"`
	LogError     string          `json:"log_error,omitempty"`
}

type dayResponse struct {
	Date string `json:"date"`
	domain.DailyLog
}

type reportResponse struct {
	Deck           string        `json:"deck"`
	TotalMinutes   int           `json:"total_minutes"`
	TotalCorrect   int           `json:"total_correct"`
	TotalIncorrect int           `json:"total_incorrect"`
	Accuracy       float64       `json:"accuracy"`
	Days           []dayResponse `json:"days"`
}

type sourceRequest struct {
	Deck string `json:"deck"`
	Path string `json:"path"`
}

// errorStatus maps review errors to an HTTP status and a stable error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, review.ErrNoWordsDue):
		return http.StatusConflict, "no_words_due"
	case errors.Is(err, review.ErrUnknownDeck):
		return http.StatusNotFound, "unknown_deck"
	case errors.Is(err, review.ErrUnknownWord):
		return http.StatusNotFound, "unknown_word"
	case errors.Is(err, errSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, review.ErrSessionExhausted):
		return http.StatusGone, "session_exhausted"
	case errors.Is(err, review.ErrSessionFinished):
		return http.StatusGone, "session_finished"
	case errors.Is(err, review.ErrNoPendingQuestion):
		return http.StatusConflict, "no_pending_question"
	case errors.Is(err, review.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	}
	return http.StatusInternalServerError, "internal_error"
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	s.writeError(w, status, code, err)
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// handleGetDue lists the words of a deck due now in ?direction=.
func (s *Server) handleGetDue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deck := r.PathValue("deck")
		d, err := domain.ParseDirection(r.URL.Query().Get("direction"))
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid_direction", err)
			return
		}
		words, err := s.svc.SelectDueWords(r.Context(), deck, d, s.now())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		resp := dueResponse{Deck: deck, Direction: string(d), Count: len(words), Words: make([]wordResponse, 0, len(words))}
		for _, word := range words {
			resp.Words = append(resp.Words, wordResponse{
				Term:     word.Term,
				Meanings: word.Meanings,
				Example:  word.Example,
				Stats:    toStats(word.ReviewStats[d]),
			})
		}
		s.writeJSON(w, http.StatusOK, resp)
	}
}

// handleStartSession starts a review session and registers it.
func (s *Server) handleStartSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid_request", err)
			return
		}
		d, err := domain.ParseDirection(req.Direction)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid_direction", err)
			return
		}
		sess, err := s.svc.StartSession(r.Context(), r.PathValue("deck"), d, s.now())
		if errors.Is(err, review.ErrNoWordsDue) {
			reviewSessionsTotal.WithLabelValues("no_words_due").Inc()
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.addSession(sess)
		reviewSessionsTotal.WithLabelValues("started").Inc()

		s.writeJSON(w, http.StatusCreated, sessionResponse{
			SessionID: sess.ID,
			Deck:      sess.Deck(),
			Direction: string(sess.Direction()),
			State:     sess.State().String(),
			Remaining: sess.Remaining(),
		})
	}
}

// withSession looks up the session named in the path and runs fn holding its lock.
func (s *Server) withSession(fn func(w http.ResponseWriter, r *http.Request, sess *review.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		ls, ok := s.getSession(id)
		if !ok {
			s.fail(w, r, fmt.Errorf("%w: %s", errSessionNotFound, id))
			return
		}
		ls.mu.Lock()
		defer ls.mu.Unlock()
		fn(w, r, ls.session)
	}
}

// handleDiscard forgets a session without finishing it. Answers already given
// stay saved on their words, but nothing is added to the study log.
func (s *Server) handleDiscard() http.HandlerFunc {
	return s.withSession(func(w http.ResponseWriter, r *http.Request, sess *review.Session) {
		s.dropSession(sess.ID)
		reviewSessionsTotal.WithLabelValues("discarded").Inc()
		w.WriteHeader(http.StatusNoContent)
	})
}

// handleGetQuestion returns the pending question, drawing a new one if needed.
func (s *Server) handleGetQuestion() http.HandlerFunc {
	return s.withSession(func(w http.ResponseWriter, r *http.Request, sess *review.Session) {
		q, err := sess.NextQuestion()
		if errors.Is(err, review.ErrSessionExhausted) {
			s.writeJSON(w, http.StatusGone, errorResponse{
				Error:   "session_exhausted",
				Message: err.Error(),
				State:   sess.State().String(),
			})
			return
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, questionResponse{
			Direction: string(q.Direction),
			Mode:      string(q.Mode),
			Prompt:    q.Prompt,
			Language:  q.Language,
			Choices:   q.Choices,
			Remaining: sess.Remaining(),
		})
	})
}

// handlePostAnswer grades the response to the pending question.
func (s *Server) handlePostAnswer() http.HandlerFunc {
	return s.withSession(func(w http.ResponseWriter, r *http.Request, sess *review.Session) {
		var req answerRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid_request", err)
			return
		}
		// The word is written back even if the client goes away mid-request.
		ctx := context.WithoutCancel(r.Context())
		res, err := sess.SubmitAnswer(ctx, req.Response, s.now())
		if err != nil {
			if sess.State() == review.Finished {
				s.dropSession(sess.ID)
				reviewSessionsTotal.WithLabelValues("aborted").Inc()
			}
			s.fail(w, r, err)
			return
		}
		reviewAnswersTotal.WithLabelValues(res.Verdict.Outcome.String(), string(res.Stats.QuestionMode)).Inc()

		resp := answerResponse{
			Term:                  res.Term,
			Verdict:               res.Verdict.Outcome.String(),
			Suggestion:            res.Verdict.Suggestion,
			Answers:               res.Answers,
			Stats:                 toStats(res.Stats),
			NextQuestionAvailable: res.NextQuestionAvailable,
			MistakeReviewOffered:  res.MistakeReviewOffered,
			State:                 sess.State().String(),
			Exhausted:             sess.Exhausted(),
		}
		if res.SaveErr != nil {
			resp.SaveError = res.SaveErr.Error()
		}
		s.writeJSON(w, http.StatusOK, resp)
	})
}

// handleRetryMistakes accepts the mistake-review prompt.
func (s *Server) handleRetryMistakes() http.HandlerFunc {
	return s.withSession(func(w http.ResponseWriter, r *http.Request, sess *review.Session) {
		if err := sess.RetryMistakes(); err != nil {
			s.fail(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, sessionResponse{
			SessionID: sess.ID,
			Deck:      sess.Deck(),
			Direction: string(sess.Direction()),
			State:     sess.State().String(),
			Remaining: sess.Remaining(),
		})
	})
}

// handleFinish ends the session, records it in the study log and forgets it.
func (s *Server) handleFinish() http.HandlerFunc {
	return s.withSession(func(w http.ResponseWriter, r *http.Request, sess *review.Session) {
		summary, err := sess.Finish(context.WithoutCancel(r.Context()), s.now())
		if errors.Is(err, review.ErrSessionFinished) {
			s.dropSession(sess.ID)
			s.fail(w, r, err)
			return
		}
		s.dropSession(sess.ID)
		reviewSessionsTotal.WithLabelValues("finished").Inc()

		resp := summaryResponse{
			StudiedCount: summary.StudiedCount,
			Correct:      summary.Correct,
			Incorrect:    summary.Incorrect,
			StartedAt:    summary.StartedAt,
			FinishedAt:   summary.FinishedAt,
			Log:          summary.Log,
		}
		if err != nil {
			resp.LogError = err.Error()
		}
		s.writeJSON(w, http.StatusOK, resp)
	})
}

// handleGetStats reports the study log of a deck.
func (s *Server) handleGetStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deck := r.PathValue("deck")
		log, err := s.store.GetStudyLog(r.Context(), deck)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		report := studylog.Summarize(log)
		resp := reportResponse{
			Deck:           deck,
			TotalMinutes:   report.TotalMinutes,
			TotalCorrect:   report.TotalCorrect,
			TotalIncorrect: report.TotalIncorrect,
			Accuracy:       report.Accuracy,
			Days:           make([]dayResponse, 0, len(report.Days)),
		}
		for _, day := range report.Days {
			resp.Days = append(resp.Days, dayResponse{Date: day.Date, DailyLog: day.DailyLog})
		}
		s.writeJSON(w, http.StatusOK, resp)
	}
}

// handleGetSources lists every word-list source.
func (s *Server) handleGetSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources, err := s.store.ListSources(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, sources)
	}
}

// handlePostSource attaches a local directory or git repository to a deck.
func (s *Server) handlePostSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sourceRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid_request", err)
			return
		}
		if req.Deck == "" || req.Path == "" {
			s.writeError(w, http.StatusBadRequest, "invalid_request", errors.New("deck and path are required"))
			return
		}
		typ := domain.DetectSourceType(req.Path)
		id, err := s.store.InsertSource(r.Context(), req.Deck, req.Path, typ)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, domain.Source{ID: id, Deck: req.Deck, Path: req.Path, Type: typ})
	}
}

// handleDeleteSource detaches a source. Its words stay in the deck.
func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid_source_id", err)
			return
		}
		if err := s.store.DeleteSource(r.Context(), id); err != nil {
			s.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type syncReport struct {
	SourceID   int64    `json:"source_id"`
	Deck       string   `json:"deck"`
	Path       string   `json:"path"`
	Added      int      `json:"added"`
	Merged     int      `json:"merged"`
	Duplicates int      `json:"duplicates"`
	Errors     []string `json:"errors,omitempty"`
}

// handlePostSync triggers a sync in the foreground and reports per source.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reports, err := s.syncer.RunSync(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		resp := make([]syncReport, 0, len(reports))
		for _, rep := range reports {
			sr := syncReport{
				SourceID:   rep.SourceID,
				Deck:       rep.Deck,
				Path:       rep.Path,
				Added:      rep.Added,
				Merged:     rep.Merged,
				Duplicates: rep.Duplicates,
			}
			for _, e := range rep.Errors {
				sr.Errors = append(sr.Errors, e.Error())
			}
			resp = append(resp, sr)
		}
		s.writeJSON(w, http.StatusOK, resp)
	}
}
