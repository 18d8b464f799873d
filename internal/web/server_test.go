package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/conorfennell/vocadeck/internal/domain"
	"github.com/conorfennell/vocadeck/internal/review"
	"github.com/conorfennell/vocadeck/internal/storage/jsonstore"
	"github.com/conorfennell/vocadeck/internal/sync"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.Local)

// meaningOf answers study_to_native prompts.
var meaningOf = map[string]string{
	"apple":  "사과",
	"banana": "바나나",
}

func newTestServer(t *testing.T) (*Server, *jsonstore.Store) {
	t.Helper()
	ctx := context.Background()
	store, err := jsonstore.Open(filepath.Join(t.TempDir(), "words.json"))
	require.NoError(t, err)
	require.NoError(t, store.CreateDeck(ctx, "english", domain.DeckSettings{NativeLanguage: "ko", StudyLanguage: "en"}))
	for term, meaning := range meaningOf {
		require.NoError(t, store.InsertWordEntry(ctx, "english", domain.NewWordEntry(term, []string{meaning}, "", t0.Add(-time.Hour), 0)))
	}

	svc := review.NewService(store, review.Options{Seed: 1}, zap.NewNop())
	srv := NewServer(store, svc, nil, zap.NewNop())
	srv.now = func() time.Time { return t0 }
	return srv, store
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func startSession(t *testing.T, srv *Server) string {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/decks/english/sessions", startRequest{Direction: "study_to_native"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[sessionResponse](t, rec)
	assert.Equal(t, 2, resp.Remaining)
	assert.Equal(t, "active", resp.State)
	return resp.SessionID
}

func nextQuestion(t *testing.T, srv *Server, id string) questionResponse {
	t.Helper()
	rec := do(t, srv, http.MethodGet, "/sessions/"+id+"/question", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[questionResponse](t, rec)
}

func answer(t *testing.T, srv *Server, id, response string) answerResponse {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/sessions/"+id+"/answer", answerRequest{Response: response})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[answerResponse](t, rec)
}

func TestReviewSessionFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	id := startSession(t, srv)

	for i := 0; i < 2; i++ {
		q := nextQuestion(t, srv, id)
		assert.Equal(t, "objective", q.Mode)
		assert.Equal(t, "en", q.Language)
		assert.Contains(t, q.Choices, meaningOf[q.Prompt])

		// Asking again returns the same question.
		again := nextQuestion(t, srv, id)
		assert.Equal(t, q.Prompt, again.Prompt)

		res := answer(t, srv, id, meaningOf[q.Prompt])
		assert.Equal(t, "correct", res.Verdict)
		assert.Equal(t, q.Prompt, res.Term)
		assert.Equal(t, 1, res.Stats.CorrectCount)
		require.NotNil(t, res.Stats.NextReviewAt)
		assert.True(t, t0.Add(time.Hour).Equal(*res.Stats.NextReviewAt))
		assert.Equal(t, i == 0, res.NextQuestionAvailable)
		assert.False(t, res.MistakeReviewOffered)
		assert.Equal(t, i == 1, res.Exhausted)
		assert.Equal(t, "active", res.State, "only finish ends the session")
	}

	rec := do(t, srv, http.MethodGet, "/sessions/"+id+"/question", nil)
	assert.Equal(t, http.StatusGone, rec.Code)
	gone := decode[errorResponse](t, rec)
	assert.Equal(t, "session_exhausted", gone.Error)
	assert.Equal(t, "active", gone.State)

	rec = do(t, srv, http.MethodPost, "/sessions/"+id+"/finish", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := decode[summaryResponse](t, rec)
	assert.Equal(t, 2, summary.StudiedCount)
	assert.Equal(t, 2, summary.Correct)
	assert.Equal(t, 0, summary.Incorrect)
	assert.Empty(t, summary.LogError)
	assert.Len(t, summary.Log.StudiedWords, 2)

	rec = do(t, srv, http.MethodGet, "/sessions/"+id+"/question", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "session_not_found", decode[errorResponse](t, rec).Error)

	rec = do(t, srv, http.MethodGet, "/decks/english/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[reportResponse](t, rec)
	assert.Equal(t, 2, report.TotalCorrect)
	assert.Equal(t, 1.0, report.Accuracy)
	require.Len(t, report.Days, 1)
	assert.Equal(t, "2025-06-15", report.Days[0].Date)

	// Nothing is due any more.
	rec = do(t, srv, http.MethodPost, "/decks/english/sessions", startRequest{Direction: "study_to_native"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "no_words_due", decode[errorResponse](t, rec).Error)
}

func TestMistakeReviewFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	id := startSession(t, srv)

	first := nextQuestion(t, srv, id)
	res := answer(t, srv, id, "wrong")
	assert.Equal(t, "incorrect", res.Verdict)
	assert.Equal(t, []string{meaningOf[first.Prompt]}, res.Answers)

	second := nextQuestion(t, srv, id)
	res = answer(t, srv, id, meaningOf[second.Prompt])
	assert.True(t, res.MistakeReviewOffered)
	assert.Equal(t, "mistake_review_prompt", res.State)

	rec := do(t, srv, http.MethodGet, "/sessions/"+id+"/question", nil)
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, "mistake_review_prompt", decode[errorResponse](t, rec).State)

	rec = do(t, srv, http.MethodPost, "/sessions/"+id+"/mistakes", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	retry := decode[sessionResponse](t, rec)
	assert.Equal(t, "mistake_review_active", retry.State)
	assert.Equal(t, 1, retry.Remaining)

	q := nextQuestion(t, srv, id)
	assert.Equal(t, first.Prompt, q.Prompt)
	res = answer(t, srv, id, meaningOf[q.Prompt])
	assert.Equal(t, "correct", res.Verdict)
	assert.False(t, res.MistakeReviewOffered)

	rec = do(t, srv, http.MethodPost, "/sessions/"+id+"/finish", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[summaryResponse](t, rec)
	assert.Equal(t, 2, summary.StudiedCount)
	assert.Equal(t, 2, summary.Correct)
	assert.Equal(t, 1, summary.Incorrect)
}

func TestRequestErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	testCases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{name: "unknown deck", method: http.MethodPost, path: "/decks/french/sessions", body: startRequest{Direction: "study_to_native"}, status: http.StatusNotFound, code: "unknown_deck"},
		{name: "bad direction", method: http.MethodPost, path: "/decks/english/sessions", body: startRequest{Direction: "sideways"}, status: http.StatusBadRequest, code: "invalid_direction"},
		{name: "due without direction", method: http.MethodGet, path: "/decks/english/due", status: http.StatusBadRequest, code: "invalid_direction"},
		{name: "unknown session", method: http.MethodPost, path: "/sessions/nope/answer", body: answerRequest{Response: "x"}, status: http.StatusNotFound, code: "session_not_found"},
		{name: "stats of unknown deck", method: http.MethodGet, path: "/decks/french/stats", status: http.StatusNotFound, code: "unknown_deck"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, srv, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, decode[errorResponse](t, rec).Error)
		})
	}
}

func TestSessionStateErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	id := startSession(t, srv)

	rec := do(t, srv, http.MethodPost, "/sessions/"+id+"/answer", answerRequest{Response: "사과"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "no_pending_question", decode[errorResponse](t, rec).Error)

	rec = do(t, srv, http.MethodPost, "/sessions/"+id+"/mistakes", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", decode[errorResponse](t, rec).Error)

	// Finishing early is allowed and records nothing studied.
	rec = do(t, srv, http.MethodPost, "/sessions/"+id+"/finish", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[summaryResponse](t, rec).StudiedCount)
}

func TestDiscardSession(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()
	id := startSession(t, srv)

	q := nextQuestion(t, srv, id)
	answer(t, srv, id, meaningOf[q.Prompt])

	rec := do(t, srv, http.MethodDelete, "/sessions/"+id, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	// The answered word keeps its new stats.
	w, err := store.GetWord(ctx, "english", q.Prompt)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, 1, w.ReviewStats[domain.StudyToNative].CorrectCount)

	// A discarded session leaves no study log entry.
	day, err := store.GetDailyLog(ctx, "english", t0.Format(domain.DateLayout))
	require.NoError(t, err)
	assert.Nil(t, day)

	rec = do(t, srv, http.MethodPost, "/sessions/"+id+"/finish", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, srv, http.MethodDelete, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodGet, "/metrics", nil)
	assert.Contains(t, rec.Body.String(), `review_sessions_total{outcome="discarded"}`)
}

func TestIdleSessionEviction(t *testing.T) {
	srv, store := newTestServer(t)
	srv.sessionTTL = 30 * time.Minute
	now := t0
	srv.now = func() time.Time { return now }

	stale := startSession(t, srv)
	now = now.Add(20 * time.Minute)
	nextQuestion(t, srv, stale)

	// Touching the session resets its idle clock.
	now = now.Add(20 * time.Minute)
	nextQuestion(t, srv, stale)

	now = now.Add(31 * time.Minute)
	rec := do(t, srv, http.MethodGet, "/sessions/"+stale+"/question", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "session_not_found", decode[errorResponse](t, rec).Error)

	day, err := store.GetDailyLog(context.Background(), "english", t0.Format(domain.DateLayout))
	require.NoError(t, err)
	assert.Nil(t, day, "evicted sessions are not finished")
}

func TestSessionTTLDisabled(t *testing.T) {
	srv, _ := newTestServer(t)
	now := t0
	srv.now = func() time.Time { return now }

	id := startSession(t, srv)
	now = now.Add(48 * time.Hour)
	nextQuestion(t, srv, id)
}

func TestGetDue(t *testing.T) {
	srv, store := newTestServer(t)
	require.NoError(t, store.InsertWordEntry(context.Background(), "english",
		domain.NewWordEntry("cherry", []string{"체리"}, "", t0, time.Hour)))

	rec := do(t, srv, http.MethodGet, "/decks/english/due?direction=native_to_study", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[dueResponse](t, rec)
	assert.Equal(t, 2, resp.Count)
	for _, w := range resp.Words {
		assert.NotEqual(t, "cherry", w.Term)
	}
}

func TestSources(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/sources", sourceRequest{Deck: "english", Path: "https://github.com/user/words.git"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[domain.Source](t, rec)
	assert.Equal(t, domain.GitSource, created.Type)

	rec = do(t, srv, http.MethodPost, "/sources", sourceRequest{Deck: "english"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/sources", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Source](t, rec), 1)

	rec = do(t, srv, http.MethodDelete, "/sources/1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodGet, "/sources", nil)
	assert.Empty(t, decode[[]domain.Source](t, rec))

	rec = do(t, srv, http.MethodPost, "/sync", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fakeSyncer struct {
	reports []sync.Report
}

func (f fakeSyncer) RunSync(context.Context) ([]sync.Report, error) {
	return f.reports, nil
}

func TestPostSync(t *testing.T) {
	_, store := newTestServer(t)
	svc := review.NewService(store, review.Options{Seed: 1}, nil)
	srv := NewServer(store, svc, fakeSyncer{reports: []sync.Report{
		{SourceID: 1, Deck: "english", Path: "/words", Added: 2, Merged: 1},
		{SourceID: 2, Deck: "english", Path: "git@github.com:u/w.git", Errors: []error{errors.New("authentication required")}},
	}}, nil)

	rec := do(t, srv, http.MethodPost, "/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reports := decode[[]syncReport](t, rec)
	require.Len(t, reports, 2)
	assert.Equal(t, 2, reports[0].Added)
	assert.Equal(t, 1, reports[0].Merged)
	assert.Equal(t, []string{"authentication required"}, reports[1].Errors)
}

func TestMetrics(t *testing.T) {
	srv, _ := newTestServer(t)
	id := startSession(t, srv)
	q := nextQuestion(t, srv, id)
	answer(t, srv, id, meaningOf[q.Prompt])

	rec := do(t, srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `review_answers_total{mode="objective",verdict="correct"}`)
	assert.Contains(t, body, `review_sessions_total{outcome="started"}`)
	assert.Contains(t, body, `http_requests_total{endpoint="POST /sessions/{id}/answer",method="POST",status="200"}`)
}

func TestWordManagement(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	rec := do(t, srv, http.MethodGet, "/decks/english/words", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	words := decode[[]wordDetailResponse](t, rec)
	require.Len(t, words, 2)
	assert.Equal(t, "apple", words[0].Term)
	assert.Equal(t, "banana", words[1].Term)
	assert.Contains(t, words[0].Stats, "study_to_native")

	rec = do(t, srv, http.MethodGet, "/decks/english/words/apple", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"사과"}, decode[wordDetailResponse](t, rec).Meanings)

	example := "A red apple."
	rec = do(t, srv, http.MethodPut, "/decks/english/words/apple", wordUpdateRequest{Meanings: []string{" 사과 ", "애플"}, Example: &example})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	apple, err := store.GetWord(ctx, "english", "apple")
	require.NoError(t, err)
	assert.Equal(t, []string{"사과", "애플"}, apple.Meanings)
	assert.Equal(t, example, apple.Example)

	// Omitting the example keeps it.
	rec = do(t, srv, http.MethodPut, "/decks/english/words/apple", wordUpdateRequest{Meanings: []string{"사과"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, example, decode[wordDetailResponse](t, rec).Example)

	rec = do(t, srv, http.MethodDelete, "/decks/english/words/banana", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	banana, err := store.GetWord(ctx, "english", "banana")
	require.NoError(t, err)
	assert.Nil(t, banana)

	testCases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{name: "get unknown word", method: http.MethodGet, path: "/decks/english/words/banana", status: http.StatusNotFound, code: "unknown_word"},
		{name: "delete unknown word", method: http.MethodDelete, path: "/decks/english/words/banana", status: http.StatusNotFound, code: "unknown_word"},
		{name: "edit unknown word", method: http.MethodPut, path: "/decks/english/words/banana", body: wordUpdateRequest{Meanings: []string{"바나나"}}, status: http.StatusNotFound, code: "unknown_word"},
		{name: "edit without meanings", method: http.MethodPut, path: "/decks/english/words/apple", body: wordUpdateRequest{}, status: http.StatusBadRequest, code: "invalid_request"},
		{name: "edit with blank meaning", method: http.MethodPut, path: "/decks/english/words/apple", body: wordUpdateRequest{Meanings: []string{"  "}}, status: http.StatusBadRequest, code: "invalid_request"},
		{name: "list unknown deck", method: http.MethodGet, path: "/decks/french/words", status: http.StatusNotFound, code: "unknown_deck"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, srv, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, decode[errorResponse](t, rec).Error)
		})
	}
}

func TestDeleteDeck(t *testing.T) {
	srv, store := newTestServer(t)
	id := startSession(t, srv)

	rec := do(t, srv, http.MethodDelete, "/decks/english", nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	names, err := store.ListDecks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)

	rec = do(t, srv, http.MethodGet, "/sessions/"+id+"/question", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "sessions of the deck are dropped")

	rec = do(t, srv, http.MethodDelete, "/decks/english", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unknown_deck", decode[errorResponse](t, rec).Error)
}
