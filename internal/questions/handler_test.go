package questions

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/meetup-qa/backend/internal/models"
)

type fakeStore struct {
	inputDisabled bool
	questions     map[int64]*models.Question
	people        map[string]*models.Participant
	votes         map[int64]map[string]bool
	nextID        int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		questions: map[int64]*models.Question{},
		votes:     map[int64]map[string]bool{},
		people: map[string]*models.Participant{
			"Host": {Name: "Host", SessionID: 1, IsAdmin: true, RemainingVotes: 5},
			"Mod":  {Name: "Mod", SessionID: 1, IsModerator: true, RemainingVotes: 5},
			"Ann":  {Name: "Ann", SessionID: 1, RemainingVotes: 1},
			"Bob":  {Name: "Bob", SessionID: 1, RemainingVotes: 5},
		},
	}
}

func (f *fakeStore) Create(_ context.Context, sessionID int64, text, author string) (*models.Question, error) {
	if sessionID != 1 {
		return nil, models.ErrNotFound
	}
	if f.inputDisabled {
		return nil, models.ErrQuestionInputDisabled
	}
	f.nextID++
	q := &models.Question{ID: f.nextID, SessionID: sessionID, Text: text, Author: author, Status: models.StatusPending}
	f.questions[q.ID] = q
	return q, nil
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*models.Question, error) {
	if q, ok := f.questions[id]; ok {
		return q, nil
	}
	return nil, models.ErrNotFound
}

func (f *fakeStore) Vote(_ context.Context, questionID int64, name string) (int64, int, error) {
	q, ok := f.questions[questionID]
	if !ok {
		return 0, 0, models.ErrNotFound
	}
	p, ok := f.people[name]
	if !ok || p.SessionID != q.SessionID || p.RemainingVotes == 0 {
		return 0, 0, models.ErrNoVotesRemaining
	}
	if f.votes[questionID][name] {
		return 0, 0, models.ErrAlreadyVoted
	}
	if f.votes[questionID] == nil {
		f.votes[questionID] = map[string]bool{}
	}
	p.RemainingVotes--
	f.votes[questionID][name] = true
	q.Votes = len(f.votes[questionID])
	return q.SessionID, q.Votes, nil
}

func (f *fakeStore) Activate(_ context.Context, sessionID, questionID int64) (int64, error) {
	q, ok := f.questions[questionID]
	if !ok || (sessionID != 0 && q.SessionID != sessionID) {
		return 0, models.ErrNotFound
	}
	for _, other := range f.questions {
		if other.SessionID == q.SessionID && other.Status == models.StatusActive {
			other.Status = models.StatusFinished
		}
	}
	q.Status = models.StatusActive
	return q.SessionID, nil
}

func (f *fakeStore) Auth(_ context.Context, sessionID, questionID int64, name string) (*models.QuestionAuth, error) {
	q, ok := f.questions[questionID]
	if !ok || q.SessionID != sessionID {
		return nil, models.ErrNotFound
	}
	a := &models.QuestionAuth{Author: q.Author}
	if p, ok := f.people[name]; ok && p.SessionID == sessionID {
		a.IsAdmin, a.IsModerator = p.IsAdmin, p.IsModerator
	}
	return a, nil
}

func (f *fakeStore) UpdateText(_ context.Context, _ int64, questionID int64, text string) (*models.Question, error) {
	q := f.questions[questionID]
	q.Text = text
	return q, nil
}

func (f *fakeStore) Delete(_ context.Context, _ int64, questionID int64) error {
	delete(f.questions, questionID)
	return nil
}

func (f *fakeStore) GetByName(_ context.Context, sessionID int64, name string) (*models.Participant, error) {
	if p, ok := f.people[name]; ok && p.SessionID == sessionID {
		return p, nil
	}
	return nil, models.ErrNotFound
}

type recorder struct{ reasons []string }

func (r *recorder) Notify(_ int64, _ string, payload interface{}) {
	r.reasons = append(r.reasons, payload.(gin.H)["reason"].(string))
}

func setup() (*gin.Engine, *fakeStore, *recorder) {
	gin.SetMode(gin.TestMode)
	store := newFakeStore()
	rec := &recorder{}
	h := NewHandler(store, store, rec, zap.NewNop())
	r := gin.New()
	r.POST("/meetupQA/:session_id/questions", h.Create)
	r.PUT("/meetupQA/:session_id/questions/:question_id", h.Edit)
	r.DELETE("/meetupQA/:session_id/questions/:question_id", h.Delete)
	r.PUT("/meetupQA/:session_id/questions/:question_id/activate", h.Activate)
	r.POST("/questions/:question_id/vote", h.Vote)
	r.PUT("/questions/:question_id/activate", h.ActivateByQuestion)
	return r, store, rec
}

func call(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreate(t *testing.T) {
	r, store, rec := setup()

	w := call(r, http.MethodPost, "/meetupQA/1/questions", `{"text":" What is Go? ","author":"Ann"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"text":"What is Go?"`)
	assert.Contains(t, w.Body.String(), `"status":"pending"`)
	assert.Equal(t, []string{"question_added"}, rec.reasons)

	assert.Equal(t, http.StatusBadRequest, call(r, http.MethodPost, "/meetupQA/1/questions", `{"text":"x"}`).Code)
	assert.Equal(t, http.StatusNotFound, call(r, http.MethodPost, "/meetupQA/2/questions", `{"text":"x","author":"Ann"}`).Code)

	store.inputDisabled = true
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodPost, "/meetupQA/1/questions", `{"text":"x","author":"Ann"}`).Code)
}

func TestVote(t *testing.T) {
	r, store, _ := setup()
	call(r, http.MethodPost, "/meetupQA/1/questions", `{"text":"Q1","author":"Bob"}`)
	call(r, http.MethodPost, "/meetupQA/1/questions", `{"text":"Q2","author":"Bob"}`)

	w := call(r, http.MethodPost, "/questions/1/vote", `{"participant_name":"Ann"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"votes":1`)
	assert.Equal(t, 0, store.people["Ann"].RemainingVotes)

	w = call(r, http.MethodPost, "/questions/2/vote", `{"participant_name":"Ann"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "No votes remaining")

	require.Equal(t, http.StatusOK, call(r, http.MethodPost, "/questions/1/vote", `{"participant_name":"Bob"}`).Code)
	w = call(r, http.MethodPost, "/questions/1/vote", `{"participant_name":"Bob"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Already voted")
	assert.Equal(t, 4, store.people["Bob"].RemainingVotes)

	assert.Equal(t, http.StatusNotFound, call(r, http.MethodPost, "/questions/9/vote", `{"participant_name":"Bob"}`).Code)
	assert.Equal(t, http.StatusBadRequest, call(r, http.MethodPost, "/questions/1/vote", `{}`).Code)
}

func TestActivate(t *testing.T) {
	r, store, _ := setup()
	call(r, http.MethodPost, "/meetupQA/1/questions", `{"text":"Q1","author":"Bob"}`)
	call(r, http.MethodPost, "/meetupQA/1/questions", `{"text":"Q2","author":"Bob"}`)

	require.Equal(t, http.StatusOK, call(r, http.MethodPut, "/meetupQA/1/questions/1/activate", "").Code)
	assert.Equal(t, models.StatusActive, store.questions[1].Status)

	require.Equal(t, http.StatusOK, call(r, http.MethodPut, "/meetupQA/1/questions/2/activate", "").Code)
	assert.Equal(t, models.StatusFinished, store.questions[1].Status)
	assert.Equal(t, models.StatusActive, store.questions[2].Status)

	assert.Equal(t, http.StatusNotFound, call(r, http.MethodPut, "/meetupQA/2/questions/1/activate", "").Code)
}

func TestActivateByQuestion(t *testing.T) {
	r, store, _ := setup()
	call(r, http.MethodPost, "/meetupQA/1/questions", `{"text":"Q1","author":"Bob"}`)

	assert.Equal(t, http.StatusForbidden, call(r, http.MethodPut, "/questions/1/activate", "").Code)
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodPut, "/questions/1/activate?participant_name=Ann", "").Code)
	assert.Equal(t, http.StatusNotFound, call(r, http.MethodPut, "/questions/5/activate?participant_name=Mod", "").Code)

	require.Equal(t, http.StatusOK, call(r, http.MethodPut, "/questions/1/activate?participant_name=Mod", "").Code)
	assert.Equal(t, models.StatusActive, store.questions[1].Status)
}

func TestEdit(t *testing.T) {
	r, store, _ := setup()
	call(r, http.MethodPost, "/meetupQA/1/questions", `{"text":"Q1","author":"Bob"}`)

	assert.Equal(t, http.StatusBadRequest, call(r, http.MethodPut, "/meetupQA/1/questions/1", `{"text":"new"}`).Code)
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodPut, "/meetupQA/1/questions/1", `{"text":"new","participant_name":"Ann"}`).Code)
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodPut, "/meetupQA/1/questions/1", `{"text":"new","participant_name":"Mod"}`).Code)
	assert.Equal(t, http.StatusNotFound, call(r, http.MethodPut, "/meetupQA/1/questions/7", `{"text":"new","participant_name":"Bob"}`).Code)

	require.Equal(t, http.StatusOK, call(r, http.MethodPut, "/meetupQA/1/questions/1", `{"text":"by author","participant_name":"Bob"}`).Code)
	assert.Equal(t, "by author", store.questions[1].Text)
	require.Equal(t, http.StatusOK, call(r, http.MethodPut, "/meetupQA/1/questions/1", `{"text":"by host","participant_name":"Host"}`).Code)
	assert.Equal(t, "by host", store.questions[1].Text)
}

func TestDelete(t *testing.T) {
	r, store, rec := setup()
	call(r, http.MethodPost, "/meetupQA/1/questions", `{"text":"Q1","author":"Bob"}`)
	call(r, http.MethodPost, "/meetupQA/1/questions", `{"text":"Q2","author":"Bob"}`)
	rec.reasons = nil

	assert.Equal(t, http.StatusBadRequest, call(r, http.MethodDelete, "/meetupQA/1/questions/1", "").Code)
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodDelete, "/meetupQA/1/questions/1?participant_name=Ann", "").Code)
	assert.Equal(t, http.StatusNotFound, call(r, http.MethodDelete, "/meetupQA/1/questions/9?participant_name=Bob", "").Code)

	assert.Equal(t, http.StatusNoContent, call(r, http.MethodDelete, "/meetupQA/1/questions/1?participant_name=Mod", "").Code)
	assert.Equal(t, http.StatusNoContent, call(r, http.MethodDelete, "/meetupQA/1/questions/2?participant_name=Bob", "").Code)
	assert.Empty(t, store.questions)
	assert.Equal(t, []string{"question_deleted", "question_deleted"}, rec.reasons)
}
