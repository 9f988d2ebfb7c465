package participants

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/meetup-qa/backend/internal/models"
	"github.com/meetup-qa/backend/internal/realtime"
)

type fakeStore struct {
	active map[int64]bool
	people map[int64]*models.Participant
	nextID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{active: map[int64]bool{1: true}, people: map[int64]*models.Participant{}}
}

func (f *fakeStore) seed(p models.Participant) *models.Participant {
	f.nextID++
	p.ID = f.nextID
	f.people[p.ID] = &p
	return &p
}

func (f *fakeStore) Add(_ context.Context, sessionID int64, name string, votes int) (*models.Participant, error) {
	if !f.active[sessionID] {
		return nil, models.ErrNotFound
	}
	for _, p := range f.people {
		if p.SessionID == sessionID && p.Name == name {
			return nil, models.ErrNameTaken
		}
	}
	return f.seed(models.Participant{SessionID: sessionID, Name: name, RemainingVotes: votes}), nil
}

func (f *fakeStore) GetByName(_ context.Context, sessionID int64, name string) (*models.Participant, error) {
	for _, p := range f.people {
		if p.SessionID == sessionID && p.Name == name {
			return p, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeStore) GetByID(_ context.Context, sessionID, id int64) (*models.Participant, error) {
	if p, ok := f.people[id]; ok && p.SessionID == sessionID {
		return p, nil
	}
	return nil, models.ErrNotFound
}

func (f *fakeStore) SetModerator(ctx context.Context, sessionID, id int64, v bool) error {
	p, err := f.GetByID(ctx, sessionID, id)
	if err != nil {
		return err
	}
	p.IsModerator = v
	return nil
}

func (f *fakeStore) Remove(_ context.Context, _ int64, id int64) error {
	delete(f.people, id)
	return nil
}

type recorder struct{ events []string }

func (r *recorder) Notify(_ int64, event string, _ interface{}) { r.events = append(r.events, event) }

func setup() (*gin.Engine, *fakeStore, *recorder) {
	gin.SetMode(gin.TestMode)
	store := newFakeStore()
	rec := &recorder{}
	h := NewHandler(store, rec, 5, zap.NewNop())
	r := gin.New()
	r.POST("/meetupQA/:session_id/participants", h.Join)
	r.PUT("/meetupQA/:session_id/participants/:participant_id/moderator", h.SetModerator)
	r.DELETE("/meetupQA/:session_id/participants/:participant_id", h.Remove)
	return r, store, rec
}

func call(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJoin(t *testing.T) {
	r, store, rec := setup()

	w := call(r, http.MethodPost, "/meetupQA/1/participants", `{"name":"  Ann  "}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"participant_id":1`)
	assert.Equal(t, "Ann", store.people[1].Name)
	assert.Equal(t, 5, store.people[1].RemainingVotes)
	assert.Equal(t, []string{realtime.EventSessionUpdated}, rec.events)

	assert.Equal(t, http.StatusConflict, call(r, http.MethodPost, "/meetupQA/1/participants", `{"name":"Ann"}`).Code)
	assert.Equal(t, http.StatusBadRequest, call(r, http.MethodPost, "/meetupQA/1/participants", `{"name":"   "}`).Code)
	assert.Equal(t, http.StatusNotFound, call(r, http.MethodPost, "/meetupQA/2/participants", `{"name":"Bob"}`).Code)
	assert.Equal(t, http.StatusBadRequest, call(r, http.MethodPost, "/meetupQA/abc/participants", `{"name":"Bob"}`).Code)

	// The limit counts characters, not bytes.
	w = call(r, http.MethodPost, "/meetupQA/1/participants", `{"name":"`+strings.Repeat("ü", 100)+`"}`)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, http.StatusBadRequest, call(r, http.MethodPost, "/meetupQA/1/participants", `{"name":"`+strings.Repeat("ü", 101)+`"}`).Code)
}

func TestSetModerator(t *testing.T) {
	r, store, _ := setup()
	store.seed(models.Participant{SessionID: 1, Name: "host", IsAdmin: true})
	bob := store.seed(models.Participant{SessionID: 1, Name: "bob"})

	w := call(r, http.MethodPut, "/meetupQA/1/participants/2/moderator?participant_name=host", `{"is_moderator":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Moderator status granted")
	assert.True(t, bob.IsModerator)

	assert.Equal(t, http.StatusForbidden, call(r, http.MethodPut, "/meetupQA/1/participants/2/moderator?participant_name=bob", `{"is_moderator":false}`).Code)
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodPut, "/meetupQA/1/participants/2/moderator", `{"is_moderator":false}`).Code)
	assert.Equal(t, http.StatusBadRequest, call(r, http.MethodPut, "/meetupQA/1/participants/2/moderator?participant_name=host", `{"is_moderator":"yes"}`).Code)
	assert.Equal(t, http.StatusBadRequest, call(r, http.MethodPut, "/meetupQA/1/participants/2/moderator?participant_name=host", `{}`).Code)
	assert.Equal(t, http.StatusNotFound, call(r, http.MethodPut, "/meetupQA/1/participants/99/moderator?participant_name=host", `{"is_moderator":true}`).Code)
}

func TestRemove(t *testing.T) {
	r, store, _ := setup()
	store.seed(models.Participant{SessionID: 1, Name: "host", IsAdmin: true})
	store.seed(models.Participant{SessionID: 1, Name: "mod", IsModerator: true})
	store.seed(models.Participant{SessionID: 1, Name: "bob"})
	store.seed(models.Participant{SessionID: 1, Name: "eve"})

	assert.Equal(t, http.StatusForbidden, call(r, http.MethodDelete, "/meetupQA/1/participants/4?participant_name=bob", "").Code)
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodDelete, "/meetupQA/1/participants/1?participant_name=mod", "").Code)
	assert.Equal(t, http.StatusBadRequest, call(r, http.MethodDelete, "/meetupQA/1/participants/2?participant_name=mod", "").Code)
	assert.Equal(t, http.StatusNotFound, call(r, http.MethodDelete, "/meetupQA/1/participants/42?participant_name=mod", "").Code)

	w := call(r, http.MethodDelete, "/meetupQA/1/participants/4?participant_name=mod", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, store.people, int64(4))
}
