package sessions

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/meetup-qa/backend/internal/models"
)

type lookupFunc func(ctx context.Context, sessionID int64, name string) (*models.Participant, error)

func (f lookupFunc) GetByName(ctx context.Context, sessionID int64, name string) (*models.Participant, error) {
	return f(ctx, sessionID, name)
}

var people = lookupFunc(func(_ context.Context, sessionID int64, name string) (*models.Participant, error) {
	switch {
	case sessionID != 1:
		return nil, models.ErrNotFound
	case name == "Host":
		return &models.Participant{Name: name, IsAdmin: true}, nil
	case name == "Mod":
		return &models.Participant{Name: name, IsModerator: true}, nil
	case name == "Ann":
		return &models.Participant{Name: name}, nil
	case name == "broken":
		return nil, errors.New("db down")
	}
	return nil, models.ErrNotFound
})

func TestRequireSessionStaff(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	ok := func(c *gin.Context) { c.String(http.StatusOK, Requester(c).Name) }
	r.PUT("/staff/:session_id", RequireSessionStaff(people, false, zap.NewNop()), ok)
	r.PUT("/admin/:session_id", RequireSessionStaff(people, true, zap.NewNop()), ok)

	cases := []struct {
		path string
		want int
	}{
		{"/staff/1?participant_name=Host", http.StatusOK},
		{"/staff/1?participant_name=Mod", http.StatusOK},
		{"/staff/1?participant_name=Ann", http.StatusForbidden},
		{"/staff/1?participant_name=Nobody", http.StatusForbidden},
		{"/staff/1", http.StatusForbidden},
		{"/staff/2?participant_name=Host", http.StatusForbidden},
		{"/staff/x?participant_name=Host", http.StatusBadRequest},
		{"/staff/1?participant_name=broken", http.StatusInternalServerError},
		{"/admin/1?participant_name=Host", http.StatusOK},
		{"/admin/1?participant_name=Mod", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			w := call(r, http.MethodPut, tc.path, "")
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}

	w := call(r, http.MethodPut, "/staff/1?participant_name=Mod", "")
	assert.Equal(t, "Mod", w.Body.String())
}

func TestSessionCodeValidator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	assert.NoError(t, RegisterValidators())

	type body struct {
		Code string `binding:"sessioncode"`
		Vote string `binding:"timevote"`
	}
	valid := []body{{"ABCD", "yes"}, {"team2024", "no"}}
	for _, b := range valid {
		assert.NoError(t, binding.Validator.ValidateStruct(b), b)
	}
	invalid := []body{{"ABC", "yes"}, {"AB-CD", "yes"}, {"ABCD", "maybe"}, {"ABCDEFGHIJKLMNOPQ", "no"}}
	for _, b := range invalid {
		assert.Error(t, binding.Validator.ValidateStruct(b), b)
	}
}
