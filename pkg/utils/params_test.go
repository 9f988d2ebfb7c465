package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestParamID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := map[string]struct {
		value string
		want  int64
		ok    bool
	}{
		"valid":    {"42", 42, true},
		"zero":     {"0", 0, false},
		"negative": {"-3", 0, false},
		"garbage":  {"abc", 0, false},
		"empty":    {"", 0, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Params = gin.Params{{Key: "session_id", Value: tc.value}}

			got, ok := ParamID(c, "session_id")
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
