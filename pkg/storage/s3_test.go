package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestReportKey(t *testing.T) {
	key := ReportKey(" abc234 ")

	assert.True(t, strings.HasPrefix(key, "reports/ABC234/"), key)
	assert.True(t, strings.HasSuffix(key, ".csv"), key)
	assert.NotEqual(t, key, ReportKey("abc234"))
	assert.True(t, strings.HasPrefix(ReportKey(""), "reports/unknown/"))
}

func TestPresignExpire(t *testing.T) {
	assert.Equal(t, 15*time.Minute, presignExpire(0))
	assert.Equal(t, 5*time.Minute, presignExpire(5))
}

func TestNewS3Disabled(t *testing.T) {
	_, err := NewS3(context.Background(), S3Config{Region: "eu-west-1"}, zap.NewNop())
	assert.ErrorIs(t, err, ErrDisabled)
}
