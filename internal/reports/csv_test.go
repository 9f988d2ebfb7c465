package reports

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetup-qa/backend/internal/models"
)

func TestWriteCSV(t *testing.T) {
	at := time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC)
	d := &Data{
		SessionCode: "ABC123",
		Questions: []models.Question{
			{ID: 2, Status: models.StatusActive, Author: "Ann", Text: "Why, exactly?", Votes: 3, CreatedAt: at},
			{ID: 1, Status: models.StatusPending, Author: "Bob", Text: "Line\nbreak", Votes: 0, CreatedAt: at},
		},
		Replies: map[int64][]models.Reply{
			2: {{QuestionID: 2, Author: "Host", Text: "Good one", IsPinned: true, CreatedAt: at}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, d))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{"question", "2", "active", "Ann", "Why, exactly?", "3", "", "2026-03-01T18:30:00Z"}, rows[1])
	assert.Equal(t, []string{"reply", "2", "", "Host", "Good one", "", "true", "2026-03-01T18:30:00Z"}, rows[2])
	assert.Equal(t, "Line\nbreak", rows[3][4])
}

func TestWriteCSVQuotesFormulas(t *testing.T) {
	d := &Data{
		Questions: []models.Question{{ID: 1, Status: models.StatusPending, Author: "@ann", Text: "=HYPERLINK(\"http://x\")"}},
		Replies: map[int64][]models.Reply{
			1: {{QuestionID: 1, Author: "Bob", Text: "-1 from me"}, {QuestionID: 1, Author: "Eve", Text: "a+b=c"}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, d))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "'@ann", rows[1][3])
	assert.Equal(t, `'=HYPERLINK("http://x")`, rows[1][4])
	assert.Equal(t, "'-1 from me", rows[2][4])
	assert.Equal(t, "a+b=c", rows[3][4])
}

func TestWriteCSVEmptySession(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, &Data{}))
	assert.Equal(t, "kind,question_id,status,author,text,votes,pinned,created_at\n", buf.String())
}
