package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jandrishti/jandrishti-backend/internal/models"
)

func TestIssuesPDF_RendersDocument(t *testing.T) {
	name := "Asha Rao"
	issues := make([]models.IssueDetails, 0, 60)
	for i := 0; i < 60; i++ {
		issues = append(issues, models.IssueDetails{
			Issue: models.Issue{
				ID:        uuid.New(),
				IssueCode: "JDR-20240115-AB12",
				Title:     strings.Repeat("Pothole near the bus stop ", 5),
				Location:  "MG Road",
				Status:    models.IssueStatusOpen,
				CreatedAt: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
			},
			Reporter: models.Reporter{FullName: &name},
		})
	}

	out, err := IssuesPDF(issues, models.IssueFilter{Status: models.IssueStatusOpen, Search: "road"}, time.Now())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestIssuesPDF_EmptyList(t *testing.T) {
	out, err := IssuesPDF(nil, models.IssueFilter{}, time.Now())
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestDescribeFilter(t *testing.T) {
	at := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "3 issues, all statuses, generated 2024-01-15 10:00 UTC",
		describeFilter(models.IssueFilter{}, 3, at))
	assert.Equal(t, `1 issues, status RESOLVED, search "lamp", generated 2024-01-15 10:00 UTC`,
		describeFilter(models.IssueFilter{Status: models.IssueStatusResolved, Search: "lamp"}, 1, at))
}
