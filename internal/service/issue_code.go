package service

import (
	"strings"
	"time"

	"github.com/jandrishti/jandrishti-backend/internal/models"
)

const (
	issueCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	issueCodeSuffix   = 4
	// maxIssueCodeAttempts - сколько раз пробуем новый код при коллизии.
	maxIssueCodeAttempts = 5
)

// generateIssueCode формирует публичный код вида JDR-YYYYMMDD-XXXX.
// Дата берётся в UTC, суффикс - 4 символа base-36 в верхнем регистре.
func generateIssueCode(now time.Time, intN func(int) int) string {
	var sb strings.Builder
	sb.Grow(len(models.IssueCodePrefix) + 1 + 8 + 1 + issueCodeSuffix)

	sb.WriteString(models.IssueCodePrefix)
	sb.WriteByte('-')
	sb.WriteString(now.UTC().Format("20060102"))
	sb.WriteByte('-')
	for i := 0; i < issueCodeSuffix; i++ {
		sb.WriteByte(issueCodeAlphabet[intN(len(issueCodeAlphabet))])
	}
	return sb.String()
}
