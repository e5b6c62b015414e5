package common

import (
	"errors"

	"github.com/lib/pq"
)

// uniqueViolation - код ошибки PostgreSQL для нарушения UNIQUE ограничения.
const uniqueViolation = "23505"

// IsUniqueViolation сообщает, нарушено ли UNIQUE ограничение.
// Если constraint не пуст, проверяется и имя ограничения.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
