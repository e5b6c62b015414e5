package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jandrishti/jandrishti-backend/internal/pkg/apperror"
)

// IssueStatus - состояние обращения в процессе разбора.
type IssueStatus string

const (
	IssueStatusOpen     IssueStatus = "OPEN"
	IssueStatusPending  IssueStatus = "PENDING"
	IssueStatusResolved IssueStatus = "RESOLVED"
	IssueStatusRejected IssueStatus = "REJECTED"
)

// AllIssueStatuses в порядке отображения в админке.
var AllIssueStatuses = []IssueStatus{
	IssueStatusOpen,
	IssueStatusPending,
	IssueStatusResolved,
	IssueStatusRejected,
}

func (s IssueStatus) IsValid() bool {
	switch s {
	case IssueStatusOpen, IssueStatusPending, IssueStatusResolved, IssueStatusRejected:
		return true
	}
	return false
}

// ParseIssueStatus нормализует строку (trim + верхний регистр) и проверяет статус.
func ParseIssueStatus(raw string) (IssueStatus, error) {
	s := IssueStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", apperror.Validation("Invalid status provided")
	}
	return s, nil
}

// Issue - обращение гражданина.
type Issue struct {
	ID               uuid.UUID   `json:"id"`
	IssueCode        string      `json:"issue_id"`
	UserID           uuid.UUID   `json:"user_id"`
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	Location         string      `json:"location"`
	Latitude         *float64    `json:"latitude"`
	Longitude        *float64    `json:"longitude"`
	DateOfOccurrence string      `json:"date_of_occurrence"`
	MediaPaths       []string    `json:"media_paths"`
	Status           IssueStatus `json:"status"`
	Feedback         *string     `json:"feedback"`
	Rating           *int        `json:"rating"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	ResolvedAt       *time.Time  `json:"resolved_at"`
}

// IsOwnedBy проверяет владельца обращения.
func (i *Issue) IsOwnedBy(userID uuid.UUID) bool {
	return i.UserID == userID
}

// IsEditable - владелец может менять и удалять обращение только пока оно OPEN.
func (i *Issue) IsEditable() bool {
	return i.Status == IssueStatusOpen
}

// Reporter - поля профиля автора, которые присоединяются к обращению.
type Reporter struct {
	FullName       *string `json:"full_name"`
	PhoneNumber    *string `json:"phone_number"`
	Address        *string `json:"address"`
	UserType       *string `json:"user_type"`
	UserTypeCustom *string `json:"user_type_custom"`
}

// IssueDetails - обращение вместе с профилем автора. В JSON поля плоские.
type IssueDetails struct {
	Issue
	Reporter
}

// IssueInput - поля, которые гражданин заполняет при создании и редактировании.
type IssueInput struct {
	Title            string   `validate:"notblank"`
	Description      string   `validate:"notblank"`
	Location         string   `validate:"notblank"`
	DateOfOccurrence string   `validate:"notblank"`
	Latitude         *float64 `validate:"omitempty,min=-90,max=90"`
	Longitude        *float64 `validate:"omitempty,min=-180,max=180"`
}

// IssueFilter описывает выборку для админского списка.
type IssueFilter struct {
	Status IssueStatus
	Search string
	Limit  int
	Offset int
}

// IssueStats - количество обращений по статусам.
type IssueStats struct {
	Total    int                 `json:"total"`
	ByStatus map[IssueStatus]int `json:"by_status"`
}
