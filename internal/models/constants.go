package models

// Роли, которые попадают в access токен.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// UserTypeOther требует заполненного user_type_custom.
const UserTypeOther = "Other"

// Имена событий, которые уходят в WebSocket.
const (
	EventNewIssue      = "new_issue"
	EventStatusUpdated = "status_updated"
	EventIssueUpdated  = "issue_updated"
	EventIssueDeleted  = "issue_deleted"
)

// IssueCodePrefix открывает каждый публичный код обращения.
const IssueCodePrefix = "JDR"
