package schemas

import "time"

type TaskStatus string

const (
	TaskStatusPending         TaskStatus = "PENDING"
	TaskStatusWaitingApproval TaskStatus = "WAITING_APPROVAL"
	TaskStatusApproved        TaskStatus = "APPROVED"
	TaskStatusRejected        TaskStatus = "REJECTED"
	TaskStatusRunning         TaskStatus = "RUNNING"
	TaskStatusSucceeded       TaskStatus = "SUCCEEDED"
	TaskStatusFailed          TaskStatus = "FAILED"
	TaskStatusCanceled        TaskStatus = "CANCELED"
)

// Terminal reports whether a task reached a final state.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusCanceled:
		return true
	}
	return false
}

type RunStatus string

const (
	RunStatusPending   RunStatus = "PENDING"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusCanceled  RunStatus = "CANCELED"
)

// Terminal reports whether a run reached a final state.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusCanceled:
		return true
	}
	return false
}

type ActionType string

const (
	ActionTypeShell ActionType = "shell"
)

type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// NowISO returns the current UTC time in RFC3339 at second precision, the
// timestamp format used across the store and the API.
func NowISO() string {
	return time.Now().UTC().Truncate(time.Second).Format(time.RFC3339)
}
