package schemas

type ApprovalOut struct {
	ID        string   `json:"id"`
	TaskID    string   `json:"task_id"`
	Token     string   `json:"token"`
	Decision  Decision `json:"decision,omitempty"`
	DecidedBy string   `json:"decided_by,omitempty"`
	DecidedAt string   `json:"decided_at,omitempty"`
	CreatedAt string   `json:"created_at"`
	ExpiresAt string   `json:"expires_at,omitempty"`
}

type TaskOut struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description,omitempty"`
	Status          TaskStatus    `json:"status"`
	RequireApproval bool          `json:"require_approval"`
	CreatedAt       string        `json:"created_at"`
	UpdatedAt       string        `json:"updated_at"`
	StartedAt       string        `json:"started_at,omitempty"`
	EndedAt         string        `json:"ended_at,omitempty"`
	Approvals       []ApprovalOut `json:"approvals"`
}

type RunOut struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	ActionID   string    `json:"action_id"`
	Status     RunStatus `json:"status"`
	StartedAt  string    `json:"started_at,omitempty"`
	EndedAt    string    `json:"ended_at,omitempty"`
	StdoutPath string    `json:"stdout_path,omitempty"`
	StderrPath string    `json:"stderr_path,omitempty"`
	ExitCode   *int      `json:"exit_code"`
}

type AuditOut struct {
	ID        string         `json:"id"`
	TaskID    string         `json:"task_id"`
	ActionID  string         `json:"action_id,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
	Event     string         `json:"event"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data"`
	CreatedAt string         `json:"created_at"`
}

type QuickRunOut struct {
	Task  TaskOut    `json:"task"`
	Runs  []RunOut   `json:"runs"`
	Audit []AuditOut `json:"audit"`
}
