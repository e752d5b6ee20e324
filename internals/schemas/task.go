package schemas

import (
	z "github.com/Oudwins/zog"
)

type ActionInput struct {
	Type   ActionType     `json:"type" zog:"type"`
	Params map[string]any `json:"params" zog:"params"`
}

// Cmd extracts the shell command string from the action params, empty when
// absent or not a string.
func (a ActionInput) Cmd() string {
	raw, ok := a.Params["cmd"]
	if !ok {
		return ""
	}
	cmd, _ := raw.(string)
	return cmd
}

type TaskCreateRequest struct {
	Title           string        `json:"title" zog:"title"`
	Description     string        `json:"description" zog:"description"`
	RequireApproval bool          `json:"require_approval" zog:"require_approval"`
	Actions         []ActionInput `json:"actions" zog:"actions"`
}

var TaskCreateSchema = z.Struct(z.Shape{
	"Title":           z.String().Required().Trim().Max(255),
	"Description":     z.String().Optional().Trim(),
	"RequireApproval": z.Bool().Default(false),
})

type ApprovalRequest struct {
	Token     string   `json:"token" zog:"token"`
	Decision  Decision `json:"decision" zog:"decision"`
	DecidedBy string   `json:"decided_by" zog:"decided_by"`
}

var ApprovalSchema = z.Struct(z.Shape{
	"Token":     z.String().Required().Trim(),
	"Decision":  z.StringLike[Decision]().OneOf([]Decision{DecisionApprove, DecisionReject}),
	"DecidedBy": z.String().Required().Trim(),
})

type QuickRunRequest struct {
	Title   string        `json:"title" zog:"title"`
	Actions []ActionInput `json:"actions" zog:"actions"`
}

var QuickRunSchema = z.Struct(z.Shape{
	"Title": z.String().Default("quick-run").Trim(),
})

type AgentShellRequest struct {
	Cmd   string `json:"cmd" zog:"cmd"`
	Title string `json:"title" zog:"title"`
}

var AgentShellSchema = z.Struct(z.Shape{
	"Cmd":   z.String().Required().Trim(),
	"Title": z.String().Default("agent-shell").Trim(),
})
