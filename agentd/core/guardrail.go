package core

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var (
	ErrPolicyRejected = errors.New("command blocked by policy")
	ErrRateLimited    = errors.New("too many requests")
)

// DefaultDenySubstrings blocks the obviously destructive command shapes
// when no deny list is configured.
var DefaultDenySubstrings = []string{
	"rm -rf /",
	"mkfs",
	":(){:|:&};:",
	">:(){:|:&};:",
	"dd if=",
	" of=/dev/sd",
	"mkpartition",
	"fdisk",
	"parted",
	"shutdown",
	"reboot",
	"poweroff",
	"chown -R /",
	"chmod -R /",
	"userdel ",
	"groupdel ",
	"mount ",
	"umount ",
	"curl | sh",
	"curl|sh",
	"wget -O- | sh",
	"wget -qO- | sh",
}

type PolicyConfig struct {
	// AllowPrefixes, when non-empty, requires every command to start with
	// one of the prefixes.
	AllowPrefixes []string
	// DenySubstrings rejects any command containing one of them,
	// case-insensitive. Empty means DefaultDenySubstrings.
	DenySubstrings []string
	// MinInterval is the minimum spacing between accepted submissions.
	// Zero disables rate limiting.
	MinInterval time.Duration
}

// Guardrail decides whether a command may run and rate-limits submissions.
// The rate cursor is owned by the guardrail and serialized under a mutex;
// Check itself is a pure function of (command, policy).
type Guardrail struct {
	policy PolicyConfig
	now    func() time.Time

	mu           sync.Mutex
	lastAccepted time.Time
}

func NewGuardrail(policy PolicyConfig) *Guardrail {
	if len(policy.DenySubstrings) == 0 {
		policy.DenySubstrings = DefaultDenySubstrings
	}
	return &Guardrail{policy: policy, now: time.Now}
}

// Check applies the allow-list and then the deny-list. The deny check runs
// even when an allow prefix matched.
func (g *Guardrail) Check(command string) error {
	trimmed := strings.TrimSpace(command)

	if len(g.policy.AllowPrefixes) > 0 {
		allowed := false
		for _, prefix := range g.policy.AllowPrefixes {
			if strings.HasPrefix(trimmed, prefix) {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: blocked by allowlist", ErrPolicyRejected)
		}
	}

	lower := strings.ToLower(trimmed)
	for _, deny := range g.policy.DenySubstrings {
		if deny == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(deny)) {
			return fmt.Errorf("%w: blocked by denylist: %s", ErrPolicyRejected, deny)
		}
	}
	return nil
}

// ReserveSlot accepts the submission if at least MinInterval has passed
// since the last accepted one. The read-modify-write of the cursor is a
// single critical section so concurrent submissions cannot both slip
// through the same window.
func (g *Guardrail) ReserveSlot() error {
	if g.policy.MinInterval <= 0 {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if !g.lastAccepted.IsZero() && now.Sub(g.lastAccepted) < g.policy.MinInterval {
		return ErrRateLimited
	}
	g.lastAccepted = now
	return nil
}
