// Package access maps a Session to the capability set exposed to it.
package access

import (
	"go.uber.org/zap"

	"github.com/secureshare/portal/internal/domain"
)

// Capability names the dashboard a session is routed to.
type Capability string

const (
	CapabilityAnonymous Capability = "anonymous"
	CapabilityOps       Capability = "ops"
	CapabilityClient    Capability = "client"
)

// Action is an operation gated by capability.
type Action string

const (
	ActionUpload    Action = "upload"
	ActionListFiles Action = "list_files"
	ActionIssueLink Action = "issue_link"
)

var grants = map[Capability][]Action{
	CapabilityOps:    {ActionUpload, ActionListFiles},
	CapabilityClient: {ActionListFiles, ActionIssueLink},
}

// Allows reports whether c includes action.
func (c Capability) Allows(action Action) bool {
	for _, a := range grants[c] {
		if a == action {
			return true
		}
	}
	return false
}

// Actions lists what c may invoke.
func (c Capability) Actions() []Action {
	return append([]Action(nil), grants[c]...)
}

// Resolve is the pure routing function. known is false when an authenticated
// session carries a role outside the defined set; such sessions fall back to
// the client capability.
func Resolve(s domain.Session) (capability Capability, known bool) {
	if !s.IsAuthenticated || s.Identity == nil {
		return CapabilityAnonymous, true
	}
	switch s.Identity.Role {
	case domain.RoleOps:
		return CapabilityOps, true
	case domain.RoleClient:
		return CapabilityClient, true
	default:
		return CapabilityClient, false
	}
}

// Router resolves capabilities and logs unknown roles.
type Router struct {
	logger *zap.Logger
}

// NewRouter builds a router; a nil logger discards anomalies.
func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{logger: logger}
}

// Route returns the capability for s.
func (r *Router) Route(s domain.Session) Capability {
	capability, known := Resolve(s)
	if !known {
		r.logger.Warn("unrecognized role, routing to client capability",
			zap.String("identity_id", s.Identity.ID),
			zap.String("role", string(s.Identity.Role)))
	}
	return capability
}
