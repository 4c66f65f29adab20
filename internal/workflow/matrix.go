package workflow

import "fleet-platform/internal/rbac"

// Permission is what one role may do from one stage. MayAssignProvider covers
// the provider fields of a move.
type Permission struct {
	Targets            []Stage
	MayEditBudget      bool
	MayEditAuditStatus bool
	MayAssignProvider  bool
}

func (p Permission) Allows(target Stage) bool {
	for _, s := range p.Targets {
		if s == target {
			return true
		}
	}
	return false
}

// Policy holds deployment switches for the matrix.
type Policy struct {
	// AllowAdminAudit lets admins approve or reject budgets themselves.
	AllowAdminAudit bool
}

// Matrix is the single authorization table of the workflow. It is total: every
// (role, stage) pair, including unknown roles and terminal stages, maps to a
// possibly empty Permission.
type Matrix struct {
	policy Policy
}

func NewMatrix(p Policy) Matrix { return Matrix{policy: p} }

var staffTable = map[Stage]Permission{
	StageRequested:        {Targets: []Stage{StageScheduleAssigned, StageCancelled}, MayAssignProvider: true},
	StageScheduleAssigned: {Targets: []Stage{StageCancelled}},
	StageBudgeted:         {Targets: []Stage{StageInShop, StageCancelled}},
	StageInShop:           {Targets: []Stage{StageFinished, StageCancelled}},
}

var transitionTable = map[rbac.Role]map[Stage]Permission{
	rbac.RoleRequester: {
		StageRequested: {Targets: []Stage{StageCancelled}},
	},
	rbac.RoleSupervisor: staffTable,
	rbac.RoleAdmin:      staffTable,
	rbac.RoleProvider: {
		StageScheduleAssigned: {Targets: []Stage{StageBudgeted}, MayEditBudget: true},
	},
	rbac.RoleAuditor: {
		StageBudgeted: {Targets: []Stage{StageInShop, StageScheduleAssigned}, MayEditAuditStatus: true},
	},
}

// Permitted returns the moves available to role from stage.
func (m Matrix) Permitted(role rbac.Role, stage Stage) Permission {
	if stage.Terminal() {
		return Permission{}
	}
	p := transitionTable[role][stage]
	out := Permission{
		Targets:            append([]Stage(nil), p.Targets...),
		MayEditBudget:      p.MayEditBudget,
		MayEditAuditStatus: p.MayEditAuditStatus,
		MayAssignProvider:  p.MayAssignProvider,
	}
	if m.policy.AllowAdminAudit && role == rbac.RoleAdmin && stage == StageBudgeted {
		out.Targets = append(out.Targets, StageScheduleAssigned)
		out.MayEditAuditStatus = true
	}
	return out
}

// MayCreate reports whether role may open a new request.
func (m Matrix) MayCreate(role rbac.Role) bool {
	switch role {
	case rbac.RoleRequester, rbac.RoleSupervisor, rbac.RoleAdmin:
		return true
	default:
		return false
	}
}

// MayEditPriority: requester and supervisor/admin, only before scheduling.
func (m Matrix) MayEditPriority(role rbac.Role, stage Stage) bool {
	return stage == StageRequested && m.MayCreate(role)
}

// MayManageDialogue reports whether role may close or reopen the requester dialogue.
func (m Matrix) MayManageDialogue(role rbac.Role) bool {
	return role == rbac.RoleSupervisor || role == rbac.RoleAdmin
}

// Audience is a reader group for unread accounting.
type Audience string

const (
	AudienceAdmin     Audience = "admin"
	AudienceRequester Audience = "requester"
)

// AudienceOf returns the unread counter the role reads. Every staff role shares
// the admin counter.
func AudienceOf(role rbac.Role) Audience {
	if role == rbac.RoleRequester {
		return AudienceRequester
	}
	return AudienceAdmin
}
