package workflow

import (
	"time"

	"fleet-platform/internal/rbac"
)

// Stage is the primary state of a service request.
type Stage string

const (
	StageRequested        Stage = "Requested"
	StageScheduleAssigned Stage = "ScheduleAssigned"
	StageBudgeted         Stage = "Budgeted"
	StageInShop           Stage = "InShop"
	StageFinished         Stage = "Finished"
	StageCancelled        Stage = "Cancelled"
)

// Terminal stages accept no further stage mutation.
func (s Stage) Terminal() bool { return s == StageFinished || s == StageCancelled }

func (s Stage) Valid() bool {
	switch s {
	case StageRequested, StageScheduleAssigned, StageBudgeted, StageInShop, StageFinished, StageCancelled:
		return true
	default:
		return false
	}
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// AuditStatus is the auditor's verdict on the current budget. Only the auditor
// role (or admin under Policy.AllowAdminAudit) changes it.
type AuditStatus string

const (
	AuditNone     AuditStatus = "none"
	AuditPending  AuditStatus = "pending"
	AuditApproved AuditStatus = "approved"
	AuditRejected AuditStatus = "rejected"
)

type Category string

const (
	CategoryMaintenance Category = "MAINTENANCE"
	CategoryServices    Category = "SERVICES"
	CategoryPurchases   Category = "PURCHASES"
)

// RequestRecord is one service ticket. It is the only shared mutable resource;
// every change goes through the Engine and reaches the Store as one merge patch.
//
// Invariants:
// - ID, Code, requester provenance and the request payload never change after Create.
// - Stage only changes along the Authorization Matrix graph.
// - History and Messages only grow.
// - Budget is nil until the first move into Budgeted; afterwards it is only replaced wholesale.
type RequestRecord struct {
	ID   string `json:"id"`
	Code string `json:"code"`

	VehiclePlate  string `json:"vehicle_plate"`
	RequesterID   string `json:"requester_id"`
	RequesterName string `json:"requester_name"`
	CostCenter    string `json:"cost_center"`

	Stage    Stage    `json:"stage"`
	Priority Priority `json:"priority"`

	Category          Category `json:"category"`
	SubCategory       string   `json:"sub_category,omitempty"`
	Description       string   `json:"description"`
	OdometerAtRequest int64    `json:"odometer_at_request"`
	LocationCity      string   `json:"location_city,omitempty"`

	ProviderID   string `json:"provider_id,omitempty"`
	ProviderName string `json:"provider_name,omitempty"`

	Budget      *Budget     `json:"budget,omitempty"`
	AuditStatus AuditStatus `json:"audit_status"`

	History  History `json:"history"`
	Messages Thread  `json:"messages"`

	UnreadForAdmin     int  `json:"unread_for_admin"`
	UnreadForRequester int  `json:"unread_for_requester"`
	IsDialogueOpen     bool `json:"is_dialogue_open"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version is owned by the Store and bumped on every acknowledged write.
	Version int64 `json:"version"`
}

// AuditEntry is one immutable record of a change. Stage is the record's stage
// after the change.
type AuditEntry struct {
	Stage     Stage     `json:"stage"`
	Timestamp time.Time `json:"timestamp"`
	ActorID   string    `json:"actor_id,omitempty"`
	ActorName string    `json:"actor_name"`
	ActorRole rbac.Role `json:"actor_role,omitempty"`
	Comment   string    `json:"comment,omitempty"`
}

type ChatMessage struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Role       rbac.Role `json:"role"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

// Actor is the caller as seen by the workflow. Role is the only authorization input.
type Actor struct {
	ID         string
	Name       string
	Role       rbac.Role
	CostCenter string
}

// NewRequest is the requester-supplied payload for Create.
type NewRequest struct {
	VehiclePlate      string   `json:"vehicle_plate" validate:"required,max=16"`
	Category          Category `json:"category" validate:"required,oneof=MAINTENANCE SERVICES PURCHASES"`
	SubCategory       string   `json:"sub_category" validate:"max=80"`
	Description       string   `json:"description" validate:"required,max=2000"`
	OdometerAtRequest int64    `json:"odometer_at_request" validate:"gte=0"`
	LocationCity      string   `json:"location_city" validate:"max=80"`
	Priority          Priority `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`

	// CostCenter is honoured only for staff creating on behalf of a unit;
	// requesters always file under their own cost center.
	CostCenter string `json:"cost_center" validate:"max=40"`
}

// TransitionRequest asks the Engine to move a record to Target.
// Only the fields required by the edge may be set.
type TransitionRequest struct {
	Target       Stage       `json:"target"`
	Comment      string      `json:"comment"`
	ProviderID   string      `json:"provider_id,omitempty"`
	ProviderName string      `json:"provider_name,omitempty"`
	Budget       *Budget     `json:"budget,omitempty"`
	AuditStatus  AuditStatus `json:"audit_status,omitempty"`
}
