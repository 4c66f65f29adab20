package workflow

import (
	"sort"
	"time"

	"fleet-platform/internal/rbac"
)

// BoardStages are the visible columns, in order. Cancelled records are counted
// but never shown.
var BoardStages = []Stage{StageRequested, StageScheduleAssigned, StageBudgeted, StageInShop, StageFinished}

type Card struct {
	ID            string      `json:"id"`
	Code          string      `json:"code"`
	VehiclePlate  string      `json:"vehicle_plate"`
	RequesterName string      `json:"requester_name"`
	ProviderName  string      `json:"provider_name,omitempty"`
	CostCenter    string      `json:"cost_center"`
	Priority      Priority    `json:"priority"`
	Category      Category    `json:"category"`
	AuditStatus   AuditStatus `json:"audit_status"`
	Unread        int         `json:"unread"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

type Column struct {
	Stage Stage  `json:"stage"`
	Cards []Card `json:"cards"`
}

type Board struct {
	Columns   []Column `json:"columns"`
	Cancelled int      `json:"cancelled"`
	Total     int      `json:"total"`
}

// Visible reports whether viewer may see rec. Admins and auditors see every cost
// center; everyone else sees their own cost center. Providers also see the
// tickets assigned to them.
func Visible(viewer Actor, rec RequestRecord) bool {
	if rbac.SeesAllCostCenters(viewer.Role) {
		return true
	}
	if viewer.Role == rbac.RoleProvider && viewer.ID != "" && rec.ProviderID == viewer.ID {
		return true
	}
	return viewer.CostCenter != "" && rec.CostCenter == viewer.CostCenter
}

// ViewerFilter is the narrowest store filter that still covers everything viewer
// may see.
func ViewerFilter(viewer Actor) Filter {
	if rbac.SeesAllCostCenters(viewer.Role) || viewer.Role == rbac.RoleProvider {
		return Filter{}
	}
	return Filter{CostCenter: viewer.CostCenter}
}

// BuildBoard groups the viewer's visible records into stage columns, most
// recently updated first.
func BuildBoard(records []RequestRecord, viewer Actor) Board {
	byStage := make(map[Stage][]Card, len(BoardStages))
	var b Board
	for _, r := range records {
		if !Visible(viewer, r) {
			continue
		}
		b.Total++
		if r.Stage == StageCancelled {
			b.Cancelled++
			continue
		}
		byStage[r.Stage] = append(byStage[r.Stage], Card{
			ID:            r.ID,
			Code:          r.Code,
			VehiclePlate:  r.VehiclePlate,
			RequesterName: r.RequesterName,
			ProviderName:  r.ProviderName,
			CostCenter:    r.CostCenter,
			Priority:      r.Priority,
			Category:      r.Category,
			AuditStatus:   r.AuditStatus,
			Unread:        Unread(r, viewer),
			UpdatedAt:     r.UpdatedAt,
		})
	}
	b.Columns = make([]Column, 0, len(BoardStages))
	for _, s := range BoardStages {
		cards := byStage[s]
		sort.SliceStable(cards, func(i, j int) bool { return cards[i].UpdatedAt.After(cards[j].UpdatedAt) })
		if cards == nil {
			cards = []Card{}
		}
		b.Columns = append(b.Columns, Column{Stage: s, Cards: cards})
	}
	return b
}
