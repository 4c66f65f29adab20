package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fleet-platform/internal/rbac"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	DefaultChatGrace = 72 * time.Hour
	DefaultCurrency  = "ARS"
	maxCommentLen    = 1000
)

type Options struct {
	Policy          Policy
	Notifier        Notifier
	Ops             OpsLogger
	Logger          *slog.Logger
	ChatGrace       time.Duration
	DefaultCurrency string
}

// Engine validates and applies every mutation of a RequestRecord. Operations
// take the record the caller last read and return the record acknowledged by
// the Store; on error the caller's copy is still the latest known state.
type Engine struct {
	store    Store
	matrix   Matrix
	notifier Notifier
	ops      OpsLogger
	log      *slog.Logger
	validate *validator.Validate

	chatGrace time.Duration
	currency  string
	clock     func() time.Time
}

func NewEngine(store Store, opts Options) *Engine {
	e := &Engine{
		store:     store,
		matrix:    NewMatrix(opts.Policy),
		notifier:  opts.Notifier,
		ops:       opts.Ops,
		log:       opts.Logger,
		validate:  newValidator(),
		chatGrace: opts.ChatGrace,
		currency:  opts.DefaultCurrency,
		clock:     time.Now,
	}
	if e.notifier == nil {
		e.notifier = NopNotifier{}
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.chatGrace == 0 {
		e.chatGrace = DefaultChatGrace
	}
	if e.currency == "" {
		e.currency = DefaultCurrency
	}
	return e
}

func (e *Engine) Matrix() Matrix { return e.matrix }

func (e *Engine) Store() Store { return e.store }

// Get reads a record and enforces cost center visibility for the actor.
func (e *Engine) Get(ctx context.Context, actor Actor, id string) (RequestRecord, error) {
	rec, err := e.store.Get(ctx, id)
	if err != nil {
		return RequestRecord{}, storeErr(err)
	}
	if !Visible(actor, rec) {
		return RequestRecord{}, ErrNotFound
	}
	return rec, nil
}

// Create files a new request in stage Requested.
func (e *Engine) Create(ctx context.Context, actor Actor, req NewRequest) (RequestRecord, error) {
	if !e.matrix.MayCreate(actor.Role) {
		return RequestRecord{}, fmt.Errorf("%w: %s may not create requests", ErrUnauthorized, actor.Role)
	}
	req.VehiclePlate = strings.ToUpper(strings.TrimSpace(req.VehiclePlate))
	req.Description = strings.TrimSpace(req.Description)
	if err := e.validate.Struct(req); err != nil {
		return RequestRecord{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	costCenter := actor.CostCenter
	if actor.Role != rbac.RoleRequester && strings.TrimSpace(req.CostCenter) != "" {
		costCenter = strings.TrimSpace(req.CostCenter)
	}
	if costCenter == "" {
		return RequestRecord{}, fmt.Errorf("%w: cost center required", ErrInvalidPayload)
	}
	priority := req.Priority
	if priority == "" {
		priority = PriorityMedium
	}

	now := e.clock().UTC()
	id := uuid.NewString()
	rec := RequestRecord{
		ID:                id,
		Code:              requestCode(id),
		VehiclePlate:      req.VehiclePlate,
		RequesterID:       actor.ID,
		RequesterName:     actor.Name,
		CostCenter:        costCenter,
		Stage:             StageRequested,
		Priority:          priority,
		Category:          req.Category,
		SubCategory:       strings.TrimSpace(req.SubCategory),
		Description:       req.Description,
		OdometerAtRequest: req.OdometerAtRequest,
		LocationCity:      strings.TrimSpace(req.LocationCity),
		AuditStatus:       AuditNone,
		History: NewHistory(AuditEntry{
			Stage:     StageRequested,
			Timestamp: now,
			ActorID:   actor.ID,
			ActorName: actor.Name,
			ActorRole: actor.Role,
			Comment:   "request created",
		}),
		IsDialogueOpen: true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := e.store.Create(ctx, rec); err != nil {
		return RequestRecord{}, storeErr(err)
	}
	created, err := e.store.Get(ctx, id)
	if err != nil {
		return RequestRecord{}, storeErr(err)
	}
	e.log.Info("request created", "request_id", id, "code", rec.Code, "actor_id", actor.ID, "cost_center", costCenter)
	return created, nil
}

func requestCode(id string) string {
	hex := strings.ReplaceAll(id, "-", "")
	if len(hex) > 8 {
		hex = hex[:8]
	}
	return "SR-" + strings.ToUpper(hex)
}

// AttemptTransition moves rec to req.Target on behalf of actor.
//
// Checks run in order: role permission (ErrUnauthorized), edge payload
// (ErrInvalidPayload), then a single version-checked write. A rejected attempt
// leaves no trace in the record.
func (e *Engine) AttemptTransition(ctx context.Context, rec RequestRecord, actor Actor, req TransitionRequest) (RequestRecord, error) {
	out, err := e.attemptTransition(ctx, rec, actor, req)
	transitionsTotal.WithLabelValues(string(req.Target), resultLabel(err)).Inc()
	return out, err
}

func (e *Engine) attemptTransition(ctx context.Context, rec RequestRecord, actor Actor, req TransitionRequest) (RequestRecord, error) {
	perm := e.matrix.Permitted(actor.Role, rec.Stage)
	if !perm.Allows(req.Target) {
		return RequestRecord{}, e.deny(ctx, rec, actor, req.Target,
			fmt.Sprintf("%s may not move %s from %s to %s", actor.Role, rec.Code, rec.Stage, req.Target))
	}
	if req.Budget != nil && !perm.MayEditBudget {
		return RequestRecord{}, e.deny(ctx, rec, actor, req.Target, fmt.Sprintf("%s may not edit budgets", actor.Role))
	}
	if req.AuditStatus != "" && !perm.MayEditAuditStatus {
		return RequestRecord{}, e.deny(ctx, rec, actor, req.Target, fmt.Sprintf("%s may not set audit status", actor.Role))
	}
	if (req.ProviderID != "" || req.ProviderName != "") && !perm.MayAssignProvider {
		return RequestRecord{}, e.deny(ctx, rec, actor, req.Target, fmt.Sprintf("%s may not assign providers", actor.Role))
	}

	comment := strings.TrimSpace(req.Comment)
	if len(comment) > maxCommentLen {
		return RequestRecord{}, fmt.Errorf("%w: comment too long", ErrInvalidPayload)
	}

	now := e.clock().UTC()
	next := rec
	if err := e.applyEdge(&next, rec, actor, req, now); err != nil {
		return RequestRecord{}, err
	}
	next.Stage = req.Target
	next.UpdatedAt = now
	next.History = rec.History.Append(AuditEntry{
		Stage:     req.Target,
		Timestamp: now,
		ActorID:   actor.ID,
		ActorName: actor.Name,
		ActorRole: actor.Role,
		Comment:   comment,
	})

	acked, err := e.commit(ctx, "transition", rec, next, actor)
	if err != nil {
		return RequestRecord{}, err
	}
	e.log.Info("request transitioned", "request_id", rec.ID, "from", rec.Stage, "to", acked.Stage, "actor_id", actor.ID, "role", actor.Role, "version", acked.Version)
	e.notify(ctx, transitionRecipients(acked, actor), Notification{
		Kind:      NotificationStageChanged,
		RequestID: acked.ID,
		Code:      acked.Code,
		Stage:     acked.Stage,
		ActorName: actor.Name,
		Text:      comment,
		At:        now,
	})
	return acked, nil
}

// applyEdge enforces the per-edge payload rules and writes the edge's fields into next.
func (e *Engine) applyEdge(next *RequestRecord, rec RequestRecord, actor Actor, req TransitionRequest, now time.Time) error {
	providerSet := req.ProviderID != "" || req.ProviderName != ""
	if providerSet && req.Target != StageScheduleAssigned {
		return fmt.Errorf("%w: provider may only be set when scheduling", ErrInvalidPayload)
	}

	switch req.Target {
	case StageCancelled:
		if strings.TrimSpace(req.Comment) == "" {
			return fmt.Errorf("%w: cancellation requires a reason", ErrInvalidPayload)
		}

	case StageScheduleAssigned:
		if rec.Stage == StageBudgeted {
			// Audit rejection: the budget stays for reference until the provider resubmits.
			if req.AuditStatus != AuditRejected {
				return fmt.Errorf("%w: returning to scheduling requires audit status rejected", ErrInvalidPayload)
			}
			next.AuditStatus = AuditRejected
			return nil
		}
		id, name := strings.TrimSpace(req.ProviderID), strings.TrimSpace(req.ProviderName)
		if id == "" || name == "" {
			return fmt.Errorf("%w: provider id and name required", ErrInvalidPayload)
		}
		next.ProviderID = id
		next.ProviderName = name

	case StageBudgeted:
		if req.Budget == nil {
			return fmt.Errorf("%w: budget required", ErrInvalidPayload)
		}
		b, err := normalizeBudget(e.validate, *req.Budget, e.currency, actor, now)
		if err != nil {
			return err
		}
		next.Budget = &b
		next.AuditStatus = AuditPending

	case StageInShop:
		status := rec.AuditStatus
		if req.AuditStatus != "" {
			status = req.AuditStatus
		}
		if status != AuditApproved {
			return fmt.Errorf("%w: budget not approved by audit (status %s)", ErrInvalidPayload, status)
		}
		next.AuditStatus = AuditApproved

	case StageFinished:
	default:
		return fmt.Errorf("%w: unknown stage %q", ErrInvalidPayload, req.Target)
	}

	if req.AuditStatus != "" && req.AuditStatus != AuditApproved && req.AuditStatus != AuditRejected {
		return fmt.Errorf("%w: audit status must be approved or rejected", ErrInvalidPayload)
	}
	return nil
}

// UpdatePriority changes the priority while the request is still Requested.
func (e *Engine) UpdatePriority(ctx context.Context, rec RequestRecord, actor Actor, p Priority, comment string) (RequestRecord, error) {
	if !e.matrix.MayEditPriority(actor.Role, rec.Stage) {
		return RequestRecord{}, fmt.Errorf("%w: %s may not change priority in %s", ErrUnauthorized, actor.Role, rec.Stage)
	}
	if !p.Valid() {
		return RequestRecord{}, fmt.Errorf("%w: unknown priority %q", ErrInvalidPayload, p)
	}
	if p == rec.Priority {
		return rec, nil
	}
	now := e.clock().UTC()
	next := rec
	next.Priority = p
	next.UpdatedAt = now
	note := fmt.Sprintf("priority changed from %s to %s", rec.Priority, p)
	if c := strings.TrimSpace(comment); c != "" {
		note += ": " + c
	}
	next.History = rec.History.Append(AuditEntry{
		Stage: rec.Stage, Timestamp: now,
		ActorID: actor.ID, ActorName: actor.Name, ActorRole: actor.Role,
		Comment: note,
	})
	return e.commit(ctx, "priority", rec, next, actor)
}

// SetDialogueOpen closes or reopens the requester's side of the chat.
func (e *Engine) SetDialogueOpen(ctx context.Context, rec RequestRecord, actor Actor, open bool, comment string) (RequestRecord, error) {
	if !e.matrix.MayManageDialogue(actor.Role) {
		return RequestRecord{}, fmt.Errorf("%w: %s may not manage the dialogue", ErrUnauthorized, actor.Role)
	}
	if rec.IsDialogueOpen == open {
		return rec, nil
	}
	now := e.clock().UTC()
	next := rec
	next.IsDialogueOpen = open
	next.UpdatedAt = now
	note := "dialogue closed"
	if open {
		note = "dialogue reopened"
	}
	if c := strings.TrimSpace(comment); c != "" {
		note += ": " + c
	}
	next.History = rec.History.Append(AuditEntry{
		Stage: rec.Stage, Timestamp: now,
		ActorID: actor.ID, ActorName: actor.Name, ActorRole: actor.Role,
		Comment: note,
	})
	return e.commit(ctx, "dialogue", rec, next, actor)
}

// commit writes the difference between before and after as one merge patch based
// on before.Version.
func (e *Engine) commit(ctx context.Context, op string, before, after RequestRecord, actor Actor) (RequestRecord, error) {
	patch, err := MergePatch(before, after)
	if err != nil {
		return RequestRecord{}, fmt.Errorf("workflow: encode update: %w", err)
	}
	acked, err := e.store.Update(ctx, before.ID, Update{BaseVersion: before.Version, Patch: patch})
	if err != nil {
		err = storeErr(err)
		if errors.Is(err, ErrConflict) {
			storeConflictsTotal.WithLabelValues(op).Inc()
			e.logOps(ctx, OpsEvent{
				Kind: OpsWriteConflict, RequestID: before.ID, Op: op,
				ActorID: actor.ID, ActorRole: actor.Role,
				From: before.Stage, To: after.Stage,
				Reason: err.Error(), At: e.clock().UTC(),
			})
		}
		return RequestRecord{}, err
	}
	return acked, nil
}

func (e *Engine) deny(ctx context.Context, rec RequestRecord, actor Actor, target Stage, reason string) error {
	e.log.Warn("transition denied", "request_id", rec.ID, "actor_id", actor.ID, "role", actor.Role, "from", rec.Stage, "to", target)
	e.logOps(ctx, OpsEvent{
		Kind: OpsTransitionDenied, RequestID: rec.ID, Op: "transition",
		ActorID: actor.ID, ActorRole: actor.Role,
		From: rec.Stage, To: target,
		Reason: reason, At: e.clock().UTC(),
	})
	return fmt.Errorf("%w: %s", ErrUnauthorized, reason)
}

func (e *Engine) logOps(ctx context.Context, ev OpsEvent) {
	if e.ops == nil {
		return
	}
	if err := e.ops.LogOpsEvent(ctx, ev); err != nil {
		e.log.Error("ops log failed", "kind", ev.Kind, "request_id", ev.RequestID, "err", err)
	}
}

func (e *Engine) notify(ctx context.Context, recipients []string, n Notification) {
	if len(recipients) == 0 {
		return
	}
	if err := e.notifier.Notify(ctx, recipients, n); err != nil {
		notifyFailuresTotal.Inc()
		e.log.Warn("notify failed", "request_id", n.RequestID, "kind", n.Kind, "err", err)
	}
}

// storeErr keeps the taxonomy closed: anything the store did not classify is
// an unacknowledged write.
func storeErr(err error) error {
	switch {
	case errors.Is(err, ErrConflict), errors.Is(err, ErrNotFound), errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrInvalidPayload):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
