package httpapi

import (
	"context"
	"net/http"

	"fleet-platform/internal/workflow"

	"github.com/gin-gonic/gin"
)

func (h Handlers) CreateRequest(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req workflow.NewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c, err)
		return
	}
	rec, err := h.Engine.Create(c.Request.Context(), a, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h Handlers) GetRequest(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	rec, err := h.Engine.Get(c.Request.Context(), a, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

type transitionRequest struct {
	workflow.TransitionRequest
	ExpectedVersion *int64 `json:"expected_version"`
}

func (h Handlers) Transition(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c, err)
		return
	}
	h.mutate(c, req.ExpectedVersion, func(ctx context.Context, rec workflow.RequestRecord, a workflow.Actor) (workflow.RequestRecord, error) {
		return h.Engine.AttemptTransition(ctx, rec, a, req.TransitionRequest)
	})
}

type priorityRequest struct {
	Priority        workflow.Priority `json:"priority"`
	Comment         string            `json:"comment"`
	ExpectedVersion *int64            `json:"expected_version"`
}

func (h Handlers) UpdatePriority(c *gin.Context) {
	var req priorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c, err)
		return
	}
	h.mutate(c, req.ExpectedVersion, func(ctx context.Context, rec workflow.RequestRecord, a workflow.Actor) (workflow.RequestRecord, error) {
		return h.Engine.UpdatePriority(ctx, rec, a, req.Priority, req.Comment)
	})
}

type messageRequest struct {
	Text string `json:"text"`
}

// PostMessage is always retried: appending a message never depends on what
// changed in between.
func (h Handlers) PostMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c, err)
		return
	}
	h.mutate(c, nil, func(ctx context.Context, rec workflow.RequestRecord, a workflow.Actor) (workflow.RequestRecord, error) {
		return h.Engine.PostMessage(ctx, rec, a, req.Text)
	})
}

func (h Handlers) MarkRead(c *gin.Context) {
	h.mutate(c, nil, func(ctx context.Context, rec workflow.RequestRecord, a workflow.Actor) (workflow.RequestRecord, error) {
		return h.Engine.MarkRead(ctx, rec, a, workflow.AudienceOf(a.Role))
	})
}

type dialogueRequest struct {
	Open            *bool  `json:"open"`
	Comment         string `json:"comment"`
	ExpectedVersion *int64 `json:"expected_version"`
}

func (h Handlers) SetDialogue(c *gin.Context) {
	var req dialogueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c, err)
		return
	}
	if req.Open == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "invalid_json", Detail: "open required"})
		return
	}
	h.mutate(c, req.ExpectedVersion, func(ctx context.Context, rec workflow.RequestRecord, a workflow.Actor) (workflow.RequestRecord, error) {
		return h.Engine.SetDialogueOpen(ctx, rec, a, *req.Open, req.Comment)
	})
}
