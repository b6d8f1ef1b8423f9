// Package httpapi exposes the engine's operational surface: liveness
// and readiness probes, a Prometheus scrape endpoint, and a manual
// work-item submission route for kicking off a process instance
// outside the normal upstream trigger.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codeready-toolchain/bpmflow/ent"
	"github.com/codeready-toolchain/bpmflow/pkg/database"
	"github.com/codeready-toolchain/bpmflow/pkg/store"
	"github.com/codeready-toolchain/bpmflow/pkg/streaming"
)

// compensationPlanner mirrors compensation.Planner's Trigger method so
// this package can hold a reference without importing pkg/compensation's
// store/reasoning dependency chain.
type compensationPlanner interface {
	Trigger(ctx context.Context, target *ent.WorkItem) (*ent.WorkItem, error)
}

// Server wires the gin router that cmd/bpmengine runs alongside the
// dispatcher.
type Server struct {
	DB       *database.Client
	Insts    *store.ProcInstStore
	Items    *store.WorkItemStore
	Wake     *streaming.Broadcaster
	Planner  compensationPlanner
	TenantID string

	router *gin.Engine
}

// Router builds (once) and returns the gin engine: /healthz, /readyz,
// /metrics, and POST /work-items.
func (s *Server) Router() *gin.Engine {
	if s.router != nil {
		return s.router
	}

	r := gin.Default()
	r.GET("/healthz", s.handleHealthz)
	r.GET("/readyz", s.handleReadyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/work-items", s.handleSubmitWorkItem)
	r.POST("/work-items/:id/compensate", s.handleCompensate)

	s.router = r
	return r
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReadyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	health, err := database.Health(ctx, s.DB.DB())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": health, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "database": health})
}

// submitWorkItemRequest is the manual-submission payload: a process
// definition plus the activity the caller wants a work item created
// for, bypassing the normal upstream event trigger.
type submitWorkItemRequest struct {
	ProcDefID    string         `json:"process_definition_id" binding:"required"`
	InstanceID   string         `json:"instance_id"`
	InstanceName string         `json:"instance_name"`
	ActivityID   string         `json:"activity_id" binding:"required"`
	TenantID     string         `json:"tenant_id"`
	RoleBindings map[string]any `json:"role_bindings"`
}

func (s *Server) handleSubmitWorkItem(c *gin.Context) {
	var req submitWorkItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenantID := req.TenantID
	if tenantID == "" {
		tenantID = s.TenantID
	}

	inst, err := s.Insts.LoadOrCreate(c.Request.Context(), store.MintOrLoadInput{
		InstanceID:   req.InstanceID,
		InstanceName: req.InstanceName,
		ProcDefID:    req.ProcDefID,
		TenantID:     tenantID,
		RoleBindings: req.RoleBindings,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	item, err := s.Items.Create(c.Request.Context(), store.NewInput{
		ProcInstID: inst.ID,
		ProcDefID:  req.ProcDefID,
		ActivityID: req.ActivityID,
		TenantID:   tenantID,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if s.Wake != nil {
		_ = s.Wake.PublishWake(c.Request.Context())
	}

	c.JSON(http.StatusCreated, gin.H{
		"instance_id":  inst.ID,
		"work_item_id": item.ID,
	})
}

// handleCompensate manually triggers rework/rollback for a completed
// work item through the compensation planner's Trigger, letting an
// operator run it without re-running the upstream activity. The
// resolver does not call Trigger; this route is the engine's only
// caller of it.
func (s *Server) handleCompensate(c *gin.Context) {
	if s.Planner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "compensation planner not configured"})
		return
	}

	target, err := s.Items.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if target == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "work item not found"})
		return
	}

	row, err := s.Planner.Trigger(c.Request.Context(), target)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"compensation_work_item_id": row.ID})
}
