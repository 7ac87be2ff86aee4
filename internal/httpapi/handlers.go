package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"telecom-inbound/internal/audit"
	"telecom-inbound/internal/auth"
	"telecom-inbound/internal/dialogue"
	"telecom-inbound/internal/inbound"
	"telecom-inbound/internal/rbac"
	"telecom-inbound/internal/reporting"
	"telecom-inbound/internal/trust"
	"telecom-inbound/pkg/logger"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth      *auth.Manager
	Dialogue  *dialogue.Machine
	Router    *inbound.Router
	Reporting *reporting.Service
	Audit     *audit.Service

	Now func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

// scope returns the account from the token plus the normalized counterpart
// path parameter.
func scope(c *gin.Context) (string, string, bool) {
	acct, err := auth.AccountID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account_id required"})
		return "", "", false
	}
	cp := trust.NormalizeAddress(c.Param("counterpart"))
	if cp == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "counterpart required"})
		return "", "", false
	}
	return acct, cp, true
}

// --- Auth ---

type issueTokenRequest struct {
	Subject   string `json:"subject"`
	AccountID string `json:"account_id"`
	Role      string `json:"role"`
}

// IssueToken mints a service token. Admin only.
func (h Handlers) IssueToken(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req issueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	switch req.Role {
	case rbac.RoleService, rbac.RoleOperator:
		if req.AccountID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "account_id required"})
			return
		}
	case rbac.RoleAdmin:
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}
	tok, err := h.Auth.Issue(h.now(), req.Subject, req.AccountID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": tok})
}

// --- Conversation state ---

func (h Handlers) GetState(c *gin.Context) {
	acct, cp, ok := scope(c)
	if !ok {
		return
	}
	st, active, err := h.Dialogue.GetActiveState(c.Request.Context(), acct, cp)
	if err != nil {
		logger.FromGin(c).Error("state lookup failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "state lookup failed"})
		return
	}
	if active {
		c.JSON(http.StatusOK, gin.H{"active": true, "state": st})
		return
	}
	// No active state; surface the last marker (e.g. DESTROYED) if any.
	latest, found, err := h.Dialogue.Latest(c.Request.Context(), acct, cp)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "state lookup failed"})
		return
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{"active": false, "state": dialogue.KindIdle})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": false, "state": dialogue.KindIdle, "latest": latest})
}

type exchangeRequest struct {
	Direction string    `json:"direction"`
	Body      string    `json:"body"`
	At        time.Time `json:"at"`
}

func (h Handlers) RecordExchange(c *gin.Context) {
	acct, cp, ok := scope(c)
	if !ok {
		return
	}
	var req exchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	switch req.Direction {
	case string(inbound.DirectionInbound), string(inbound.DirectionOutbound):
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "direction must be inbound or outbound"})
		return
	}
	if req.At.IsZero() {
		req.At = h.now().UTC()
	}

	st, err := h.Dialogue.RecordExchange(c.Request.Context(), acct, cp, dialogue.Exchange{Direction: req.Direction, Body: req.Body, At: req.At})
	if err != nil {
		if errors.Is(err, dialogue.ErrNoActiveState) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "no active state"})
			return
		}
		logger.FromGin(c).Error("record exchange failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "record exchange failed"})
		return
	}
	c.JSON(http.StatusOK, st)
}

type triggerRequest struct {
	Kind       string          `json:"state"`
	Priority   int             `json:"priority"`
	TTLMinutes int             `json:"ttl_minutes"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Trigger starts a state on behalf of an operator or service. Every call is
// audited, including ones the current state outranks.
func (h Handlers) Trigger(c *gin.Context) {
	acct, cp, ok := scope(c)
	if !ok {
		return
	}
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	kind, err := dialogue.ParseKind(req.Kind)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	payload, err := dialogue.DecodePayload(kind, req.Payload)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	st, res, err := h.Dialogue.Trigger(ctx, dialogue.TriggerRequest{
		AccountID:   acct,
		Counterpart: cp,
		Kind:        kind,
		Priority:    req.Priority,
		TTL:         time.Duration(req.TTLMinutes) * time.Minute,
		Payload:     payload,
	})
	if err != nil {
		if errors.Is(err, dialogue.ErrInvalidTransition) || errors.Is(err, dialogue.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		logger.FromGin(c).Error("trigger failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "trigger failed"})
		return
	}

	actor, _ := auth.Subject(ctx)
	meta, _ := json.Marshal(gin.H{"state": kind, "priority": req.Priority, "result": res})
	if err := h.Audit.LogOperatorAction(ctx, acct, actor, cp, fmt.Sprintf("trigger %s", kind), string(meta)); err != nil {
		logger.FromGin(c).Warn("operator audit failed", "err", err)
	}
	c.JSON(http.StatusOK, gin.H{"result": res, "state": st})
}

// --- Outbound ---

type outboundRequest struct {
	To         string `json:"to"`
	ExternalID string `json:"external_id"`
	Body       string `json:"body"`
}

// RecordOutbound stores a message the account sent so later replies are
// classified as an established conversation.
func (h Handlers) RecordOutbound(c *gin.Context) {
	acct, err := auth.AccountID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account_id required"})
		return
	}
	var req outboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	inserted, err := h.Router.RecordOutbound(c.Request.Context(), acct, req.To, req.ExternalID, req.Body)
	if err != nil {
		switch {
		case errors.Is(err, inbound.ErrInvalidArgument):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to and external_id required"})
		case errors.Is(err, inbound.ErrUnresolvedAccount):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown account"})
		default:
			logger.FromGin(c).Error("record outbound failed", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "record outbound failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"duplicate": !inserted})
}

// --- Reports ---

// reportRange reads ?from=&to= (RFC3339). Defaults to the last 24 hours.
func (h Handlers) reportRange(c *gin.Context) (reporting.TimeRange, bool) {
	to := h.now().UTC()
	r := reporting.TimeRange{From: to.Add(-24 * time.Hour), To: to}
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &r.From}, {"to", &r.To}} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": p.name + " must be RFC3339"})
			return reporting.TimeRange{}, false
		}
		*p.dst = t
	}
	return r, true
}

func (h Handlers) InboundReport(c *gin.Context) {
	acct, err := auth.AccountID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account_id required"})
		return
	}
	r, ok := h.reportRange(c)
	if !ok {
		return
	}
	out, err := h.Reporting.InboundSummary(c.Request.Context(), reporting.InboundSummaryRequest{AccountID: acct, Range: r})
	if err != nil {
		reportFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) CallsReport(c *gin.Context) {
	acct, err := auth.AccountID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account_id required"})
		return
	}
	r, ok := h.reportRange(c)
	if !ok {
		return
	}
	out, err := h.Reporting.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{AccountID: acct, Range: r})
	if err != nil {
		reportFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func reportFailed(c *gin.Context, err error) {
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
		return
	}
	logger.FromGin(c).Error("report failed", "err", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
}

// Register mounts the internal API on v1, which must already carry the
// service token middleware.
func (h Handlers) Register(v1 *gin.RouterGroup) {
	admin := v1.Group("/auth")
	admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
	admin.POST("/tokens", h.IssueToken)

	scoped := v1.Group("")
	scoped.Use(rbac.RequireAccount())

	conv := scoped.Group("/conversations/:counterpart")
	conv.GET("/state", rbac.RequireAnyRole(rbac.RoleService, rbac.RoleOperator), h.GetState)
	conv.POST("/exchanges", rbac.RequireAnyRole(rbac.RoleService), h.RecordExchange)
	conv.POST("/triggers", rbac.RequireAnyRole(rbac.RoleService, rbac.RoleOperator), h.Trigger)

	scoped.POST("/messages/outbound", rbac.RequireAnyRole(rbac.RoleService), h.RecordOutbound)

	reports := scoped.Group("/reports")
	reports.Use(rbac.RequireAnyRole(rbac.RoleOperator))
	reports.GET("/inbound", h.InboundReport)
	reports.GET("/calls", h.CallsReport)
}
