package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"voice-gateway/internal/audit"
	"voice-gateway/internal/auth"
	"voice-gateway/internal/calls"
	"voice-gateway/internal/initiator"
	"voice-gateway/internal/limits"
	"voice-gateway/internal/rbac"
	"voice-gateway/internal/reporting"
	"voice-gateway/internal/store"
	"voice-gateway/internal/webhook"
	"voice-gateway/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth   *auth.Manager
	APIKey string

	Store      store.Store
	Initiator  *initiator.Service
	Reconciler *webhook.Reconciler

	// Audit journals webhook traffic when configured. Best-effort.
	Audit *audit.Service

	// Stats is optional; without it the stats endpoint reports unavailable.
	Stats *reporting.Service
}

// --- Auth ---

type tokenRequest struct {
	APIKey   string `json:"api_key"`
	ClientID string `json:"client_id"`
	Scope    string `json:"scope"`
}

// IssueToken exchanges the shared API key for a short-lived access token.
func (h Handlers) IssueToken(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.ClientID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "client_id required"})
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(h.APIKey)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
		return
	}
	if req.Scope == "" {
		req.Scope = rbac.ScopeCallsRead
	}
	tok, expiresAt, err := h.Auth.IssueAccess(time.Now(), req.ClientID, req.Scope)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": tok,
		"token_type":   "Bearer",
		"expires_at":   expiresAt.UTC(),
	})
}

// --- Call placement ---

type placeCallRequest struct {
	PhoneNumber string `json:"phone_number"`
	Message     string `json:"message"`
}

// PlaceCall starts an outbound call and returns immediately; the provider
// dial happens in the background.
func (h Handlers) PlaceCall(c *gin.Context) {
	if h.Initiator == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "initiator not configured"})
		return
	}
	var req placeCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "phone_number required"})
		return
	}

	placement, err := h.Initiator.Initiate(c.Request.Context(), strings.TrimSpace(req.PhoneNumber), req.Message)
	if err != nil {
		log := logger.FromGin(c)
		switch {
		case errors.Is(err, limits.ErrTooManyCalls):
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many active calls"})
		default:
			log.Error("call placement failed", "phone_number", req.PhoneNumber, "err", err)
			resp := gin.H{"error": "call placement failed"}
			if placement.CallID != "" {
				// The record outlives the failure; hand back its id.
				resp["call_id"] = placement.CallID
				resp["status"] = placement.Status
			}
			c.AbortWithStatusJSON(http.StatusBadGateway, resp)
		}
		return
	}
	c.JSON(http.StatusOK, placement)
}

// --- Provider webhook ---

// HandleWebhook accepts both webhook dialects on one endpoint: JSON event
// bodies and form-encoded status callbacks. The response shape follows the
// reconciler's outcome: JSON for event replies, TwiML for status callbacks.
func (h Handlers) HandleWebhook(c *gin.Context) {
	if h.Reconciler == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reconciler not configured"})
		return
	}

	payload, err := decodeWebhookPayload(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable payload"})
		return
	}

	ev := webhook.Normalize(c.Query("call_id"), payload)

	if h.Audit != nil {
		kind := ev.Type
		if kind == "" {
			kind = ev.ProviderStatus
		}
		if err := h.Audit.LogDelivery(c.Request.Context(), ev.CallID, string(ev.Dialect), kind, c.ClientIP()); err != nil {
			logger.FromGin(c).Warn("webhook journal append failed", "call_id", ev.CallID, "err", err)
		}
	}

	outcome, err := h.Reconciler.Handle(c.Request.Context(), ev)
	if err != nil {
		log := logger.FromGin(c)
		log.Error("webhook reconciliation failed",
			"call_id", ev.CallID, "dialect", ev.Dialect, "type", ev.Type, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reconciliation failed"})
		return
	}

	switch outcome.Kind {
	case webhook.OutcomePrompt:
		c.Data(http.StatusOK, "application/xml", []byte(outcome.TwiML))
	case webhook.OutcomeTalk:
		resp := gin.H{"action": "talk", "text": outcome.Text}
		if outcome.Intent != "" {
			resp["intent"] = outcome.Intent
		}
		if outcome.AudioBase64 != "" {
			resp["audio_base64"] = outcome.AudioBase64
		}
		c.JSON(http.StatusOK, resp)
	case webhook.OutcomeEnded:
		c.JSON(http.StatusOK, gin.H{"status": "call ended"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "received"})
	}
}

// decodeWebhookPayload flattens either body encoding into one map so the
// dialect sniff sees the same shape regardless of transport.
func decodeWebhookPayload(c *gin.Context) (map[string]any, error) {
	ct := c.ContentType()
	if strings.Contains(ct, "json") {
		var payload map[string]any
		if c.Request.Body == nil || c.Request.ContentLength == 0 {
			return map[string]any{}, nil
		}
		if err := json.NewDecoder(c.Request.Body).Decode(&payload); err != nil {
			return nil, err
		}
		return payload, nil
	}

	// Telephony status callbacks arrive form-encoded.
	if err := c.Request.ParseForm(); err != nil {
		return nil, err
	}
	payload := make(map[string]any, len(c.Request.PostForm))
	for k, vs := range c.Request.PostForm {
		if len(vs) > 0 {
			payload[k] = vs[0]
		}
	}
	return payload, nil
}

// --- Call queries ---

// ListCalls returns call records newest first, with optional status and
// direction filters and limit/offset pagination.
func (h Handlers) ListCalls(c *gin.Context) {
	if h.Store == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "store not configured"})
		return
	}

	f, err := parseFilter(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, offset, err := parsePage(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	records, err := h.Store.List(ctx, f, limit, offset)
	if err != nil {
		logger.FromGin(c).Error("call list failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call list failed"})
		return
	}
	total, err := h.Store.Count(ctx, f)
	if err != nil {
		logger.FromGin(c).Error("call count failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call list failed"})
		return
	}
	active, err := h.Store.CountActive(ctx)
	if err != nil {
		logger.FromGin(c).Error("active count failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call list failed"})
		return
	}

	if records == nil {
		records = []calls.CallRecord{}
	}
	c.JSON(http.StatusOK, gin.H{
		"calls":        records,
		"total_calls":  total,
		"active_calls": active,
		"limit":        limit,
		"offset":       offset,
	})
}

// CallStats returns aggregate counts over all call records.
func (h Handlers) CallStats(c *gin.Context) {
	if h.Stats == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "stats not configured"})
		return
	}
	sum, err := h.Stats.Summarize(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("call stats failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call stats failed"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

// GetCall returns one call record by call_id.
func (h Handlers) GetCall(c *gin.Context) {
	if h.Store == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "store not configured"})
		return
	}
	callID := c.Param("call_id")
	if callID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_id required"})
		return
	}
	record, err := h.Store.Find(c.Request.Context(), callID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
			return
		}
		logger.FromGin(c).Error("call lookup failed", "call_id", callID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call lookup failed"})
		return
	}
	c.JSON(http.StatusOK, record)
}

func parseFilter(c *gin.Context) (store.Filter, error) {
	var f store.Filter
	switch s := c.Query("status"); s {
	case "":
	case string(calls.CallStatusInitiated), string(calls.CallStatusInProgress),
		string(calls.CallStatusCompleted), string(calls.CallStatusFailed):
		f.Status = calls.CallStatus(s)
	default:
		return store.Filter{}, errors.New("unknown status filter")
	}
	switch d := c.Query("direction"); d {
	case "":
	case string(calls.DirectionInbound), string(calls.DirectionOutbound):
		f.Direction = calls.Direction(d)
	default:
		return store.Filter{}, errors.New("unknown direction filter")
	}
	return f, nil
}

func parsePage(c *gin.Context) (limit, offset int, err error) {
	limit = defaultPageSize
	if v := c.Query("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return 0, 0, errors.New("limit must be a positive integer")
		}
		if limit > maxPageSize {
			limit = maxPageSize
		}
	}
	if v := c.Query("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}
