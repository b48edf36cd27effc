package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"callcenter/internal/audit"
	"callcenter/internal/auth"
	"callcenter/internal/calls"
	"callcenter/internal/customers"
	"callcenter/internal/ingest"
	"callcenter/internal/insights"
	"callcenter/internal/rbac"
	"callcenter/internal/reporting"
	"callcenter/internal/voiceagent"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Platform  voiceagent.Platform
	Calls     *calls.Service
	Customers *customers.Service
	Ingest    *ingest.Driver
	Insights  *insights.Service
	Reports   *reporting.Service
	Audit     *audit.Service
}

// Register mounts every /v1 route on g. Identity must already be in the
// request context; role checks are applied per route.
func (h Handlers) Register(g *gin.RouterGroup) {
	read, write, admin := rbac.CanRead(), rbac.CanWrite(), rbac.RequireAnyRole(rbac.RoleAdmin)

	g.GET("/me", read, h.Me)

	in := g.Group("/ingest")
	{
		in.POST("/run", write, h.RunIngest)
		in.POST("/calls/:call_id", write, h.IngestCall)
		in.GET("/stats", read, h.IngestStats)
	}

	g.POST("/insights/questions", read, h.QuestionStats)
	g.POST("/insights/calls/:call_id/questions", read, h.CallQuestions)

	cl := g.Group("/calls")
	{
		cl.GET("", read, h.ListCalls)
		cl.GET("/active", read, h.ActiveCalls)
		cl.GET("/:call_id", read, h.GetCall)
		cl.POST("", write, h.StartCall)
		cl.POST("/:call_id/end", write, h.EndCall)
	}

	ag := g.Group("/agents")
	{
		ag.GET("", read, h.ListAgents)
		ag.GET("/:agent_id", read, h.GetAgent)
		ag.POST("", write, h.CreateAgent)
		ag.PATCH("/:agent_id", write, h.UpdateAgent)
		ag.DELETE("/:agent_id", admin, h.DeleteAgent)
		ag.POST("/:agent_id/transcription", write, h.EnableTranscription)
	}

	g.GET("/phone-numbers", read, h.ListPhoneNumbers)
	g.GET("/phone-numbers/:id", read, h.GetPhoneNumber)
	g.GET("/knowledge-bases/:id", read, h.GetKnowledgeBase)

	cu := g.Group("/customers")
	{
		cu.GET("", read, h.ListCustomers)
		cu.GET("/:id", read, h.GetCustomer)
		cu.DELETE("/:id", admin, h.DeleteCustomer)
		cu.GET("/:id/calls", read, h.CustomerCalls)
		cu.GET("/:id/events", read, h.CustomerEvents)
		cu.GET("/by-phone/:phone/knowledge", read, h.CustomerKnowledge)
	}

	g.GET("/events/upcoming", read, h.UpcomingEvents)
	g.GET("/reports/calls", read, h.CallReport)
}

func (h Handlers) Me(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"user_id": uid, "role": role})
}

func (h Handlers) record(c *gin.Context, e audit.Event) {
	e.IPAddress = c.ClientIP()
	h.Audit.Record(c.Request.Context(), e)
}

// queryInt reads an optional integer query parameter.
func queryInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": key + " must be a non-negative integer"})
		return 0, false
	}
	return n, true
}

// queryTime reads an optional RFC3339 query parameter.
func queryTime(c *gin.Context, key string) (time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": key + " must be an RFC3339 timestamp"})
		return time.Time{}, false
	}
	return t, true
}

// --- Ingest ---

func (h Handlers) RunIngest(c *gin.Context) {
	h.record(c, audit.Event{Type: audit.EventTypeIngestTriggered, Message: "batch run"})
	res, err := h.Ingest.RunOnce(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h Handlers) IngestCall(c *gin.Context) {
	callID := c.Param("call_id")
	h.record(c, audit.Event{Type: audit.EventTypeIngestTriggered, CallID: callID, Message: "single call"})
	res, err := h.Ingest.ProcessCall(c.Request.Context(), callID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h Handlers) IngestStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.Ingest.Stats())
}

// --- Insights ---

func (h Handlers) QuestionStats(c *gin.Context) {
	var req insights.QuestionStatsRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	rep, err := h.Insights.QuestionStats(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

type catalogRequest struct {
	Catalog []string `json:"catalog"`
}

func (h Handlers) CallQuestions(c *gin.Context) {
	var req catalogRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	out, err := h.Insights.MatchCall(c.Request.Context(), c.Param("call_id"), req.Catalog)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// --- Calls ---

func (h Handlers) ListCalls(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset")
	if !ok {
		return
	}
	req := calls.ListRequest{Limit: limit, Offset: offset, AgentIDs: c.QueryArray("agent_id")}
	for _, s := range c.QueryArray("status") {
		req.Statuses = append(req.Statuses, voiceagent.CallStatus(s))
	}
	out, err := h.Calls.List(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": out})
}

func (h Handlers) ActiveCalls(c *gin.Context) {
	out, err := h.Calls.ActiveCalls(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": out})
}

func (h Handlers) GetCall(c *gin.Context) {
	out, err := h.Calls.Get(c.Request.Context(), c.Param("call_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) StartCall(c *gin.Context) {
	var req calls.StartCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	out, err := h.Calls.Start(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	h.record(c, audit.Event{
		Type:     audit.EventTypeCallStarted,
		CallID:   out.CallID,
		AgentID:  req.AgentID,
		Metadata: map[string]any{"to_number": out.ToNumber},
	})
	c.JSON(http.StatusCreated, out)
}

// EndCall is fire-and-forget towards the platform; 202 means the request
// was accepted, not that the call has ended.
func (h Handlers) EndCall(c *gin.Context) {
	callID := c.Param("call_id")
	if err := h.Calls.End(c.Request.Context(), callID); err != nil {
		writeError(c, err)
		return
	}
	h.record(c, audit.Event{Type: audit.EventTypeCallEnded, CallID: callID})
	c.JSON(http.StatusAccepted, gin.H{"call_id": callID, "status": "ending"})
}

// --- Agents ---

func (h Handlers) ListAgents(c *gin.Context) {
	out, err := h.Platform.ListAgents(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": out})
}

func (h Handlers) GetAgent(c *gin.Context) {
	out, err := h.Platform.GetAgent(c.Request.Context(), c.Param("agent_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) CreateAgent(c *gin.Context) {
	var body voiceagent.AgentUpdate
	if err := c.ShouldBindJSON(&body); err != nil || len(body) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "agent body required"})
		return
	}
	out, err := h.Platform.CreateAgent(c.Request.Context(), body)
	if err != nil {
		writeError(c, err)
		return
	}
	h.record(c, audit.Event{Type: audit.EventTypeAgentCreated, AgentID: out.AgentID})
	c.JSON(http.StatusCreated, out)
}

func (h Handlers) UpdateAgent(c *gin.Context) {
	agentID := c.Param("agent_id")
	var body voiceagent.AgentUpdate
	if err := c.ShouldBindJSON(&body); err != nil || len(body) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "agent body required"})
		return
	}
	out, err := h.Platform.UpdateAgent(c.Request.Context(), agentID, body)
	if err != nil {
		writeError(c, err)
		return
	}
	fields := make([]string, 0, len(body))
	for k := range body {
		fields = append(fields, k)
	}
	h.record(c, audit.Event{Type: audit.EventTypeAgentUpdated, AgentID: agentID, Metadata: map[string]any{"fields": fields}})
	c.JSON(http.StatusOK, out)
}

func (h Handlers) DeleteAgent(c *gin.Context) {
	agentID := c.Param("agent_id")
	if err := h.Platform.DeleteAgent(c.Request.Context(), agentID); err != nil {
		writeError(c, err)
		return
	}
	h.record(c, audit.Event{Type: audit.EventTypeAgentDeleted, AgentID: agentID})
	c.Status(http.StatusNoContent)
}

func (h Handlers) EnableTranscription(c *gin.Context) {
	agentID := c.Param("agent_id")
	out, err := voiceagent.EnableTranscription(c.Request.Context(), h.Platform, agentID)
	if err != nil {
		writeError(c, err)
		return
	}
	h.record(c, audit.Event{Type: audit.EventTypeTranscriptionEnabled, AgentID: agentID})
	c.JSON(http.StatusOK, out)
}

// --- Phone numbers and knowledge bases ---

func (h Handlers) ListPhoneNumbers(c *gin.Context) {
	out, err := h.Platform.ListPhoneNumbers(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"phone_numbers": out})
}

func (h Handlers) GetPhoneNumber(c *gin.Context) {
	out, err := h.Platform.GetPhoneNumber(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) GetKnowledgeBase(c *gin.Context) {
	out, err := h.Platform.GetKnowledgeBase(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// --- Customers ---

func (h Handlers) ListCustomers(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	out, err := h.Customers.List(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": out})
}

func (h Handlers) GetCustomer(c *gin.Context) {
	out, err := h.Customers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) DeleteCustomer(c *gin.Context) {
	id := c.Param("id")
	if err := h.Customers.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	h.record(c, audit.Event{Type: audit.EventTypeCustomerDeleted, CustomerID: id})
	c.Status(http.StatusNoContent)
}

func (h Handlers) CustomerCalls(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	out, err := h.Customers.CallHistory(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": out})
}

func (h Handlers) CustomerEvents(c *gin.Context) {
	out, err := h.Customers.CustomerEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}

func (h Handlers) CustomerKnowledge(c *gin.Context) {
	out, err := h.Customers.KnowledgeBase(c.Request.Context(), c.Param("phone"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) UpcomingEvents(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	out, err := h.Customers.UpcomingEvents(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}

// --- Reports ---

func (h Handlers) CallReport(c *gin.Context) {
	from, ok := queryTime(c, "from")
	if !ok {
		return
	}
	to, ok := queryTime(c, "to")
	if !ok {
		return
	}
	rep, err := h.Reports.Report(c.Request.Context(), reporting.CallsSummaryRequest{
		Range:    reporting.TimeRange{From: from, To: to},
		AgentIDs: c.QueryArray("agent_id"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}
