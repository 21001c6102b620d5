package handler

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/certmgmt/backend/internal/domain"
	"github.com/certmgmt/backend/internal/middleware"
	"github.com/certmgmt/backend/internal/response"
	"github.com/certmgmt/backend/internal/service"
)

type AuditHandler struct {
	auditService     *service.AuditService
	auth             *middleware.AuthMiddleware
	defaultRetention int
}

func NewAuditHandler(auditService *service.AuditService, auth *middleware.AuthMiddleware, defaultRetention int) *AuditHandler {
	return &AuditHandler{
		auditService:     auditService,
		auth:             auth,
		defaultRetention: defaultRetention,
	}
}

func (h *AuditHandler) Register(app *fiber.App) {
	audit := app.Group(APIPrefix+"/audit", h.auth.Require())
	audit.Get("/logs", h.auth.RequirePrivilege(domain.PrivilegeViewCertificates), h.ListLogs)
	audit.Post("/cleanup", h.auth.RequirePrivilege(domain.PrivilegeApproveCertificateRequest), h.Cleanup)
}

type AuditLogResponse struct {
	ID            string      `json:"id"`
	EventType     string      `json:"eventType"`
	ResourceType  string      `json:"resourceType"`
	ResourceID    *string     `json:"resourceId,omitempty"`
	ParticipantID *string     `json:"participantId,omitempty"`
	UserName      *string     `json:"userName,omitempty"`
	Details       interface{} `json:"details,omitempty"`
	IPAddress     *string     `json:"ipAddress,omitempty"`
	UserAgent     *string     `json:"userAgent,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
}

type AuditLogsResponse struct {
	Logs   []AuditLogResponse `json:"logs"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// ListLogs godoc
//
//	@Summary	Query the certificate request audit trail
//	@Tags		audit
//	@Produce	json
//	@Security	BearerAuth
//	@Param		eventType		query		string	false	"Event type"
//	@Param		resourceId		query		string	false	"Request id"
//	@Param		participantId	query		string	false	"Participant id"
//	@Param		userName		query		string	false	"Acting user"
//	@Param		startDate		query		string	false	"RFC3339 lower bound"
//	@Param		endDate			query		string	false	"RFC3339 upper bound"
//	@Param		limit			query		int		false	"Page size"
//	@Param		offset			query		int		false	"Page offset"
//	@Success	200				{object}	response.Envelope{data=AuditLogsResponse}
//	@Router		/audit/logs [get]
func (h *AuditHandler) ListLogs(c *fiber.Ctx) error {
	filter := buildAuditFilter(c)

	logs, total, err := h.auditService.Query(c.UserContext(), filter)
	if err != nil {
		return HandleDomainError(c, err)
	}

	return response.OK(c, AuditLogsResponse{
		Logs:   toAuditLogResponses(logs),
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

func buildAuditFilter(c *fiber.Ctx) domain.AuditLogFilter {
	filter := domain.AuditLogFilter{
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	}

	if eventType := c.Query("eventType"); eventType != "" {
		et := domain.EventType(eventType)
		filter.EventType = &et
	}

	if resourceID := c.Query("resourceId"); resourceID != "" {
		filter.ResourceID = &resourceID
	}

	if participantID := c.Query("participantId"); participantID != "" {
		filter.ParticipantID = &participantID
	}

	if userName := c.Query("userName"); userName != "" {
		filter.UserName = &userName
	}

	filter.StartDate = parseQueryTime(c, "startDate")
	filter.EndDate = parseQueryTime(c, "endDate")

	return filter
}

func parseQueryTime(c *fiber.Ctx, key string) *time.Time {
	value := c.Query(key)
	if value == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &parsed
}

func toAuditLogResponses(logs []domain.AuditLog) []AuditLogResponse {
	result := make([]AuditLogResponse, len(logs))
	for i, log := range logs {
		result[i] = AuditLogResponse{
			ID:            log.ID,
			EventType:     string(log.EventType),
			ResourceType:  string(log.ResourceType),
			ResourceID:    log.ResourceID,
			ParticipantID: log.ParticipantID,
			UserName:      log.UserName,
			IPAddress:     log.IPAddress,
			UserAgent:     log.UserAgent,
			CreatedAt:     log.CreatedAt,
		}

		if len(log.Details) > 0 {
			var details interface{}
			if err := json.Unmarshal(log.Details, &details); err == nil {
				result[i].Details = details
			}
		}
	}
	return result
}

type CleanupRequest struct {
	RetentionDays int `json:"retentionDays"`
}

type CleanupResponse struct {
	DeletedCount int64 `json:"deletedCount"`
}

// Cleanup godoc
//
//	@Summary	Purge audit entries older than the retention period
//	@Tags		audit
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		body	body		CleanupRequest	false	"Retention in days"
//	@Success	200		{object}	response.Envelope{data=CleanupResponse}
//	@Router		/audit/cleanup [post]
func (h *AuditHandler) Cleanup(c *fiber.Ctx) error {
	var req CleanupRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, MsgInvalidRequestBody)
		}
	}

	if req.RetentionDays <= 0 {
		req.RetentionDays = h.defaultRetention
	}

	deleted, err := h.auditService.Cleanup(c.UserContext(), req.RetentionDays)
	if err != nil {
		return HandleDomainError(c, err)
	}

	return response.OK(c, CleanupResponse{DeletedCount: deleted})
}
