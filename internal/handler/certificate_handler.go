package handler

import (
	"io"
	"log/slog"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"

	"github.com/certmgmt/backend/internal/domain"
	"github.com/certmgmt/backend/internal/middleware"
	"github.com/certmgmt/backend/internal/response"
	"github.com/certmgmt/backend/internal/service"
)

const pemContentType = "application/x-pem-file"

type CertificateHandler struct {
	certService    *service.CertificateService
	auth           *middleware.AuthMiddleware
	maxUploadBytes int64
	logger         *slog.Logger
}

type CertificateHandlerConfig struct {
	CertService    *service.CertificateService
	Auth           *middleware.AuthMiddleware
	MaxUploadBytes int
	Logger         *slog.Logger
}

// BulkRequestInput lists the certificate requests a bulk operation acts on.
type BulkRequestInput struct {
	CertificateIDs []string `json:"certificateIds" example:"3f0e2a55-0f5c-4bd4-9a43-8f1f6b0d7c11"`
}

type SearchRequestsInput struct {
	ParticipantIDs []string `json:"participantIds" example:"bank-a"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type CreatedRequestResponse struct {
	ID            string `json:"id"`
	ParticipantID string `json:"participantId"`
}

func NewCertificateHandler(cfg CertificateHandlerConfig) *CertificateHandler {
	return &CertificateHandler{
		certService:    cfg.CertService,
		auth:           cfg.Auth,
		maxUploadBytes: int64(cfg.MaxUploadBytes),
		logger:         cfg.Logger,
	}
}

func (h *CertificateHandler) Register(app *fiber.App) {
	v1 := app.Group(APIPrefix)

	view := h.auth.RequirePrivilege(domain.PrivilegeViewCertificates)
	create := h.auth.RequirePrivilege(domain.PrivilegeCreateCertificateRequest)
	approve := h.auth.RequirePrivilege(domain.PrivilegeApproveCertificateRequest)
	reject := h.auth.RequirePrivilege(domain.PrivilegeRejectCertificateRequest)

	certs := v1.Group("/certs", h.auth.Require())
	certs.Get("/requests", view, h.ListRequests)
	certs.Get("/requests/pending", view, h.ListPendingRequests)
	certs.Post("/requests/search", view, h.SearchRequests)
	certs.Delete("/requests/:id", create, h.DeleteRequest)
	certs.Get("/download/:certificateId", view, h.DownloadPublicKey)
	certs.Post("/file", create, h.UploadCertificate)
	certs.Post("/bulkapprove", approve, h.BulkApprove)
	certs.Post("/bulkreject", reject, h.BulkReject)
	certs.Post("/bulkdelete", create, h.BulkDelete)
	certs.Post("/:id/approve", approve, h.Approve)
	certs.Post("/:id/reject", reject, h.Reject)
	certs.Get("/", view, h.ListApproved)
	certs.Get("/:participantId", view, h.GetApproved)

	v1.Get("/privileges", h.auth.Require(), h.ListPrivileges)
}

// ListRequests godoc
//
//	@Summary		List certificate requests
//	@Description	Returns every participant's request document, or one participant's when participantId is set
//	@Tags			requests
//	@Produce		json
//	@Security		BearerAuth
//	@Param			participantId	query		string	false	"Participant id"
//	@Success		200				{object}	response.Envelope{data=[]domain.ParticipantRequests}
//	@Failure		404				{object}	response.Envelope
//	@Router			/certs/requests [get]
func (h *CertificateHandler) ListRequests(c *fiber.Ctx) error {
	if participantID := c.Query("participantId"); participantID != "" {
		doc, err := h.certService.GetRequestsByParticipantID(c.UserContext(), participantID)
		if err != nil {
			return HandleDomainError(c, err)
		}
		return response.OK(c, doc)
	}

	docs, err := h.certService.GetRequests(c.UserContext())
	if err != nil {
		return HandleDomainError(c, err)
	}
	return response.OK(c, docs)
}

// ListPendingRequests godoc
//
//	@Summary	List pending certificate requests
//	@Tags		requests
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	response.Envelope{data=[]domain.ParticipantRequests}
//	@Router		/certs/requests/pending [get]
func (h *CertificateHandler) ListPendingRequests(c *fiber.Ctx) error {
	docs, err := h.certService.GetPendingRequests(c.UserContext())
	if err != nil {
		return HandleDomainError(c, err)
	}
	return response.OK(c, docs)
}

// SearchRequests godoc
//
//	@Summary	Find request documents for several participants
//	@Tags		requests
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		body	body		SearchRequestsInput	true	"Participant ids"
//	@Success	200		{object}	response.Envelope{data=[]domain.ParticipantRequests}
//	@Router		/certs/requests/search [post]
func (h *CertificateHandler) SearchRequests(c *fiber.Ctx) error {
	var input SearchRequestsInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, MsgInvalidRequestBody)
	}
	if len(input.ParticipantIDs) == 0 {
		return response.BadRequest(c, MsgParticipantIDsRequired)
	}

	docs, err := h.certService.GetRequestsByParticipantIDs(c.UserContext(), input.ParticipantIDs)
	if err != nil {
		return HandleDomainError(c, err)
	}
	return response.OK(c, docs)
}

// ListApproved godoc
//
//	@Summary	List approved certificates
//	@Tags		certificates
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	response.Envelope{data=[]domain.Certificate}
//	@Router		/certs [get]
func (h *CertificateHandler) ListApproved(c *fiber.Ctx) error {
	certs, err := h.certService.GetAllApproved(c.UserContext())
	if err != nil {
		return HandleDomainError(c, err)
	}
	return response.OK(c, certs)
}

// GetApproved godoc
//
//	@Summary	Get a participant's approved certificate
//	@Tags		certificates
//	@Produce	json
//	@Security	BearerAuth
//	@Param		participantId	path		string	true	"Participant id"
//	@Success	200				{object}	response.Envelope{data=domain.Certificate}
//	@Failure	404				{object}	response.Envelope
//	@Router		/certs/{participantId} [get]
func (h *CertificateHandler) GetApproved(c *fiber.Ctx) error {
	cert, err := h.certService.GetByParticipantID(c.UserContext(), c.Params("participantId"))
	if err != nil {
		return HandleDomainError(c, err)
	}
	return response.OK(c, cert)
}

// DownloadPublicKey godoc
//
//	@Summary	Download the public key of an approved certificate
//	@Tags		certificates
//	@Produce	application/x-pem-file
//	@Security	BearerAuth
//	@Param		certificateId	path	string	true	"Certificate id"
//	@Success	200
//	@Failure	404	{object}	response.Envelope
//	@Router		/certs/download/{certificateId} [get]
func (h *CertificateHandler) DownloadPublicKey(c *fiber.Ctx) error {
	cert, err := h.certService.GetByID(c.UserContext(), c.Params("certificateId"))
	if err != nil {
		return HandleDomainError(c, err)
	}

	c.Attachment(cert.ParticipantID + ".pem")
	c.Set(fiber.HeaderContentType, pemContentType)
	return c.SendString(cert.PublicKey)
}

// UploadCertificate godoc
//
//	@Summary		Submit a certificate request
//	@Description	Uploads a PEM certificate named <participantId>.(cer|crt|pem) and queues it for approval
//	@Tags			requests
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			participantId	formData	string	true	"Participant id"
//	@Param			description		formData	string	false	"Description"
//	@Param			cert			formData	file	true	"PEM certificate"
//	@Success		201				{object}	response.Envelope{data=CreatedRequestResponse}
//	@Failure		400				{object}	response.Envelope
//	@Router			/certs/file [post]
func (h *CertificateHandler) UploadCertificate(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return response.Unauthorized(c, MsgNotAuthenticated)
	}

	participantID := c.FormValue("participantId")
	if participantID == "" {
		return response.BadRequest(c, MsgParticipantIDRequired)
	}

	fileHeader, err := c.FormFile("cert")
	if err != nil {
		return response.BadRequest(c, MsgCertFileRequired)
	}
	if h.maxUploadBytes > 0 && fileHeader.Size > h.maxUploadBytes {
		return response.BadRequest(c, MsgCertFileTooLarge)
	}

	data, err := readFormFile(fileHeader)
	if err != nil {
		h.logger.Warn("Failed to read uploaded certificate", "error", err, "participant_id", participantID)
		return response.BadRequest(c, MsgCertFileUnreadable)
	}

	input := service.SubmitCertificateInput{
		ParticipantID: participantID,
		Filename:      fileHeader.Filename,
		CertPEM:       data,
	}
	if description := c.FormValue("description"); description != "" {
		input.Description = &description
	}

	cert, err := h.certService.Submit(c.UserContext(), actor, input)
	if err != nil {
		return HandleDomainError(c, err)
	}

	return response.Created(c, CreatedRequestResponse{
		ID:            cert.ID,
		ParticipantID: cert.ParticipantID,
	})
}

// Approve godoc
//
//	@Summary	Approve a certificate request
//	@Tags		requests
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Request id"
//	@Success	200	{object}	response.Envelope{data=MessageResponse}
//	@Failure	400	{object}	response.Envelope
//	@Router		/certs/{id}/approve [post]
func (h *CertificateHandler) Approve(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return response.Unauthorized(c, MsgNotAuthenticated)
	}

	if err := h.certService.Approve(c.UserContext(), actor, c.Params("id")); err != nil {
		return HandleDomainError(c, err)
	}
	return response.OK(c, MessageResponse{Message: "certificate request approved"})
}

// BulkApprove godoc
//
//	@Summary		Approve several certificate requests
//	@Description	All requests must belong to different participants; the batch succeeds or fails as a whole
//	@Tags			requests
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			body	body		BulkRequestInput	true	"Request ids"
//	@Success		200		{object}	response.Envelope{data=MessageResponse}
//	@Router			/certs/bulkapprove [post]
func (h *CertificateHandler) BulkApprove(c *fiber.Ctx) error {
	actor, ids, err := h.bulkInput(c)
	if err != nil || ids == nil {
		return err
	}

	if err := h.certService.BulkApprove(c.UserContext(), actor, ids); err != nil {
		return HandleDomainError(c, err)
	}
	return response.OK(c, MessageResponse{Message: "certificate requests approved"})
}

// Reject godoc
//
//	@Summary	Reject a certificate request
//	@Tags		requests
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Request id"
//	@Success	200	{object}	response.Envelope{data=MessageResponse}
//	@Router		/certs/{id}/reject [post]
func (h *CertificateHandler) Reject(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return response.Unauthorized(c, MsgNotAuthenticated)
	}

	if err := h.certService.Reject(c.UserContext(), actor, c.Params("id")); err != nil {
		return HandleDomainError(c, err)
	}
	return response.OK(c, MessageResponse{Message: "certificate request rejected"})
}

// BulkReject godoc
//
//	@Summary		Reject several certificate requests
//	@Description	The batch succeeds or fails as a whole
//	@Tags			requests
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			body	body		BulkRequestInput	true	"Request ids"
//	@Success		200		{object}	response.Envelope{data=MessageResponse}
//	@Router			/certs/bulkreject [post]
func (h *CertificateHandler) BulkReject(c *fiber.Ctx) error {
	actor, ids, err := h.bulkInput(c)
	if err != nil || ids == nil {
		return err
	}

	if err := h.certService.BulkReject(c.UserContext(), actor, ids); err != nil {
		return HandleDomainError(c, err)
	}
	return response.OK(c, MessageResponse{Message: "certificate requests rejected"})
}

// DeleteRequest godoc
//
//	@Summary	Delete a certificate request
//	@Tags		requests
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id				path	string	true	"Request id"
//	@Param		participantId	query	string	true	"Participant id"
//	@Success	204
//	@Router		/certs/requests/{id} [delete]
func (h *CertificateHandler) DeleteRequest(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return response.Unauthorized(c, MsgNotAuthenticated)
	}

	participantID := c.Query("participantId")
	if participantID == "" {
		return response.BadRequest(c, MsgParticipantIDRequired)
	}

	if err := h.certService.DeleteRequest(c.UserContext(), actor, c.Params("id"), participantID); err != nil {
		return HandleDomainError(c, err)
	}
	return response.NoContent(c)
}

// BulkDelete godoc
//
//	@Summary		Delete several certificate requests
//	@Description	Approved requests cannot be deleted; the batch succeeds or fails as a whole
//	@Tags			requests
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			body	body	BulkRequestInput	true	"Request ids"
//	@Success		204
//	@Router			/certs/bulkdelete [post]
func (h *CertificateHandler) BulkDelete(c *fiber.Ctx) error {
	actor, ids, err := h.bulkInput(c)
	if err != nil || ids == nil {
		return err
	}

	if err := h.certService.BulkDeleteRequests(c.UserContext(), actor, ids); err != nil {
		return HandleDomainError(c, err)
	}
	return response.NoContent(c)
}

// ListPrivileges godoc
//
//	@Summary	List the privileges this service enforces
//	@Tags		privileges
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	response.Envelope{data=[]domain.PrivilegeDefinition}
//	@Router		/privileges [get]
func (h *CertificateHandler) ListPrivileges(c *fiber.Ctx) error {
	return response.OK(c, domain.PrivilegeDefinitions)
}

// bulkInput returns nil ids when it already wrote an error response.
func (h *CertificateHandler) bulkInput(c *fiber.Ctx) (domain.Actor, []string, error) {
	actor, ok := actorFromContext(c)
	if !ok {
		return domain.Actor{}, nil, response.Unauthorized(c, MsgNotAuthenticated)
	}

	var input BulkRequestInput
	if err := c.BodyParser(&input); err != nil {
		return domain.Actor{}, nil, response.BadRequest(c, MsgInvalidRequestBody)
	}
	if len(input.CertificateIDs) == 0 {
		return domain.Actor{}, nil, response.BadRequest(c, MsgCertificateIDsRequired)
	}

	return actor, input.CertificateIDs, nil
}

func readFormFile(fileHeader *multipart.FileHeader) ([]byte, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}
