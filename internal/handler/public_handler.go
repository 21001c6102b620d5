package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/certmgmt/backend/internal/middleware"
	"github.com/certmgmt/backend/internal/response"
	"github.com/certmgmt/backend/internal/service"
)

// PublicHandler serves approved key material to downstream services.
type PublicHandler struct {
	certService *service.CertificateService
	auth        *middleware.AuthMiddleware
	requireAuth bool
}

func NewPublicHandler(certService *service.CertificateService, auth *middleware.AuthMiddleware, requireAuth bool) *PublicHandler {
	return &PublicHandler{
		certService: certService,
		auth:        auth,
		requireAuth: requireAuth,
	}
}

func (h *PublicHandler) Register(app *fiber.App) {
	guard := h.auth.Optional()
	if h.requireAuth {
		guard = h.auth.Require()
	}

	public := app.Group("/public/certs", guard)
	public.Get("/public-keys", h.ListPublicKeys)
	public.Get("/:participantId", h.GetCertificate)
}

// ListPublicKeys godoc
//
//	@Summary	List the public keys of all approved certificates
//	@Tags		public
//	@Produce	json
//	@Success	200	{object}	response.Envelope{data=[]domain.PublicKeyInfo}
//	@Router		/public/certs/public-keys [get]
func (h *PublicHandler) ListPublicKeys(c *fiber.Ctx) error {
	keys, err := h.certService.GetAllPublicKeys(c.UserContext())
	if err != nil {
		return HandleDomainError(c, err)
	}
	return response.OK(c, keys)
}

func (h *PublicHandler) GetCertificate(c *fiber.Ctx) error {
	cert, err := h.certService.GetByParticipantID(c.UserContext(), c.Params("participantId"))
	if err != nil {
		return HandleDomainError(c, err)
	}
	return response.OK(c, cert)
}
