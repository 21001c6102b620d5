package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/certmgmt/backend/internal/domain"
	"github.com/certmgmt/backend/internal/middleware"
	"github.com/certmgmt/backend/internal/response"
)

func HandleDomainError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		return response.Conflict(c, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		return response.ValidationError(c, err.Error())
	case errors.Is(err, domain.ErrStorageUnavailable):
		return response.ServiceUnavailable(c, MsgStorageUnavailable)
	case errors.Is(err, domain.ErrUnauthorized):
		return response.Unauthorized(c, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return response.Forbidden(c, err.Error())
	default:
		return response.InternalError(c)
	}
}

// actorFromContext describes the caller for audit records. Routes using it
// sit behind AuthMiddleware.Require, so the security context is present.
func actorFromContext(c *fiber.Ctx) (domain.Actor, bool) {
	sc := middleware.GetSecurityContext(c)
	if sc == nil || sc.Username == "" {
		return domain.Actor{}, false
	}
	return domain.Actor{
		UserName:  sc.Username,
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}, true
}
