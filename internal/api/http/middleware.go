package http

import (
	"context"
	"errors"
	"math"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/urbanecho/civic-service/internal/observability"
	apperrors "github.com/urbanecho/civic-service/pkg/util/errorutil"
)

// RegisterMiddlewares attaches request logging, error rendering and the request timeout.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics))
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err == nil {
				return
			}
			domainErr := toDomainError(err)
			metrics.RecordError(c.Route().Path, c.Method(), domainErr.Code)
			if domainErr.HTTPStatus >= fiber.StatusInternalServerError {
				logger.Error("request failed", zap.String("path", c.Path()), zap.Error(domainErr))
			}
			err = writeError(c, domainErr)
		}()
		return c.Next()
	}
}

// toDomainError also maps fiber's own errors (unknown route, bad method, body limits).
func toDomainError(err error) *apperrors.DomainError {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := apperrors.CodeInternal
		switch {
		case fe.Code == fiber.StatusNotFound:
			code = apperrors.CodeNotFound
		case fe.Code == fiber.StatusUnauthorized:
			code = apperrors.CodeUnauthorized
		case fe.Code == fiber.StatusForbidden:
			code = apperrors.CodeForbidden
		case fe.Code < fiber.StatusInternalServerError:
			code = apperrors.CodeValidation
		}
		return apperrors.NewDomainError(code, fe.Message, fe.Code, nil)
	}
	return apperrors.ToDomainError(err)
}

func writeError(c *fiber.Ctx, domainErr *apperrors.DomainError) error {
	body := fiber.Map{
		"code":    domainErr.Code,
		"message": domainErr.Message,
	}
	if len(domainErr.Details) > 0 {
		body["details"] = domainErr.Details
	}
	if retry, ok := domainErr.Details["retry_after"].(float64); ok {
		c.Set(fiber.HeaderRetryAfter, strconv.FormatInt(int64(math.Ceil(retry)), 10))
	}
	return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"error": body})
}
