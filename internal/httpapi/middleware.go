package httpapi

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chesslm/pkg/chessdto"
)

var validate = validator.New()

const bodyKey = "validatedBody"

// apiError carries the status and payload an error should be rendered with.
type apiError struct {
	Status  int
	Code    string
	Message string
	Details string
}

func (e *apiError) Error() string { return e.Message }

func newAPIError(status int, code, msg, details string) *apiError {
	return &apiError{Status: status, Code: code, Message: msg, Details: details}
}

func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		resp := chessdto.ErrorResponse{Error: "internal server error", Code: chessdto.CodeInternal}
		status := fiber.StatusInternalServerError

		var ae *apiError
		var fe *fiber.Error
		switch {
		case errors.As(err, &ae):
			status = ae.Status
			resp = chessdto.ErrorResponse{Error: ae.Message, Code: ae.Code, Details: ae.Details}
		case errors.As(err, &fe):
			status = fe.Code
			resp.Error = fe.Message
			switch status {
			case fiber.StatusNotFound:
				resp.Code = chessdto.CodeNotFound
			case fiber.StatusBadRequest:
				resp.Code = chessdto.CodeInvalidRequest
			case fiber.StatusTooManyRequests:
				resp.Code = chessdto.CodeRateLimited
			}
		default:
			logger.Error("http_unhandled_error", zap.String("path", c.Path()), zap.Error(err))
		}
		return c.Status(status).JSON(resp)
	}
}

// requestLogger logs one line per request and echoes a request id.
func requestLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		rid := strings.TrimSpace(c.Get(fiber.HeaderXRequestID))
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(fiber.HeaderXRequestID, rid)

		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			var ae *apiError
			var fe *fiber.Error
			switch {
			case errors.As(err, &ae):
				status = ae.Status
			case errors.As(err, &fe):
				status = fe.Code
			default:
				status = fiber.StatusInternalServerError
			}
		}
		logger.Info("http_request",
			zap.String("request_id", rid),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		)
		return err
	}
}

// contentTypeValidator rejects POST bodies that are not JSON.
func contentTypeValidator(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost && len(c.Body()) > 0 {
		ct := strings.ToLower(c.Get(fiber.HeaderContentType))
		if ct != "" && !strings.HasPrefix(ct, fiber.MIMEApplicationJSON) {
			return newAPIError(fiber.StatusUnsupportedMediaType, chessdto.CodeInvalidRequest,
				"unsupported media type", "Content-Type must be application/json")
		}
	}
	return c.Next()
}

// validated parses the body into T, runs struct validation and stores the
// result in Locals for the handler.
func validated[T any]() fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := new(T)
		if err := c.BodyParser(req); err != nil {
			return newAPIError(fiber.StatusBadRequest, chessdto.CodeInvalidRequest, "invalid request body", err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return newAPIError(fiber.StatusBadRequest, chessdto.CodeInvalidRequest, "validation failed", describeValidation(err))
		}
		c.Locals(bodyKey, req)
		return c.Next()
	}
}

func body[T any](c *fiber.Ctx) (*T, error) {
	req, ok := c.Locals(bodyKey).(*T)
	if !ok || req == nil {
		return nil, newAPIError(fiber.StatusInternalServerError, chessdto.CodeInternal, "validation data missing", "")
	}
	return req, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	var details strings.Builder
	for _, fe := range verrs {
		if details.Len() > 0 {
			details.WriteString("; ")
		}
		switch fe.Tag() {
		case "required", "required_if":
			details.WriteString(fmt.Sprintf("%s is required", fe.Namespace()))
		case "oneof":
			details.WriteString(fmt.Sprintf("%s must be one of [%s]", fe.Namespace(), fe.Param()))
		case "min", "max":
			bound := "at least"
			if fe.Tag() == "max" {
				bound = "at most"
			}
			if fe.Type().Kind() == reflect.String {
				details.WriteString(fmt.Sprintf("%s must be %s %s characters", fe.Namespace(), bound, fe.Param()))
			} else {
				details.WriteString(fmt.Sprintf("%s must be %s %s", fe.Namespace(), bound, fe.Param()))
			}
		default:
			details.WriteString(fmt.Sprintf("%s failed %s validation", fe.Namespace(), fe.Tag()))
		}
	}
	return details.String()
}
