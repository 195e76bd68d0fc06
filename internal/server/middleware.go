package server

import (
	"crypto/subtle"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/transifex/jsonapi-server/internal/logger"
	"github.com/transifex/jsonapi-server/pkg/jsonapi"
)

const RequestIDHeader = "X-Request-Id"

// fail records err for RenderErrors and stops the handler chain
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

/*
IsJSONAPI
A request is a {json:api} request when its path is under the route prefix and
it either accepts or sends the {json:api} media type. Errors of other requests
are rendered as plain JSON.
*/
func IsJSONAPI(request *http.Request, prefix string) bool {
	path := strings.TrimPrefix(request.URL.Path, "/")
	if !strings.HasPrefix(path, strings.Trim(prefix, "/")) {
		return false
	}
	if request.Header.Get("Accept") == jsonapi.MediaType {
		return true
	}
	return request.Header.Get("Content-Type") == jsonapi.MediaType
}

func renderError(c *gin.Context, prefix string, log *slog.Logger, err error) {
	status, document := jsonapi.ErrorDocumentFor(
		err, jsonapi.DefaultDetailOverrides,
	)
	log = logger.WithRequestID(c.Request.Context(), log)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "path", c.Request.URL.Path, "error", err)
	} else {
		log.Debug("request rejected", "status", status, "error", err)
	}

	if IsJSONAPI(c.Request, prefix) {
		c.Header("Content-Type", jsonapi.MediaType)
		c.JSON(status, document)
		return
	}
	message := http.StatusText(status)
	if len(document.Errors) == 1 {
		message = document.Errors[0].Detail
	} else if len(document.Errors) > 1 {
		message = document.Errors[0].Title
	}
	c.Header("Content-Type", "application/json; charset=utf-8")
	c.JSON(status, gin.H{"message": message})
}

// RenderErrors writes the response of the last error a handler recorded with
// c.Error, unless something was written already
func RenderErrors(prefix string, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}
		renderError(c, prefix, log, last.Err)
	}
}

// Recovery turns a panic into a 500 error document
func Recovery(prefix string, log *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(
		c *gin.Context, recovered interface{},
	) {
		renderError(c, prefix, log, fmt.Errorf("panic: %v", recovered))
		c.Abort()
	})
}

// RequestLogger gives every request an id and logs it once it is served
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)
		ctx := logger.ContextWithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		logger.WithRequestID(ctx, log).Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

/*
ValidateHeaders
Every request must accept the {json:api} media type (406 otherwise) and POST
and PATCH requests must send it (415 otherwise). Responses are sent with the
{json:api} content type.
*/
func ValidateHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Accept") != jsonapi.MediaType {
			fail(c, &jsonapi.HttpError{
				StatusCode: http.StatusNotAcceptable,
				Message:    "Not Acceptable",
			})
			return
		}

		method := c.Request.Method
		if method == http.MethodPost || method == http.MethodPatch {
			if c.GetHeader("Content-Type") != jsonapi.MediaType {
				fail(c, &jsonapi.HttpError{
					StatusCode: http.StatusUnsupportedMediaType,
					Message:    "Unsupported Media Type",
				})
				return
			}
		}

		c.Header("Content-Type", jsonapi.MediaType)
		c.Next()
	}
}

// Authenticate requires 'Authorization: Bearer <token>', an empty token lets
// every request through
func Authenticate(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		sent := strings.TrimPrefix(header, "Bearer ")
		if sent == header || subtle.ConstantTimeCompare(
			[]byte(sent), []byte(token),
		) != 1 {
			fail(c, &jsonapi.AuthenticationError{})
			return
		}
		c.Next()
	}
}
