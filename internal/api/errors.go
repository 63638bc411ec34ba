package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/yuki5321/AIsindan/internal/apperrors"
	"github.com/yuki5321/AIsindan/internal/classifier"
	"github.com/yuki5321/AIsindan/internal/observability"
	"github.com/yuki5321/AIsindan/internal/refine"
	"github.com/yuki5321/AIsindan/internal/symptomindex"
)

const (
	codeInvalidVector    = "INVALID_VECTOR"
	codeInvalidImage     = "INVALID_IMAGE"
	codeUnsupportedMedia = "UNSUPPORTED_MEDIA_TYPE"
	codeImageTooLarge    = "IMAGE_TOO_LARGE"
	codePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	codeEmptyRequest     = "EMPTY_REQUEST"
	codeRateLimited      = "RATE_LIMITED"
)

// errorStatus maps an error to its HTTP status, machine code and the message
// safe to show the caller.
func errorStatus(err error) (int, string, string) {
	var (
		invalidVector *classifier.InvalidVectorError
		invalidImage  *classifier.InvalidImageError
		unsupported   *classifier.UnsupportedMediaError
		tooLarge      *classifier.ImageTooLargeError
		classifierErr *classifier.UnavailableError
		emptyRequest  *refine.EmptyRequestError
		indexErr      *symptomindex.UnavailableError
		maxBytes      *http.MaxBytesError
		validation    validator.ValidationErrors
		appErr        *apperrors.AppError
	)

	switch {
	case errors.As(err, &invalidVector):
		return http.StatusBadRequest, codeInvalidVector, invalidVector.Error()
	case errors.As(err, &invalidImage):
		return http.StatusBadRequest, codeInvalidImage, invalidImage.Error()
	case errors.As(err, &unsupported):
		return http.StatusUnsupportedMediaType, codeUnsupportedMedia, unsupported.Error()
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, codeImageTooLarge, tooLarge.Error()
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, codePayloadTooLarge, "request body too large"
	case errors.As(err, &emptyRequest):
		return http.StatusBadRequest, codeEmptyRequest, emptyRequest.Error()
	case errors.As(err, &classifierErr):
		return http.StatusServiceUnavailable, string(apperrors.ErrorTypeUnavailable), "classifier unavailable"
	case errors.As(err, &indexErr):
		return http.StatusServiceUnavailable, string(apperrors.ErrorTypeUnavailable), "disease-symptom index unavailable"
	case errors.As(err, &validation):
		return http.StatusBadRequest, string(apperrors.ErrorTypeValidation), validation.Error()
	case errors.As(err, &appErr):
		switch appErr.Type {
		case apperrors.ErrorTypeNotFound:
			return http.StatusNotFound, string(appErr.Type), appErr.Message
		case apperrors.ErrorTypeValidation:
			return http.StatusBadRequest, string(appErr.Type), appErr.Message
		case apperrors.ErrorTypeUnauthorized:
			return http.StatusUnauthorized, string(appErr.Type), appErr.Message
		case apperrors.ErrorTypeUnavailable:
			return http.StatusServiceUnavailable, string(appErr.Type), appErr.Message
		}
	}
	return http.StatusInternalServerError, string(apperrors.ErrorTypeInternal), "internal server error"
}

func writeError(c *gin.Context, err error) {
	status, code, message := errorStatus(err)

	logger := observability.LoggerFromContext(c.Request.Context())
	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).Int("status", status).Str("code", code).Str("path", c.FullPath()).Msg("request failed")

	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": code})
}

// bindJSON decodes the body, turning syntax problems into validation errors.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		var maxBytes *http.MaxBytesError
		var validation validator.ValidationErrors
		if errors.As(err, &maxBytes) || errors.As(err, &validation) {
			return err
		}
		return apperrors.NewValidationError("invalid payload")
	}
	return nil
}
