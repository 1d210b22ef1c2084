package handler

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/sirupsen/logrus"

	"patrimonio-api/internal/label"
	"patrimonio-api/internal/lock"
	"patrimonio-api/internal/media"
	"patrimonio-api/internal/middleware"
	"patrimonio-api/internal/rowproxy"
	"patrimonio-api/internal/service"
	"patrimonio-api/pkg/apierror"
	"patrimonio-api/pkg/response"
)

// toAPIError maps domain errors onto API errors.
func toAPIError(err error) *apierror.Error {
	var (
		apiErr     *apierror.Error
		validation *service.ValidationError
		partial    *rowproxy.PartialUpdateError
		upstream   *rowproxy.UpstreamError
	)

	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &validation):
		details := make([]apierror.FieldError, 0, len(validation.Fields))
		for field, msg := range validation.Fields {
			details = append(details, apierror.FieldError{Field: field, Message: msg})
		}
		sort.Slice(details, func(i, j int) bool { return details[i].Field < details[j].Field })
		return apierror.ValidationError("Missing or invalid fields", details...)

	case errors.Is(err, rowproxy.ErrDuplicateKey):
		return apierror.DuplicateKey("A record with this key already exists")
	case errors.Is(err, rowproxy.ErrNotFound):
		return apierror.NotFound("Record not found")
	case errors.Is(err, rowproxy.ErrStaleHandle):
		return apierror.StaleHandle("")
	case errors.Is(err, rowproxy.ErrInvalidHandle):
		return apierror.BadRequest("Invalid row number")
	case errors.Is(err, rowproxy.ErrUnavailable):
		return apierror.StoreUnavailable("Database connection error")
	case errors.As(err, &partial):
		return apierror.Upstream("Record was only partially updated; reload it and retry")
	case errors.As(err, &upstream):
		return apierror.Upstream("Spreadsheet operation failed")

	case errors.Is(err, media.ErrUnsupportedType):
		return apierror.BadRequest("Photo must be a JPG or PNG image")
	case errors.Is(err, media.ErrTooLarge):
		return apierror.BadRequest("Photo exceeds the upload size limit")
	case errors.Is(err, media.ErrUploadFailed):
		return apierror.Upstream("Photo upload failed")

	case errors.Is(err, label.ErrContentTooLong):
		return apierror.BadRequest("Label id is too long for a QR code")
	case errors.Is(err, service.ErrUploadsDisabled):
		return apierror.BadRequest("Photo uploads are disabled")
	case errors.Is(err, service.ErrInvalidCredentials):
		return apierror.Unauthorized("Invalid email or password")
	case errors.Is(err, service.ErrInvalidSession):
		return apierror.Unauthorized("Invalid or expired session")
	case errors.Is(err, service.ErrRequestInFlight):
		return apierror.Conflict("A request with this Idempotency-Key is still being processed")
	case errors.Is(err, service.ErrInvalidState):
		return apierror.BadRequest("Invalid or expired sign-in attempt")
	case errors.Is(err, service.ErrOAuthDisabled):
		return apierror.ServiceUnavailable("Google sign-in is not configured")

	case errors.Is(err, lock.ErrNotObtained), errors.Is(err, context.DeadlineExceeded):
		return apierror.ServiceUnavailable("Store is busy, retry shortly")
	}
	return apierror.InternalError("")
}

// writeError maps err, logs server-side failures and writes the response.
func writeError(w http.ResponseWriter, r *http.Request, logger logrus.FieldLogger, err error) {
	apiErr := toAPIError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		logger.WithError(err).WithFields(logrus.Fields{
			"request_id": middleware.GetRequestID(r.Context()),
			"path":       r.URL.Path,
			"code":       apiErr.Code,
		}).Error("Request failed")
	}
	response.Error(w, apiErr)
}
