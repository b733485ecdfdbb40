package service

import (
	"errors"

	"lectern/internal/models"
	"lectern/internal/observability"
	"lectern/internal/storage"
	"lectern/internal/validation"
)

// rejectUpload counts a failed upload check and turns it into a 400.
func rejectUpload(err error) error {
	if ue, ok := validation.AsUploadError(err); ok {
		observability.UploadRejections.WithLabelValues(string(ue.Stage)).Inc()
		return &models.AppError{Code: models.CodeValidation, Message: ue.Error(), Err: ue}
	}
	return models.NewValidationError(err.Error())
}

func storageError(err error, resource string, id any) error {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidKey):
		return models.NewNotFoundError(resource, id)
	default:
		return models.NewInternalError(err)
	}
}
