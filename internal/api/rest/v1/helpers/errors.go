package helpers

import (
	"errors"

	"github.com/collabodraw/live/internal/dispatch"
	apierrors "github.com/seventv/common/errors"
	"go.uber.org/zap"
)

// APIError converts a dispatcher error into the error shown to API clients
func APIError(err error) apierrors.APIError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, dispatch.ErrUnidentified):
		return apierrors.ErrUnauthorized().SetDetail("Sign in to view this board")
	case errors.Is(err, dispatch.ErrAccessDenied):
		return apierrors.ErrInsufficientPrivilege().SetDetail("You cannot view this board")
	default:
		zap.S().Errorw("live state request failed",
			"error", err,
		)

		return apierrors.ErrInternalServerError()
	}
}
