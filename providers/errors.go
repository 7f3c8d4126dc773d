package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	apperrors "github.com/SIR2425/go-oauth20/internal/errors"
	"golang.org/x/oauth2"
)

// ClassifyExchangeError maps a token endpoint failure onto the error taxonomy.
// The original error stays in the chain.
func ClassifyExchangeError(err error) error {
	if err == nil {
		return nil
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		if status >= http.StatusInternalServerError {
			return fmt.Errorf("%w: token endpoint returned %d: %w", apperrors.ErrNetwork, status, err)
		}
		return fmt.Errorf("%w: %s: %w", apperrors.ErrProvider, retrieveCode(retrieveErr), err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", apperrors.ErrNetwork, err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %w", apperrors.ErrNetwork, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", apperrors.ErrNetwork, err)
	}

	return fmt.Errorf("%w: %w", apperrors.ErrMalformedResponse, err)
}

func retrieveCode(err *oauth2.RetrieveError) string {
	if err.ErrorCode != "" {
		return err.ErrorCode
	}
	return "rejected"
}
