package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAPIError(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("wrong token kind")

	t.Run("formats with and without details", func(t *testing.T) {
		require.Equal(t, "BAD_REQUEST: invalid body", New("BAD_REQUEST", "invalid body", "", http.StatusBadRequest).Error())
		require.Equal(t, "BAD_REQUEST: invalid body (username)", New("BAD_REQUEST", "invalid body", "username", http.StatusBadRequest).Error())
	})

	t.Run("wrap keeps sentinel reachable", func(t *testing.T) {
		err := fmt.Errorf("refresh: %w", Wrap(sentinel, "WRONG_TOKEN_KIND", "not a refresh token", http.StatusBadRequest))

		require.ErrorIs(t, err, sentinel)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusBadRequest, apiErr.HTTPStatus)
	})

	t.Run("nil receiver is safe", func(t *testing.T) {
		var apiErr *APIError
		require.Equal(t, "", apiErr.Error())
		require.NoError(t, apiErr.Unwrap())
	})
}
