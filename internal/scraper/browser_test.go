package scraper

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderedPage_StatusRules(t *testing.T) {
	const u = "https://lista.mercadolivre.com.br/fone"

	tests := []struct {
		name       string
		status     int
		wantStatus int
		wantErr    bool
	}{
		{"success", http.StatusOK, http.StatusOK, false},
		{"no document response", 0, http.StatusOK, false},
		{"not found is terminal", http.StatusNotFound, http.StatusNotFound, false},
		{"throttled", http.StatusTooManyRequests, 0, true},
		{"server error", http.StatusInternalServerError, 0, true},
		{"forbidden", http.StatusForbidden, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := renderedPage(u, tt.status, "<html><body></body></html>")
			if tt.wantErr {
				var statusErr *StatusError
				require.True(t, errors.As(err, &statusErr))
				assert.Equal(t, tt.status, statusErr.StatusCode)
				assert.Nil(t, page)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, page.StatusCode)
			assert.Equal(t, tt.status == http.StatusNotFound, page.NotFound())
		})
	}
}

func TestRenderedPage_ThrottledStatusIsRetryable(t *testing.T) {
	_, err := renderedPage("https://lista.mercadolivre.com.br/fone", http.StatusServiceUnavailable, "")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.True(t, statusErr.Throttled())
}
