package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rightupnext/billing/internal/shared"
)

func TestRespondErrorMapsTaxonomy(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{shared.Validationf("unit required"), http.StatusBadRequest},
		{shared.NotFoundf("invoice 4"), http.StatusNotFound},
		{fmt.Errorf("insert: %w", shared.ErrDuplicate), http.StatusConflict},
		{&shared.InsufficientStockError{InventoryID: 1, Available: decimal.NewFromInt(1), Requested: decimal.NewFromInt(2)}, http.StatusBadRequest},
		{&shared.OverpaymentError{Balance: decimal.Zero, Attempted: decimal.NewFromInt(1)}, http.StatusBadRequest},
		{shared.ErrSubscriptionExpired, http.StatusForbidden},
		{errors.New("dial tcp 10.0.0.1:5432: connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code, tc.err.Error())

		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, tc.status, body.Status)
		if tc.status == http.StatusInternalServerError {
			require.Empty(t, body.Detail)
		} else {
			require.Equal(t, tc.err.Error(), body.Detail)
		}
	}
}
