package apperr

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgemunganga/onchain-storefront/internal/chain"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation(map[string]string{"count": "required"}), KindValidation},
		{"wrapped precondition", fmt.Errorf("execute: %w", Precondition("already refunded")), KindPrecondition},
		{"tx failed", &chain.TxFailedError{Hash: common.HexToHash("0x1")}, KindTransactionFailed},
		{"revert", fmt.Errorf("send: %w", &chain.RevertError{Reason: "sold out"}), KindReverted},
		{"no rows", fmt.Errorf("get user: %w", sql.ErrNoRows), KindNotFound},
		{"no signer", chain.ErrNoSigner, KindPrecondition},
		{"other", errors.New("dial tcp: refused"), KindTransport},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(tc.err))
		})
	}
}

func TestWriteTransactionFailed(t *testing.T) {
	hash := common.HexToHash("0xabc")
	rec := httptest.NewRecorder()
	Write(rec, fmt.Errorf("purchase: %w", &chain.TxFailedError{Hash: hash}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body Body
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, KindTransactionFailed, body.Kind)
	assert.Equal(t, hash.Hex(), body.TxHash)
}

func TestWriteValidationFields(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, Validation(map[string]string{"amount": "must be a number"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"validation failed","kind":"validation","fields":{"amount":"must be a number"}}`, rec.Body.String())
}

func TestWriteUnclassifiedKeepsMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, errors.New("rpc unavailable"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"rpc unavailable","kind":"transport"}`, rec.Body.String())
}
