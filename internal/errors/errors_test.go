package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/victornm/kiosk/internal/errors"
)

func TestError_HTTPStatusCode(t *testing.T) {
	tests := map[errors.Code]int{
		errors.CodeInvalidArgument:    http.StatusBadRequest,
		errors.CodeNotFound:           http.StatusNotFound,
		errors.CodeAlreadyExists:      http.StatusConflict,
		errors.CodeFailedPrecondition: http.StatusUnprocessableEntity,
		errors.CodeUnauthenticated:    http.StatusUnauthorized,
		errors.CodeUnavailable:        http.StatusServiceUnavailable,
		errors.Code(codes.DataLoss):   http.StatusInternalServerError,
	}

	for code, want := range tests {
		assert.Equal(t, want, errors.New(code).HTTPStatusCode(), "code %d", code)
	}
}

func TestConvert(t *testing.T) {
	cause := stderrors.New("connection refused")

	e := errors.Convert(fmt.Errorf("lookup: %w", errors.Unavailable(cause)))
	require.Equal(t, errors.CodeUnavailable, e.Code)
	require.ErrorIs(t, e, cause)

	e = errors.Convert(cause)
	require.Equal(t, errors.CodeInternal, e.Code)
	require.ErrorIs(t, e, cause)
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("sale: %w", errors.FailedPrecondition("insufficient stock"))

	assert.True(t, errors.Is(err, errors.CodeFailedPrecondition))
	assert.False(t, errors.Is(err, errors.CodeNotFound))
	assert.False(t, errors.Is(stderrors.New("plain"), errors.CodeInternal))
}

func TestError_GRPCStatus(t *testing.T) {
	st := errors.NotFound("product not found: barcode=%s", "123").GRPCStatus()

	assert.Equal(t, codes.NotFound, st.Code())
	assert.Equal(t, "product not found: barcode=123", st.Message())
}
