package errx_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testRegistry = errx.NewRegistry("TEST")
	codeDup      = testRegistry.RegisterNumbered("DOMAIN_ALREADY_EXISTS", 1002, errx.TypeValidation, http.StatusBadRequest, "Domain already exists.")
	codeOther    = testRegistry.Register("OTHER", errx.TypeInternal, http.StatusInternalServerError, "other")
)

func TestRegistryNewCarriesNumber(t *testing.T) {
	err := testRegistry.New(codeDup)

	assert.Equal(t, "DOMAIN_ALREADY_EXISTS", err.Code)
	assert.Equal(t, 1002, err.Number)
	assert.Equal(t, http.StatusBadRequest, err.Status())
	assert.Equal(t, "[TEST/DOMAIN_ALREADY_EXISTS] Domain already exists.", err.Error())
}

func TestRegisterTwicePanics(t *testing.T) {
	r := errx.NewRegistry("X")
	r.Register("A", errx.TypeInternal, 500, "a")
	assert.Panics(t, func() { r.Register("A", errx.TypeInternal, 500, "a") })
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", testRegistry.New(codeDup))

	assert.True(t, errors.Is(wrapped, testRegistry.New(codeDup)))
	assert.False(t, errors.Is(wrapped, testRegistry.New(codeOther)))
	assert.True(t, errx.HasCode(wrapped, codeDup))
}

func TestWrapKeepsCodeAndNumber(t *testing.T) {
	base := testRegistry.New(codeDup)
	w := errx.Wrap(base, "while saving", errx.TypeInternal)

	assert.Equal(t, "DOMAIN_ALREADY_EXISTS", w.Code)
	assert.Equal(t, 1002, w.Number)
	assert.Nil(t, errx.Wrap(nil, "nothing", errx.TypeInternal))
}

func TestToHTTPResponse(t *testing.T) {
	body := testRegistry.New(codeDup).WithDetail("domain", "abc").ToHTTPResponse()

	assert.False(t, body.Success)
	assert.Equal(t, "DOMAIN_ALREADY_EXISTS", body.ErrorCode)
	assert.Equal(t, 1002, body.ErrorNumber)
	assert.Equal(t, "abc", body.Details["domain"])
	assert.NotEmpty(t, body.Timestamp)
}

func TestFromErrorFallsBackToInternal(t *testing.T) {
	e := errx.FromError(errors.New("boom"))

	require.NotNil(t, e)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", e.Code)
	assert.Equal(t, 5000, e.Number)
	assert.Equal(t, http.StatusInternalServerError, e.Status())

	coded := testRegistry.New(codeDup)
	assert.Same(t, coded, errx.FromError(fmt.Errorf("ctx: %w", coded)))
}
