package validatorx_test

import (
	"testing"

	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/validatorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type address struct {
	City string `json:"city" validate:"max=5"`
}

type request struct {
	Email   string  `json:"email" validate:"omitempty,email"`
	Name    string  `json:"tenantName" validate:"max=8"`
	Address address `json:"billingAddress"`
}

func TestStructValid(t *testing.T) {
	assert.NoError(t, validatorx.Struct(request{Email: "a@x.io", Name: "acme"}))
	assert.NoError(t, validatorx.Struct(request{}))
}

func TestStructReportsJSONNames(t *testing.T) {
	err := validatorx.Struct(request{Email: "nope", Name: "far-too-long", Address: address{City: "Amsterdam"}})
	require.Error(t, err)

	var e *errx.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "INVALID_REQUEST", e.Code)
	assert.Equal(t, 400, e.Status())
	assert.Equal(t, "email", e.Details["email"])
	assert.Equal(t, "max=8", e.Details["tenantName"])
	assert.Equal(t, "max=5", e.Details["billingAddress.city"])
}
