package ptrx_test

import (
	"testing"

	"github.com/secufusion/iamplane/pkg/ptrx"
	"github.com/stretchr/testify/assert"
)

func TestNonZero(t *testing.T) {
	assert.Nil(t, ptrx.NonZero(""))
	assert.Equal(t, "x", *ptrx.NonZero("x"))
}

func TestValueOr(t *testing.T) {
	var p *int
	assert.Equal(t, 0, ptrx.Value(p))
	assert.Equal(t, 7, ptrx.ValueOr(p, 7))
	assert.Equal(t, 3, ptrx.ValueOr(ptrx.Of(3), 7))
}
