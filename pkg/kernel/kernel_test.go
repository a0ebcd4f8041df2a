package kernel_test

import (
	"testing"

	"github.com/secufusion/iamplane/pkg/kernel"
	"github.com/stretchr/testify/assert"
)

func TestHasScopeWildcards(t *testing.T) {
	ac := &kernel.AuthContext{UserID: "u", Scopes: []string{"ROLE_admin", "tenants:*"}}

	assert.True(t, ac.HasScope("ROLE_admin"))
	assert.True(t, ac.HasScope("tenants:write"))
	assert.False(t, ac.HasScope("tenantsx:write"))
	assert.True(t, ac.HasAnyScope("nope", "tenants:read"))
	assert.True(t, ac.IsValid())
	assert.False(t, (&kernel.AuthContext{}).IsValid())
}
