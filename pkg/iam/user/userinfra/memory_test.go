package userinfra_test

import (
	"context"
	"errors"
	"testing"

	"github.com/secufusion/iamplane/pkg/iam/user"
	"github.com/secufusion/iamplane/pkg/iam/user/userinfra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryExistsBy(t *testing.T) {
	repo := userinfra.NewMemoryUserRepository()
	repo.Put(&user.User{ID: "u-1", TenantID: "t-1", UserName: "adaa7", Email: "a@x.io", PhoneNo: "+1000"})
	ctx := context.Background()

	cases := []struct {
		field user.UniqueField
		value string
		want  bool
	}{
		{user.FieldUserName, "adaa7", true},
		{user.FieldUserName, "other1", false},
		{user.FieldEmail, "a@x.io", true},
		{user.FieldEmail, "b@x.io", false},
		{user.FieldPhone, "+1000", true},
		{user.FieldPhone, "+2000", false},
	}
	for _, tc := range cases {
		got, err := repo.ExistsBy(ctx, tc.field, tc.value)
		require.NoError(t, err, "%s=%s", tc.field, tc.value)
		assert.Equal(t, tc.want, got, "%s=%s", tc.field, tc.value)
	}

	_, err := repo.ExistsBy(ctx, user.UniqueField("nickname"), "x")
	assert.Error(t, err)

	boom := errors.New("db down")
	repo.FailNext(userinfra.OpExistsBy, boom)
	exists, err := repo.ExistsBy(ctx, user.FieldEmail, "a@x.io")
	assert.ErrorIs(t, err, boom)
	assert.False(t, exists)
}
