package kernel

import "github.com/google/uuid"

type TenantID string

func NewTenantID() TenantID       { return TenantID(uuid.NewString()) }
func (t TenantID) String() string { return string(t) }
func (t TenantID) IsEmpty() bool  { return string(t) == "" }

type UserID string

func NewUserID() UserID         { return UserID(uuid.NewString()) }
func (u UserID) String() string { return string(u) }
func (u UserID) IsEmpty() bool  { return string(u) == "" }

type GroupID string

func NewGroupID() GroupID        { return GroupID(uuid.NewString()) }
func (g GroupID) String() string { return string(g) }

type RoleID string

func NewRoleID() RoleID         { return RoleID(uuid.NewString()) }
func (r RoleID) String() string { return string(r) }
