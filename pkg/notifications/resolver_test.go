package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var adminAllowList = []string{" ops@example.com "}

func TestResolver_ScopeAll(t *testing.T) {
	t.Parallel()

	dir := sampleDirectory().
		// duplicate volunteer row for the same login
		AddVolunteer(VolunteerRecord{ID: "vol-1b", AuthID: "auth-v1"})
	r := NewResolver(dir, adminAllowList)

	got, err := r.Resolve(context.Background(), TargetAll())
	require.NoError(t, err)

	seen := map[string]bool{}
	public := 0
	for _, rec := range got {
		assert.False(t, seen[rec.Key()], "duplicate recipient %s", rec.Key())
		seen[rec.Key()] = true
		if rec.IsPublic() {
			public++
			assert.Empty(t, rec.ID)
		}
		assert.NotEqual(t, RoleAdmin, rec.Role)
	}
	assert.Equal(t, 1, public)
	assert.Len(t, got, 5)
	assert.True(t, seen["volunteer:auth-v1"])
	assert.True(t, seen["volunteer:auth-v2"])
	assert.True(t, seen["customer:cust-1"])
	assert.True(t, seen["customer:cust-2"])
	assert.False(t, seen["volunteer:vol-3"])
	assert.False(t, seen["volunteer:"])
}

func TestResolver_ScopeRole(t *testing.T) {
	t.Parallel()

	r := NewResolver(sampleDirectory(), adminAllowList)
	ctx := context.Background()

	t.Run("volunteers skip missing auth identity", func(t *testing.T) {
		got, err := r.Resolve(ctx, TargetRole(RoleVolunteer))
		require.NoError(t, err)
		assert.Equal(t, []Recipient{
			{ID: "auth-v1", Role: RoleVolunteer, Email: "v1@example.com", Name: "Vera"},
			{ID: "auth-v2", Role: RoleVolunteer, Email: "v2@example.com"},
		}, got)
	})

	t.Run("customers", func(t *testing.T) {
		got, err := r.Resolve(ctx, TargetRole(RoleCustomer))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, Customer("cust-1").WithEmail("c1@example.com").Role, got[0].Role)
	})

	t.Run("admins filtered by allow-list", func(t *testing.T) {
		got, err := r.Resolve(ctx, TargetRole(RoleAdmin))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "auth-admin", got[0].ID)
		assert.Equal(t, RoleAdmin, got[0].Role)
	})

	t.Run("empty allow-list yields no admins", func(t *testing.T) {
		got, err := NewResolver(sampleDirectory(), nil).Resolve(ctx, TargetRole(RoleAdmin))
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestResolver_ScopeIndividual(t *testing.T) {
	t.Parallel()

	r := NewResolver(sampleDirectory(), adminAllowList)

	got, err := r.Resolve(context.Background(), TargetIndividuals(
		"vol-2",      // volunteer row id resolves to the auth identity
		"auth-v1",    // also an auth user, but volunteer is probed first
		"cust-1",     // customer
		"auth-admin", // admin
		"unknown",    // skipped
		"vol-3",      // volunteer without auth identity, skipped
		"auth-v2",    // same recipient as vol-2
	))
	require.NoError(t, err)

	assert.Equal(t, []Recipient{
		{ID: "auth-v2", Role: RoleVolunteer, Email: "v2@example.com"},
		{ID: "auth-v1", Role: RoleVolunteer, Email: "v1@example.com", Name: "Vera"},
		{ID: "cust-1", Role: RoleCustomer, Email: "c1@example.com", Name: "Carl"},
		{ID: "auth-admin", Role: RoleAdmin, Email: "Ops@Example.com"},
	}, got)
}

func TestResolver_InvalidSpecRejectedBeforeIO(t *testing.T) {
	t.Parallel()

	dir := &countingDirectory{MemoryDirectory: sampleDirectory()}
	r := NewResolver(dir, adminAllowList)
	ctx := context.Background()

	_, err := r.Resolve(ctx, TargetingSpec{Scope: "everyone"})
	require.ErrorIs(t, err, ErrInvalidTargetScope)

	_, err = r.Resolve(ctx, TargetRole(RolePublic))
	require.ErrorIs(t, err, ErrInvalidTargetRole)

	_, err = r.Resolve(ctx, TargetIndividuals())
	require.ErrorIs(t, err, ErrMissingTargetIDs)

	assert.Zero(t, dir.Calls())
}

func TestResolver_DirectoryError(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	dir := sampleDirectory()
	dir.Err = boom
	r := NewResolver(dir, adminAllowList)

	for _, spec := range []TargetingSpec{TargetAll(), TargetRole(RoleCustomer), TargetIndividuals("x")} {
		_, err := r.Resolve(context.Background(), spec)
		require.ErrorIs(t, err, ErrDirectoryLookup)
		require.ErrorIs(t, err, boom)
	}
}

func TestResolver_EmptyDirectory(t *testing.T) {
	t.Parallel()

	r := NewResolver(NewMemoryDirectory(), adminAllowList)

	got, err := r.Resolve(context.Background(), TargetRole(RoleVolunteer))
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = r.Resolve(context.Background(), TargetAll())
	require.NoError(t, err)
	assert.Equal(t, []Recipient{Public()}, got)
}

func TestResolver_IsAdminEmail(t *testing.T) {
	t.Parallel()

	r := NewResolver(nil, []string{"Ops@Example.com", ""})
	assert.True(t, r.IsAdminEmail("ops@example.com"))
	assert.True(t, r.IsAdminEmail("  OPS@EXAMPLE.COM"))
	assert.False(t, r.IsAdminEmail(""))
	assert.False(t, r.IsAdminEmail("other@example.com"))
}

func TestDedupe(t *testing.T) {
	t.Parallel()

	got := Dedupe([]Recipient{
		Customer("c1"),
		Volunteer("c1"),
		Customer("c1").WithEmail("c1@example.com"),
		Public(),
		Public(),
	})
	assert.Equal(t, []Recipient{
		{ID: "c1", Role: RoleCustomer, Email: "c1@example.com"},
		{ID: "c1", Role: RoleVolunteer},
		Public(),
	}, got)
}
