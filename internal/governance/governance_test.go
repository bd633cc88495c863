package governance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAuthority(t *testing.T) {
	_, err := NewAuthority("")
	assert.ErrorIs(t, err, ErrEmptyAccount)

	auth, err := NewAuthority("gov")
	require.NoError(t, err)
	assert.Equal(t, "gov", auth.Governor())
	assert.Empty(t, auth.Strategist())
	assert.Empty(t, auth.PendingGovernor())
}

func TestRoleChecks(t *testing.T) {
	auth, err := NewAuthority("gov")
	require.NoError(t, err)
	require.NoError(t, auth.SetStrategist("gov", "strat"))

	assert.NoError(t, auth.RequireGovernor("gov"))
	assert.ErrorIs(t, auth.RequireGovernor("strat"), ErrNotGovernor)
	assert.ErrorIs(t, auth.RequireGovernor(""), ErrNotGovernor)

	// The governor passes strategist checks too.
	assert.NoError(t, auth.RequireStrategist("strat"))
	assert.NoError(t, auth.RequireStrategist("gov"))
	assert.ErrorIs(t, auth.RequireStrategist("outsider"), ErrNotStrategist)

	assert.ErrorIs(t, auth.SetStrategist("strat", "other"), ErrNotGovernor)
}

func TestTwoStepGovernanceTransfer(t *testing.T) {
	auth, err := NewAuthority("alice")
	require.NoError(t, err)

	assert.ErrorIs(t, auth.TransferGovernance("bob", "bob"), ErrNotGovernor)
	assert.ErrorIs(t, auth.TransferGovernance("alice", ""), ErrEmptyAccount)

	require.NoError(t, auth.TransferGovernance("alice", "bob"))
	assert.Equal(t, "bob", auth.PendingGovernor())

	// The nomination alone changes nothing.
	assert.Equal(t, "alice", auth.Governor())
	assert.NoError(t, auth.RequireGovernor("alice"))
	assert.ErrorIs(t, auth.RequireGovernor("bob"), ErrNotGovernor)

	// Only the nominee may claim.
	assert.ErrorIs(t, auth.ClaimGovernance("carol"), ErrNotPendingGovernor)
	require.NoError(t, auth.ClaimGovernance("bob"))

	assert.Equal(t, "bob", auth.Governor())
	assert.Empty(t, auth.PendingGovernor())
	assert.ErrorIs(t, auth.RequireGovernor("alice"), ErrNotGovernor)

	// No transfer in flight: claims fail.
	assert.ErrorIs(t, auth.ClaimGovernance("bob"), ErrNotPendingGovernor)
}

func TestGovernorCanReplaceNominee(t *testing.T) {
	auth, err := NewAuthority("alice")
	require.NoError(t, err)

	require.NoError(t, auth.TransferGovernance("alice", "bob"))
	require.NoError(t, auth.TransferGovernance("alice", "carol"))

	assert.ErrorIs(t, auth.ClaimGovernance("bob"), ErrNotPendingGovernor)
	require.NoError(t, auth.ClaimGovernance("carol"))
	assert.Equal(t, "carol", auth.Governor())
}
