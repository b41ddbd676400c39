package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoteSetDecodesLegacyAndListShapes(t *testing.T) {
	raw := `{
		"u1": 5,
		"u2": [1, 2],
		"u3": "bogus",
		"u4": [1, "x", 3]
	}`

	var votes map[string]VoteSet
	require.NoError(t, json.Unmarshal([]byte(raw), &votes))

	assert.Equal(t, VoteSet{5}, votes["u1"], "legacy scalar becomes a one-element set")
	assert.Equal(t, VoteSet{1, 2}, votes["u2"])
	assert.Empty(t, votes["u3"], "unrecognized shape is dropped")
	assert.Equal(t, VoteSet{1, 3}, votes["u4"], "non-integer entries are dropped")
}

func TestVoteSetAlwaysEncodesAsList(t *testing.T) {
	b, err := json.Marshal(map[string]VoteSet{"u1": {5}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"u1":[5]}`, string(b))

	b, err = json.Marshal(VoteSet(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))
}

func TestVoteSetHasAndWithout(t *testing.T) {
	v := VoteSet{0, 2, 4}
	assert.True(t, v.Has(2))
	assert.False(t, v.Has(1))
	assert.Equal(t, VoteSet{0, 4}, v.Without(2))
	assert.Equal(t, VoteSet{0, 2, 4}, v.Without(7))
}

func TestAccessFor(t *testing.T) {
	p := Project{
		OwnerID:         "owner",
		CollaboratorIDs: []string{"alice", "bob"},
	}

	assert.Equal(t, AccessOwner, p.AccessFor("owner"))
	assert.Equal(t, AccessCollaborator, p.AccessFor("bob"))
	assert.Equal(t, AccessDenied, p.AccessFor("mallory"))
}

func TestNodeEventValid(t *testing.T) {
	assert.True(t, (&NodeEvent{Type: NodeAdd, NodeID: "n1"}).Valid())
	assert.True(t, (&NodeEvent{Type: NodeDelete, NodeID: "n1"}).Valid())
	assert.False(t, (&NodeEvent{Type: "MOVE", NodeID: "n1"}).Valid())
	assert.False(t, (&NodeEvent{Type: NodeUpdate}).Valid(), "node id is required")
}
