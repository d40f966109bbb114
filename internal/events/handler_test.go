package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateRequestNullClearsOmittedKeeps(t *testing.T) {
	var req UpdateRequest
	require.NoError(t, json.Unmarshal([]byte(`{"capacity": null, "ends_at": null}`), &req))

	assert.True(t, req.Capacity.Set, "explicit null counts as present")
	assert.Nil(t, req.Capacity.Value)
	assert.True(t, req.EndsAt.Set)
	assert.Nil(t, req.EndsAt.Value)
	assert.False(t, req.RSVPDeadline.Set, "omitted field stays untouched")

	req = UpdateRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"capacity": 25, "ends_at": "2026-09-12T21:00:00Z"}`), &req))
	require.NotNil(t, req.Capacity.Value)
	assert.Equal(t, 25, *req.Capacity.Value)
	require.NotNil(t, req.EndsAt.Value)
	assert.Equal(t, 2026, req.EndsAt.Value.Year())
}
