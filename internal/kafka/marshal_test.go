package kafka

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	SessionID string `json:"session_id"`
	Amount    int64  `json:"amount"`
}

func TestUnwrapPayload(t *testing.T) {
	raw := json.RawMessage(MustMarshal(samplePayload{SessionID: "cs_1", Amount: 10000}))

	got, err := UnwrapPayload[samplePayload](raw)
	require.NoError(t, err)
	assert.Equal(t, samplePayload{SessionID: "cs_1", Amount: 10000}, got)

	_, err = UnwrapPayload[samplePayload](json.RawMessage(`{"amount":"x"}`))
	assert.Error(t, err)
}

func TestMustMarshalPanicsOnUnsupported(t *testing.T) {
	assert.Panics(t, func() { MustMarshal(make(chan int)) })
}
