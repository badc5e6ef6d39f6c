package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	frame, err := encode("dexarb:executions", []byte(`{"id":"e1"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"channel":"dexarb:executions","payload":{"id":"e1"}}`, string(frame))

	// Non-JSON payloads are sent as a JSON string.
	frame, err = encode("dexarb:status", []byte("halted"))
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	assert.Equal(t, `"halted"`, string(env.Payload))
}

func TestClientSubscriptions(t *testing.T) {
	c := &client{subs: map[string]bool{"dexarb:status": true}}
	assert.True(t, c.isSubscribed("dexarb:status"))
	assert.False(t, c.isSubscribed("dexarb:executions"))

	c.handleSubscription(subscribeMsg{Action: "subscribe", Channels: []string{"dexarb:executions"}})
	c.handleSubscription(subscribeMsg{Action: "unsubscribe", Channels: []string{"dexarb:status"}})
	assert.True(t, c.isSubscribed("dexarb:executions"))
	assert.False(t, c.isSubscribed("dexarb:status"))

	c.handleSubscription(subscribeMsg{Action: "noop", Channels: []string{"dexarb:status"}})
	assert.False(t, c.isSubscribed("dexarb:status"))
}
