package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnownTopics(t *testing.T) {
	for _, topic := range Topics() {
		assert.True(t, Known(topic), topic)
	}
	assert.False(t, Known("doc.unknown"))
	assert.False(t, Known(""))
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	// a newer producer may add fields; older consumers keep working
	raw := []byte(`{"doc_id":"doc-1","file_name":"a.pdf","metadata":{"sender":"x@y.z"},"priority":"high","trace_id":"abc123"}`)

	var ev DocReceived
	require.NoError(t, json.Unmarshal(raw, &ev))
	assert.Equal(t, "doc-1", ev.DocID)
	assert.Equal(t, "a.pdf", ev.FileName)
	assert.Equal(t, "x@y.z", ev.Metadata[MetaSender])
	assert.Equal(t, PriorityHigh, ev.Priority)
}

func TestMarshalDocText(t *testing.T) {
	data, err := Marshal(DocText{
		DocID:    "doc-1",
		Text:     "hello",
		Entities: json.RawMessage(`{"dates":[]}`),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"doc_id":"doc-1","text":"hello","entities":{"dates":[]}}`, string(data))
}
