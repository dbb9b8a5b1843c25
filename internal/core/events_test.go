package core

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_JSONRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		field   string
	}{
		{name: "text payload", payload: []byte(`{"ref":"refs/heads/main"}`), field: `"payload"`},
		{name: "binary payload", payload: []byte{0xff, 0x00, 0xfe}, field: `"payloadBase64"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := NewEvent("github", "push", tt.payload,
				WithProject("sevigo/brigadier"),
				WithGit(GitConfig{Ref: "refs/heads/main"}),
			)
			require.NoError(t, err)

			data, err := json.Marshal(ev)
			require.NoError(t, err)
			assert.Contains(t, string(data), tt.field)

			got, err := DecodeEvent(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, tt.payload, got.Payload())
			assert.Equal(t, ev.ID(), got.ID())
			assert.Equal(t, "sevigo/brigadier", got.ProjectID())
			assert.Equal(t, "refs/heads/main", got.Git().Ref)
		})
	}
}

func TestDecodeEvent_ConflictingPayloads(t *testing.T) {
	_, err := DecodeEvent(strings.NewReader(`{"source":"github","type":"push","payload":"x","payloadBase64":"/wD+"}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "payload", verr.Field)
}
