package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasAgentPrefix(t *testing.T) {
	cases := []struct {
		roomID RoomIDType
		want   bool
	}{
		{"ai-demo", true},
		{"ai-mock-one", true},
		{"ai-", true},
		{"ai", false},
		{"lobby", false},
		{"AI-demo", false},
		{"", false},
		{"xai-demo", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.roomID.HasAgentPrefix(), "roomID %q", tc.roomID)
	}
}
