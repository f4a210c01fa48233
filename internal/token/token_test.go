package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	t.Run("each kind carries its prefix", func(t *testing.T) {
		oit, err := NewInviteToken()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(oit, "oit_"))

		hot, err := NewHandoffToken()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hot, "hot_"))

		rrt, err := NewReconnectToken()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(rrt, "rrt_"))

		dvc, err := NewDeviceNonce()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(dvc, "dvc_"))
	})

	t.Run("generates unique tokens", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 200; i++ {
			tok, err := NewReconnectToken()
			require.NoError(t, err)
			assert.False(t, seen[tok], "duplicate token: %s", tok)
			seen[tok] = true
		}
	})

	t.Run("token length covers 128 bits of entropy", func(t *testing.T) {
		tok, err := NewInviteToken()
		require.NoError(t, err)
		assert.Len(t, tok, len("oit_")+32)
	})
}

func TestValidFormat(t *testing.T) {
	valid, err := NewInviteToken()
	require.NoError(t, err)

	tests := []struct {
		name string
		kind Kind
		tok  string
		want bool
	}{
		{"fresh token passes", KindInvite, valid, true},
		{"wrong prefix", KindHandoff, valid, false},
		{"empty string", KindInvite, "", false},
		{"bare prefix", KindInvite, "oit_", false},
		{"too short", KindInvite, "oit_abcdef", false},
		{"no separator", KindInvite, "oitabcdefabcdefabcdefabcdefabcdefab", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidFormat(tt.kind, tt.tok))
		})
	}
}

func TestHash(t *testing.T) {
	t.Run("is deterministic and hex encoded", func(t *testing.T) {
		h1 := Hash("rrt_test")
		h2 := Hash("rrt_test")
		assert.Equal(t, h1, h2)
		assert.Len(t, h1, 64)
	})

	t.Run("distinct inputs give distinct hashes", func(t *testing.T) {
		assert.NotEqual(t, Hash("rrt_a"), Hash("rrt_b"))
	})
}

func TestConstantTimeEqual(t *testing.T) {
	assert.True(t, ConstantTimeEqual("abc", "abc"))
	assert.False(t, ConstantTimeEqual("abc", "abd"))
	assert.False(t, ConstantTimeEqual("abc", "abcd"))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "********", Mask("short"))
	assert.Equal(t, "oit_abcd****", Mask("oit_abcdef0123456789"))
}
