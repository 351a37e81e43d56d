package flowstate_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/timetrackhq/bexio-auth/flowstate"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	records := []flowstate.Data{
		{Nonce: flowstate.NewNonce()},
		{Nonce: flowstate.NewNonce(), Verifier: "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"},
		{Nonce: flowstate.NewNonce(), Verifier: "v", ReturnURL: "https://app.example.com/dashboard?tab=1", SessionID: "sess-1", Platform: "mobile"},
		{Nonce: "nonce with spaces & symbols ~._-", ReturnURL: "/relative"},
	}

	for _, record := range records {
		packed, err := flowstate.Pack(record)
		require.NoError(t, err)

		unpacked, err := flowstate.Unpack(packed)
		require.NoError(t, err)
		require.Equal(t, record, unpacked)
	}
}

func TestPackRequiresNonce(t *testing.T) {
	_, err := flowstate.Pack(flowstate.Data{Verifier: "v"})
	require.Error(t, err)
}

func TestPackedValueIsURLSafe(t *testing.T) {
	packed, err := flowstate.Pack(flowstate.Data{
		Nonce:     flowstate.NewNonce(),
		ReturnURL: "https://app.example.com/a?b=c&d=e",
	})
	require.NoError(t, err)
	require.NotContains(t, packed, "+")
	require.NotContains(t, packed, "/")
	require.NotContains(t, packed, "=")
}

func TestUnpackForeignState(t *testing.T) {
	t.Run("plain random state", func(t *testing.T) {
		unpacked, err := flowstate.Unpack("some-legacy-state-value")
		require.ErrorIs(t, err, flowstate.ErrOpaqueState)
		require.Equal(t, "some-legacy-state-value", unpacked.Nonce)
		require.Empty(t, unpacked.Verifier)
		require.Empty(t, unpacked.SessionID)
	})

	t.Run("base64 that is not JSON", func(t *testing.T) {
		raw := base64.RawURLEncoding.EncodeToString([]byte("not json"))
		unpacked, err := flowstate.Unpack(raw)
		require.ErrorIs(t, err, flowstate.ErrOpaqueState)
		require.Equal(t, raw, unpacked.Nonce)
	})

	t.Run("JSON without a nonce", func(t *testing.T) {
		raw := base64.RawURLEncoding.EncodeToString([]byte(`{"v":"x"}`))
		unpacked, err := flowstate.Unpack(raw)
		require.ErrorIs(t, err, flowstate.ErrOpaqueState)
		require.Equal(t, raw, unpacked.Nonce)
	})

	t.Run("empty state is an error", func(t *testing.T) {
		_, err := flowstate.Unpack("")
		require.Error(t, err)
		require.NotErrorIs(t, err, flowstate.ErrOpaqueState)
	})
}

func TestNewNonceUnique(t *testing.T) {
	seen := map[string]bool{}
	for range 100 {
		nonce := flowstate.NewNonce()
		require.False(t, seen[nonce])
		seen[nonce] = true
	}
}
