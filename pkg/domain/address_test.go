package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "trustee/pkg/domain-errors"
)

func TestParseAddress(t *testing.T) {
	const hex40 = "00112233445566778899aabbccddeeff00112233"

	t.Run("accepts bare hex", func(t *testing.T) {
		a, err := ParseAddress(hex40)
		require.NoError(t, err)
		assert.Equal(t, "0x"+hex40, a.String())
	})

	t.Run("accepts 0x prefix and whitespace", func(t *testing.T) {
		a, err := ParseAddress("  0x" + hex40 + " ")
		require.NoError(t, err)
		assert.Equal(t, "0x"+hex40, a.String())
	})

	t.Run("uppercase hex normalizes to lowercase", func(t *testing.T) {
		a, err := ParseAddress("0X00112233445566778899AABBCCDDEEFF00112233")
		require.NoError(t, err)
		assert.Equal(t, "0x"+hex40, a.String())
	})

	invalid := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"too short", "0x1234"},
		{"too long", hex40 + "00"},
		{"not hex", "0xzz112233445566778899aabbccddeeff00112233"},
	}
	for _, tt := range invalid {
		t.Run(tt.name+" is rejected", func(t *testing.T) {
			_, err := ParseAddress(tt.input)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func TestAddressIsZero(t *testing.T) {
	assert.True(t, ZeroAddress.IsZero())

	a, err := ParseAddress("00112233445566778899aabbccddeeff00112233")
	require.NoError(t, err)
	assert.False(t, a.IsZero())
}

func TestAddressJSONRoundTrip(t *testing.T) {
	a, err := ParseAddress("00112233445566778899aabbccddeeff00112233")
	require.NoError(t, err)

	raw, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `"0x00112233445566778899aabbccddeeff00112233"`, string(raw))

	var back Address
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, a, back)

	var bad Address
	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &bad))
}

func TestParseAmount(t *testing.T) {
	t.Run("parses decimal strings", func(t *testing.T) {
		v, err := ParseAmount("1000000000000000000")
		require.NoError(t, err)
		assert.Equal(t, "1000000000000000000", v.Dec())
	})

	t.Run("handles 256-bit magnitudes", func(t *testing.T) {
		// 2^256 - 1
		const max = "115792089237316195423570985008687907853269984665640564039457584007913129639935"
		v, err := ParseAmount(max)
		require.NoError(t, err)
		assert.Equal(t, max, v.Dec())

		_, err = ParseAmount("115792089237316195423570985008687907853269984665640564039457584007913129639936")
		assert.Error(t, err)
	})

	invalid := []string{"", "  ", "-5", "1.5", "abc", "0x10"}
	for _, input := range invalid {
		t.Run("rejects "+input, func(t *testing.T) {
			_, err := ParseAmount(input)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}
