package e2ee

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupMethod(t *testing.T) {
	tests := []struct {
		method           Method
		authenticated    bool
		requiresChecksum bool
		byteSafe         bool
		terminal         bool
	}{
		{MethodLegacyV1, false, true, false, false},
		{MethodLegacyV2, false, true, false, false},
		{MethodLegacyV3, true, false, false, false},
		{MethodLegacyV1Safe, false, true, true, true},
		{MethodCurrent, true, false, true, true},
		{MethodCurrentChaCha, true, false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.method.String(), func(t *testing.T) {
			p, err := LookupMethod(tt.method)
			require.NoError(t, err)
			assert.Equal(t, tt.method, p.ID)
			assert.Equal(t, tt.authenticated, p.Authenticated)
			assert.Equal(t, tt.requiresChecksum, p.RequiresChecksum)
			assert.Equal(t, tt.byteSafe, p.ByteSafeChunking)
			assert.Equal(t, tt.terminal, p.Terminal)
		})
	}
}

func TestLookupMethod_Unknown(t *testing.T) {
	for _, m := range []Method{0, 7, 255} {
		_, err := LookupMethod(m)
		assert.ErrorIs(t, err, ErrUnknownMethod)
		assert.True(t, IsUnknownMethod(err))
	}
}

func TestDefaultMethod(t *testing.T) {
	p, err := LookupMethod(DefaultMethod())
	require.NoError(t, err)
	assert.True(t, p.Authenticated)
	assert.True(t, p.ByteSafeChunking)
	assert.True(t, p.Terminal)
	assert.False(t, p.RequiresChecksum)
}

func TestMethods(t *testing.T) {
	ids := Methods()
	require.Len(t, ids, len(methods))
	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1], ids[i])
	}
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    Method
		wantErr bool
	}{
		{in: "current", want: MethodCurrent},
		{in: "CURRENT-CHACHA", want: MethodCurrentChaCha},
		{in: " legacy-v1-safe ", want: MethodLegacyV1Safe},
		{in: "1", want: MethodLegacyV1},
		{in: "5", want: MethodCurrent},
		{in: "99", wantErr: true},
		{in: "rot13", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMethod(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownMethod)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMethodString(t *testing.T) {
	assert.Equal(t, "current", MethodCurrent.String())
	assert.Equal(t, "legacy-v1", MethodLegacyV1.String())
	assert.Equal(t, "unknown(42)", Method(42).String())
}
