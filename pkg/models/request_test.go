package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImproveRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     ImproveRequest
		wantErr string
	}{
		{"valid", ImproveRequest{Idea: "Write a parser", Mode: ModeLegacy}, ""},
		{"exactly five chars", ImproveRequest{Idea: "abcde", Mode: ModeNLAC}, ""},
		{"four chars fails", ImproveRequest{Idea: "abcd", Mode: ModeLegacy}, "idea"},
		{"whitespace padding does not count", ImproveRequest{Idea: "  ab  ", Mode: ModeLegacy}, "idea"},
		{"missing mode", ImproveRequest{Idea: "Write a parser"}, "mode"},
		{"bad mode", ImproveRequest{Idea: "Write a parser", Mode: Mode("v3")}, "mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantErr, ve.Field)
		})
	}
}

func TestComputeIOHash(t *testing.T) {
	h1 := ComputeIOHash("fix the bug", "You are a debugger...")
	h2 := ComputeIOHash("fix the bug", "You are a debugger...")
	h3 := ComputeIOHash("fix the bug", "You are a reviewer...")

	assert.Equal(t, h1, h2, "identical pairs must hash identically")
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 16)
}

func TestStrategyDescriptorDowngrade(t *testing.T) {
	complexStrategy := StrategyDescriptor{Kind: StrategyComplex, K: 3, MaxIters: 3}

	fewShot, ok := complexStrategy.Downgrade()
	require.True(t, ok)
	assert.Equal(t, StrategyFewShot, fewShot.Kind)
	assert.Equal(t, 3, fewShot.K)

	zeroShot, ok := fewShot.Downgrade()
	require.True(t, ok)
	assert.Equal(t, StrategyZeroShot, zeroShot.Kind)

	same, ok := zeroShot.Downgrade()
	assert.False(t, ok)
	assert.Equal(t, StrategyZeroShot, same.Kind)
}
