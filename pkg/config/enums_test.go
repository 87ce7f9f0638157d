package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderTypeIsValid(t *testing.T) {
	tests := []struct {
		name     string
		provider ProviderType
		valid    bool
	}{
		{"gemini", ProviderGemini, true},
		{"anthropic", ProviderAnthropic, true},
		{"stub", ProviderStub, true},
		{"invalid", ProviderType("watson"), false},
		{"empty", ProviderType(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.provider.IsValid())
		})
	}
}

func TestProviderDefaultTemperature(t *testing.T) {
	assert.Equal(t, 0.0, ProviderAnthropic.DefaultTemperature())
	assert.Equal(t, 0.1, ProviderGemini.DefaultTemperature())
	assert.Equal(t, 0.1, ProviderStub.DefaultTemperature())
}

func TestGateSeverityIsValid(t *testing.T) {
	assert.True(t, SeverityFail.IsValid())
	assert.True(t, SeverityWarn.IsValid())
	assert.True(t, SeveritySkip.IsValid())
	assert.False(t, GateSeverity("ERROR").IsValid())
	assert.False(t, GateSeverity("").IsValid())
}
