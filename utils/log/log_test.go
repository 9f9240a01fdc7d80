package log

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigureLoggerDisabled(t *testing.T) {
	l := ConfigureLogger(Config{Disabled: true})
	require.NotNil(t, l)
}

func TestConfigureLoggerDefaults(t *testing.T) {
	l := ConfigureLogger(Config{})
	require.NotNil(t, l)
}

func TestConfigureLoggerInvalidLevelFallsBackToInfo(t *testing.T) {
	l := ConfigureLogger(Config{Level: "not-a-level"})
	require.NotNil(t, l)
}
