package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, HostProtocolFramed, cfg.HostProtocol)
	require.True(t, cfg.SecondaryCDC)
	require.Equal(t, 4, cfg.MaxLinks)
	require.Equal(t, "Augmental_Glasses", cfg.Identity.GlassesNamePrefix)
}

func TestLoadWithNoFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestBCDFromVersion(t *testing.T) {
	require.Equal(t, uint16(0x0123), BCDFromVersion(1, 2, 3))
	require.Equal(t, uint16(0x0100), BCDFromVersion(1, 0, 0))
}
