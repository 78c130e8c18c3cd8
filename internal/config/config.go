// Package config holds the dongle's configuration table: the pieces of
// behavior spec.md's Design Notes call out as better lifted out of code
// (device identification rules, USB descriptor strings, host transport
// selection) than hardcoded.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/augmental/mouthpad-bridge/internal/kind"
)

// HostProtocol selects the CDC data-port transport (spec.md §4.9/§9).
type HostProtocol string

const (
	HostProtocolFramed   HostProtocol = "framed"
	HostProtocolProtobuf HostProtocol = "protobuf"
)

// USB holds the fixed USB descriptor strings and the bcdDevice value
// derived from the firmware VERSION file at build time.
type USB struct {
	Manufacturer string
	Product      string
	BCDDevice    uint16
}

// Config is the full configuration table.
type Config struct {
	Identity       kind.IdentityRules
	USB            USB
	HostProtocol   HostProtocol
	SecondaryCDC   bool // whether the log/command CDC port exists on this board
	BondDBPath     string
	MaxLinks       int
	ScanSettleWait time.Duration
	ArmConnectCeiling time.Duration
}

// Default returns the configuration baked into the firmware image when
// no config file is present — equivalent to the teacher's os.Getenv
// fallbacks in main.go, generalized into a full table.
func Default() *Config {
	return &Config{
		Identity: kind.IdentityRules{
			GlassesNamePrefix:  "Augmental_Glasses",
			GlassesLeftSuffix:  "_L",
			GlassesRightSuffix: "_R",
		},
		USB: USB{
			Manufacturer: "Augmental Tech",
			Product:      "MouthPad^USB",
			BCDDevice:    0x0100,
		},
		HostProtocol:      HostProtocolFramed,
		SecondaryCDC:      true,
		BondDBPath:        "bond.db",
		MaxLinks:          4,
		ScanSettleWait:    100 * time.Millisecond,
		ArmConnectCeiling: 30 * time.Second,
	}
}

// Load reads a config file (yaml/json/toml, detected by viper from the
// extension) layered over Default(), and allows environment overrides
// with the MOUTHPAD_ prefix — e.g. MOUTHPAD_HOSTPROTOCOL=protobuf.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("MOUTHPAD")
	v.AutomaticEnv()

	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	out := &Config{}
	if err := v.Unmarshal(out); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return out, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("identity.glassesnameprefix", cfg.Identity.GlassesNamePrefix)
	v.SetDefault("identity.glassesleftsuffix", cfg.Identity.GlassesLeftSuffix)
	v.SetDefault("identity.glassesrightsuffix", cfg.Identity.GlassesRightSuffix)
	v.SetDefault("usb.manufacturer", cfg.USB.Manufacturer)
	v.SetDefault("usb.product", cfg.USB.Product)
	v.SetDefault("usb.bcddevice", cfg.USB.BCDDevice)
	v.SetDefault("hostprotocol", string(cfg.HostProtocol))
	v.SetDefault("secondarycdc", cfg.SecondaryCDC)
	v.SetDefault("bonddbpath", cfg.BondDBPath)
	v.SetDefault("maxlinks", cfg.MaxLinks)
	v.SetDefault("scansettlewait", cfg.ScanSettleWait)
	v.SetDefault("armconnectceiling", cfg.ArmConnectCeiling)
}

// BCDFromVersion packs a MAJOR.MINOR.PATCH firmware version into the
// single bcdDevice value USB descriptors expect: 0xMMNP (major in the
// high byte, minor/patch packed as nibbles of the low byte). This
// resolves spec.md §9's open question about bcdDevice vs. VERSION:
// we match the firmware version exactly, truncating patch to a nibble,
// which is what the teacher's own descriptor fields assume by being
// fixed-width (see DESIGN.md Open Questions).
func BCDFromVersion(major, minor, patch uint8) uint16 {
	return uint16(major)<<8 | uint16(minor&0xF)<<4 | uint16(patch&0xF)
}
