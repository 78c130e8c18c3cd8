package central

import (
	"fmt"

	"tinygo.org/x/bluetooth"
)

// Device Information Service and its characteristics (spec.md §6: "BLE
// services consumed ... Device Information Service (DIS: manufacturer,
// model, serial, HW rev, FW rev, SW rev, PnP ID)"). Folded into
// internal/central rather than a standalone package: DIS discovery
// rides the same discoverGATT call every other per-link resolve does,
// and the only consumer is the CDC "device" command (spec.md §6).
const (
	disServiceUUIDStr      = "0000180a-0000-1000-8000-00805f9b34fb"
	disManufacturerUUIDStr = "00002a29-0000-1000-8000-00805f9b34fb"
	disModelUUIDStr        = "00002a24-0000-1000-8000-00805f9b34fb"
	disSerialUUIDStr       = "00002a25-0000-1000-8000-00805f9b34fb"
	disHWRevUUIDStr        = "00002a27-0000-1000-8000-00805f9b34fb"
	disFWRevUUIDStr        = "00002a26-0000-1000-8000-00805f9b34fb"
	disSWRevUUIDStr        = "00002a28-0000-1000-8000-00805f9b34fb"
	disPnPIDUUIDStr        = "00002a50-0000-1000-8000-00805f9b34fb"
)

// DeviceInfo is the DIS field surface the "device" CDC command prints
// (spec.md §6).
type DeviceInfo struct {
	Manufacturer string
	Model        string
	Serial       string
	HWRev        string
	FWRev        string
	SWRev        string
	PnPID        string
}

func readDISString(a bluetooth.Address, charUUIDStr string) string {
	char, err := discoverGATT(a, disServiceUUIDStr, charUUIDStr)
	if err != nil {
		return ""
	}
	b, err := char.ReadValue(map[string]interface{}{})
	if err != nil {
		return ""
	}
	return string(b)
}

// resolveDIS reads every DIS characteristic present under addr. Missing
// characteristics (DIS is optional per-field on real hardware) are left
// as empty strings rather than failing the whole read.
func resolveDIS(addr string) (DeviceInfo, error) {
	mac, err := bluetooth.ParseMAC(addr)
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("central: parse address %s: %w", addr, err)
	}
	a := bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}

	info := DeviceInfo{
		Manufacturer: readDISString(a, disManufacturerUUIDStr),
		Model:        readDISString(a, disModelUUIDStr),
		Serial:       readDISString(a, disSerialUUIDStr),
		HWRev:        readDISString(a, disHWRevUUIDStr),
		FWRev:        readDISString(a, disFWRevUUIDStr),
		SWRev:        readDISString(a, disSWRevUUIDStr),
	}
	if pnp, err := discoverGATT(a, disServiceUUIDStr, disPnPIDUUIDStr); err == nil {
		if b, err := pnp.ReadValue(map[string]interface{}{}); err == nil && len(b) == 7 {
			info.PnPID = fmt.Sprintf("vendor=0x%02x%02x product=0x%02x%02x version=0x%02x%02x", b[2], b[1], b[4], b[3], b[6], b[5])
		}
	}
	return info, nil
}

// ResolveDIS reads handle's DIS characteristics and caches the result,
// called once a wearable link reaches LinkReadyForApp (see
// cmd/dongle's wireCentral). Read failures are non-fatal: spec.md's
// DIS surface is informational only, never gates ReadyForApp.
func (c *Central) ResolveDIS(handle uint64) {
	addr, ok := c.AddressForHandle(handle)
	if !ok {
		return
	}
	info, err := resolveDIS(addr)
	if err != nil {
		return
	}
	c.disMu.Lock()
	c.dis[handle] = info
	c.disMu.Unlock()
}

// LookupDIS returns the DIS record cached for handle, if any.
func (c *Central) LookupDIS(handle uint64) (DeviceInfo, bool) {
	c.disMu.Lock()
	defer c.disMu.Unlock()
	info, ok := c.dis[handle]
	return info, ok
}

func (c *Central) forgetDIS(handle uint64) {
	c.disMu.Lock()
	delete(c.dis, handle)
	c.disMu.Unlock()
}
