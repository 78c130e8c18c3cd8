package main

import (
	"fmt"
	"log"
	"sync"

	"github.com/augmental/mouthpad-bridge/internal/bond"
	"github.com/augmental/mouthpad-bridge/internal/central"
	"github.com/augmental/mouthpad-bridge/internal/cdc"
	"github.com/augmental/mouthpad-bridge/internal/collab"
	"github.com/augmental/mouthpad-bridge/internal/config"
	"github.com/augmental/mouthpad-bridge/internal/glasses"
	"github.com/augmental/mouthpad-bridge/internal/hogp"
	"github.com/augmental/mouthpad-bridge/internal/kind"
	"github.com/augmental/mouthpad-bridge/internal/nus"
	"github.com/augmental/mouthpad-bridge/internal/proto"
	"github.com/augmental/mouthpad-bridge/internal/registry"
	"github.com/augmental/mouthpad-bridge/internal/telemetry"
)

// gadgetFallback satisfies usbhid.Endpoint by recording writes in
// collab's in-memory USB device stack, for environments (development,
// CI) without a real /dev/hidg0 gadget endpoint node.
type gadgetFallback struct {
	stack *collab.USBDeviceStack
	name  string
}

func (g *gadgetFallback) Write(reportID byte, payload []byte) error {
	buf := make([]byte, 0, len(payload)+1)
	buf = append(buf, reportID)
	buf = append(buf, payload...)
	return g.stack.WriteEndpoint(g.name, buf)
}

// armSender adapts the connection registry and the NUS table into the
// glasses engine's Sender: look up whichever link currently holds the
// requested arm's slot and write through its NUS connection.
func armSender(reg *registry.Registry, nusTable *nus.Table) glasses.Sender {
	return func(arm glasses.Arm, payload []byte) error {
		k := kind.GlassesLeft
		if arm == glasses.ArmRight {
			k = kind.GlassesRight
		}
		link, ok := reg.LookupByKind(k)
		if !ok {
			return nus.ErrNotConnected
		}
		return nusTable.Send(link.Handle, payload)
	}
}

func armForKind(k kind.Kind) (glasses.Arm, bool) {
	switch k {
	case kind.GlassesLeft:
		return glasses.ArmLeft, true
	case kind.GlassesRight:
		return glasses.ArmRight, true
	default:
		return 0, false
	}
}

// dispatchGlassesWire routes an inbound NUS notification from a
// glasses arm to the command queue's ACK tracking or the bitmap FSM's
// End/CRC acknowledgement handlers, per spec.md §4.10's opcode table.
func dispatchGlassesWire(engine *glasses.Engine, arm glasses.Arm, data []byte) {
	switch glasses.Opcode(data[0]) {
	case glasses.OpText:
		if len(data) >= 2 && data[1] == glasses.StatusAck {
			engine.Queue.HandleAck(arm)
		}
	case glasses.OpEvent:
		// Dashboard/tap events double as an implicit ACK for whichever
		// command is currently awaiting this arm (spec.md §4.10, Design
		// Notes' "ACK coupling through opcode collisions").
		engine.Queue.HandleAck(arm)
	case glasses.OpBmpEnd:
		if len(data) >= 2 {
			engine.Bitmap.OnArmEndAck(arm, data[1])
		}
	case glasses.OpBmpCrc:
		engine.Bitmap.OnArmCrcAck(arm, data[len(data)-1])
	}
}

// wireNUS connects the NUS table's callbacks to the registry (flag and
// MTU bookkeeping), the bitmap FSM's per-arm send-complete gate, and
// the glasses wire dispatcher, and routes wearable notifications to
// the host CDC/framing bridge.
func wireNUS(nusTable *nus.Table, reg *registry.Registry, telem *telemetry.Telemetry, engine *glasses.Engine, bridge *hostBridge) {
	nusTable.OnDiscovered(func(handle uint64) {
		_ = reg.SetFlag(handle, registry.FlagNUSReady, true)
	})
	nusTable.OnMtu(func(handle uint64, mtu uint16) {
		_ = reg.SetMTU(handle, mtu)
	})
	nusTable.OnSent(func(handle uint64, err error) {
		link, ok := reg.LookupByHandle(handle)
		if !ok {
			return
		}
		// spec.md §4.10: "Right packet K is emitted only after Left
		// packet K's send-complete callback" — OnSent is that callback.
		if arm, isArm := armForKind(link.Kind); isArm && engine.Bitmap.InProgress() {
			engine.Bitmap.OnArmChunkSent(arm, err == nil)
		}
	})
	nusTable.OnData(func(handle uint64, data []byte) {
		link, ok := reg.LookupByHandle(handle)
		if !ok || len(data) == 0 {
			return
		}
		telem.MarkActivity(handle)
		switch link.Kind {
		case kind.Wearable:
			bridge.notifyFromWearable(data)
		case kind.GlassesLeft, kind.GlassesRight:
			engine.MarkActivity()
			if arm, isArm := armForKind(link.Kind); isArm {
				dispatchGlassesWire(engine, arm, data)
			}
		}
	})
}

// wireCentral connects the central controller's link lifecycle
// callbacks to the NUS discovery queue, the HOGP client, and the
// glasses engine's keepalive timer.
func wireCentral(ctrl *central.Central, reg *registry.Registry, nusTable *nus.Table, hogpClient *hogp.Client, hciDriver *collab.HCIDriver, engine *glasses.Engine, telem *telemetry.Telemetry) {
	// Feeds every GATT notification resolved by ctrl's NUS/HOGP
	// discovery into the data tables that actually act on it; without
	// this, discovery succeeds but nothing downstream ever sees a byte.
	ctrl.OnNUSNotification(nusTable.Deliver)
	ctrl.OnHOGPNotification(hogpClient.HandleReport)

	ctrl.OnLinkReady(func(link registry.Link) {
		hciDriver.SetRSSI(link.Handle, link.RSSI)
		nusTable.Add(link.Handle)
		nusTable.Discover(link.Handle)
		if link.Kind == kind.Wearable {
			chars, err := ctrl.ResolveHOGPReportChars(link.Address)
			if err != nil {
				log.Printf("hogp: discovery failed for %s: %v", link.Address, err)
				return
			}
			hogpClient.MarkDiscovered(link.Handle, chars)
			ctrl.ResolveDIS(link.Handle)
		}
	})
	ctrl.OnLinkTeardown(func(link registry.Link) {
		hciDriver.Forget(link.Handle)
		nusTable.Remove(link.Handle)
		switch link.Kind {
		case kind.Wearable:
			hogpClient.Release(link.Handle)
		case kind.GlassesLeft, kind.GlassesRight:
			engine.Stop()
		}
	})
	ctrl.OnGlassesOnline(engine.Start)
	telem.Start()
}

// hostBridge owns the CDC data-port transport and the protobuf relay
// dispatcher, picking between spec.md §4.9's raw-framed and protobuf
// variants per cfg.HostProtocol. It is the single object both wireNUS
// (wearable notifications) and the data-port read loop (host requests)
// talk to, so the two directions share one outbound frame writer.
type hostBridge struct {
	cfg        *config.Config
	nus        *nus.Table
	relay      *cdc.Relay
	wearableOf func() (uint64, bool)

	mu   sync.Mutex
	port *cdc.DataPort
}

func newHostBridge(cfg *config.Config, nusTable *nus.Table, bonds *bond.Store, bootloader *collab.Bootloader, reg *registry.Registry, unpair func(addr string)) *hostBridge {
	wearableOf := func() (uint64, bool) {
		link, ok := reg.LookupByKind(kind.Wearable)
		return link.Handle, ok
	}
	status := func() cdc.ConnectionStatus {
		_, wearableOK := reg.LookupByKind(kind.Wearable)
		_, leftOK := reg.LookupByKind(kind.GlassesLeft)
		_, rightOK := reg.LookupByKind(kind.GlassesRight)
		return cdc.ConnectionStatus{WearableConnected: wearableOK, LeftConnected: leftOK, RightConnected: rightOK}
	}
	deviceInfo := func() cdc.DeviceInfo {
		link, _ := reg.LookupByKind(kind.Wearable)
		return cdc.DeviceInfo{Name: link.Name, Address: link.Address, FirmwareID: cfg.USB.Product}
	}

	b := &hostBridge{cfg: cfg, nus: nusTable, wearableOf: wearableOf}
	b.relay = cdc.NewRelay(nusTable, bonds, bootloader, status, deviceInfo, wearableOf, unpair)
	return b
}

// attachDataPort wraps port in framed mode — both the framed and
// protobuf host-protocol variants ride the same AA55-length-CRC outer
// frame (spec.md §6); only the inner payload encoding differs.
func (b *hostBridge) attachDataPort(port cdc.Port, cfg *config.Config) {
	dp := cdc.NewDataPort(port, true)
	dp.OnFrame(b.handleInboundFrame)
	dp.OnFrameError(func(err error) {
		log.Printf("cdc: frame error: %v", err)
	})

	b.mu.Lock()
	b.port = dp
	b.mu.Unlock()
}

func (b *hostBridge) runDataPort() {
	b.mu.Lock()
	dp := b.port
	b.mu.Unlock()
	if dp == nil {
		return
	}
	if err := dp.ReadLoop(nil); err != nil {
		log.Printf("cdc: data port closed: %v", err)
	}
}

func (b *hostBridge) handleInboundFrame(payload []byte) {
	if b.cfg.HostProtocol == config.HostProtocolProtobuf {
		resp, err := b.relay.Handle(payload)
		if err != nil {
			log.Printf("cdc: relay: %v", err)
			return
		}
		if err := b.writeFrame(proto.EncodeRelayToApp(resp)); err != nil {
			log.Printf("cdc: write response: %v", err)
		}
		return
	}

	handle, ok := b.wearableOf()
	if !ok {
		return
	}
	if err := b.nus.Send(handle, payload); err != nil {
		log.Printf("cdc: forward to wearable: %v", err)
	}
}

// notifyFromWearable relays an inbound wearable NUS notification to
// the host, wrapped as PassThroughToApp in protobuf mode or forwarded
// verbatim in framed mode (spec.md §4.9's reverse direction).
func (b *hostBridge) notifyFromWearable(data []byte) {
	if b.cfg.HostProtocol == config.HostProtocolProtobuf {
		_ = b.writeFrame(proto.EncodeRelayToApp(cdc.WrapNotification(data)))
		return
	}
	_ = b.writeFrame(data)
}

func (b *hostBridge) writeFrame(payload []byte) error {
	b.mu.Lock()
	dp := b.port
	b.mu.Unlock()
	if dp == nil {
		return nil
	}
	return dp.WriteFrame(payload)
}

func openDataPort(name string) (cdc.Port, error) {
	return cdc.OpenSerialPort(name)
}

func openCommandPort(name string) (cdc.Port, error) {
	return cdc.OpenSerialPort(name)
}

// runCommandPort serves the line-delimited log/command port (spec.md
// §6): dfu, disconnect, reset, restart, serial, version, device.
func runCommandPort(port cdc.Port, cfg *config.Config, bonds *bond.Store, ctrl *central.Central, bootloader *collab.Bootloader, reg *registry.Registry) {
	cp := cdc.NewCommandPort(port)
	err := cp.ReadLoop(func(cmd cdc.Command, _ string) {
		switch cmd {
		case cdc.CommandDFU:
			_ = bootloader.RequestEntry()
			_ = cp.WriteLine("ok")
		case cdc.CommandDisconnect:
			ctrl.DisconnectAll()
			_ = cp.WriteLine("ok")
		case cdc.CommandReset:
			_ = bonds.Clear(func(addr string) {
				if link, ok := reg.LookupByAddress(addr); ok {
					ctrl.Disconnect(link.Handle)
				}
			})
			_ = cp.WriteLine("ok")
		case cdc.CommandRestart:
			_ = cp.WriteLine("ok")
		case cdc.CommandSerial:
			_ = cp.WriteLine(cfg.USB.Product)
		case cdc.CommandVersion:
			_ = cp.WriteLine(fmt.Sprintf("0x%04x", cfg.USB.BCDDevice))
		case cdc.CommandDevice:
			link, ok := reg.LookupByKind(kind.Wearable)
			if !ok {
				_ = cp.WriteLine("no wearable connected")
				return
			}
			_ = cp.WriteLine(fmt.Sprintf("%s %s", link.Name, link.Address))
			if info, ok := ctrl.LookupDIS(link.Handle); ok {
				_ = cp.WriteLine(fmt.Sprintf("manufacturer=%q model=%q serial=%q hw=%q fw=%q sw=%q pnp=%q",
					info.Manufacturer, info.Model, info.Serial, info.HWRev, info.FWRev, info.SWRev, info.PnPID))
			} else {
				_ = cp.WriteLine("dis: not yet resolved")
			}
		}
	})
	if err != nil {
		log.Printf("cdc: command port closed: %v", err)
	}
}
