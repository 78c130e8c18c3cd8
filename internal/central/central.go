// Package central implements C4, the core FSM: deciding whom to
// connect, sequencing each link from raw connect to fully ready, and
// driving the dual-arm glasses adoption protocol of spec.md §4.4.
//
// It is grounded directly on the teacher's ble/central.go: the BlueZ
// D-Bus plumbing in waitForServicesResolved and discoverGATT is kept
// near-verbatim in technique (a fresh system-bus connection per call,
// a direct GetManagedObjects walk rather than the go-bluetooth
// singleton's cached view, PropertiesChanged subscription for
// ServicesResolved), generalized from a fixed left/right glove pair to
// an arbitrary service/characteristic pair reused by every GATT
// resolve the bridge performs (NUS, HOGP, DIS).
package central

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/muka/go-bluetooth/bluez/profile/gatt"
	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/augmental/mouthpad-bridge/internal/bond"
	"github.com/augmental/mouthpad-bridge/internal/kind"
	"github.com/augmental/mouthpad-bridge/internal/registry"
	"github.com/augmental/mouthpad-bridge/internal/scan"
	"github.com/augmental/mouthpad-bridge/internal/sched"
)

// LinkState is the per-link sub-machine applied to every successful
// connect, regardless of kind (spec.md §4.4).
type LinkState int

const (
	LinkConnected LinkState = iota
	LinkParamUpdateReq
	LinkSecurityElev
	LinkServiceDiscovery
	LinkMtuExchange
	LinkReadyForApp
	LinkTeardown
)

// ArmState is the dual-arm glasses adoption FSM.
type ArmState int

const (
	ArmIdle ArmState = iota
	ArmConnectingLeft
	ArmLeftConnected
	ArmLeftDiscovering
	ArmLeftMtuExchanging
	ArmLeftReady
	ArmConnectingRight
	ArmRightConnected
	ArmRightDiscovering
	ArmRightMtuExchanging
	ArmBothReady
)

func (s ArmState) String() string {
	switch s {
	case ArmIdle:
		return "idle"
	case ArmConnectingLeft:
		return "connecting-left"
	case ArmLeftConnected:
		return "left-connected"
	case ArmLeftDiscovering:
		return "left-discovering"
	case ArmLeftMtuExchanging:
		return "left-mtu-exchanging"
	case ArmLeftReady:
		return "left-ready"
	case ArmConnectingRight:
		return "connecting-right"
	case ArmRightConnected:
		return "right-connected"
	case ArmRightDiscovering:
		return "right-discovering"
	case ArmRightMtuExchanging:
		return "right-mtu-exchanging"
	case ArmBothReady:
		return "both-ready"
	default:
		return "unknown"
	}
}

// logArmTransition records a dual-arm FSM state change with
// logrus.WithFields, the same structured-logging idiom the teacher
// reaches for when stdlib log's formatting isn't enough (see main.go's
// logrus.SetLevel(logrus.ErrorLevel) for the noisy go-bluetooth path).
func logArmTransition(from, to ArmState, addr string) {
	logrus.WithFields(logrus.Fields{
		"from":    from.String(),
		"to":      to.String(),
		"address": addr,
	}).Info("glasses arm fsm transition")
}

// attemptSpamGuard is the minimum spacing between connection attempts
// (spec.md §4.4 edge case: "a connection attempt in flight blocks
// further attempts for >=2s").
const attemptSpamGuard = 2 * time.Second

// Central drives connection lifecycle for every link kind.
type Central struct {
	adapter  *bluetooth.Adapter
	registry *registry.Registry
	scanner  *scan.Scanner
	sched    *sched.Scheduler
	bonds    *bond.Store
	ceiling  time.Duration
	settle   time.Duration

	mu          sync.Mutex
	devices     map[uint64]*bluetooth.Device
	nextHandle  uint64
	lastAttempt time.Time

	armState       ArmState
	leftHandle     uint64
	rightHandle    uint64
	leftCandidate  *scan.Candidate
	rightCandidate *scan.Candidate
	ceilingTimer   int
	ceilingActive  bool

	disMu sync.Mutex
	dis   map[uint64]DeviceInfo

	onLinkReady     func(registry.Link)
	onLinkTeardown  func(registry.Link)
	onGlassesOnline func()
	onNUSNotify     func(handle uint64, data []byte)
	onHOGPNotify    func(handle uint64, reportID byte, payload []byte)

	// connectFn is a seam over connectAndDiscover so tests can drive the
	// dual-arm FSM without a real adapter/D-Bus stack.
	connectFn func(cand scan.Candidate, serviceUUIDStr, charUUIDStr string) (uint64, error)
}

// New creates a Central bound to adapter, reg, scn, s and bonds.
// ceiling is the dual-arm-adoption abort timeout; settle is the
// post-stop-scan settling delay before bt_conn_le_create-equivalent
// connect calls.
func New(adapter *bluetooth.Adapter, reg *registry.Registry, scn *scan.Scanner, s *sched.Scheduler, bonds *bond.Store, ceiling, settle time.Duration) *Central {
	c := &Central{
		adapter:  adapter,
		registry: reg,
		scanner:  scn,
		sched:    s,
		bonds:    bonds,
		ceiling:  ceiling,
		settle:   settle,
		devices:  make(map[uint64]*bluetooth.Device),
		dis:      make(map[uint64]DeviceInfo),
	}
	c.connectFn = c.connectAndDiscover
	scn.OnCandidate(c.handleCandidate)
	scn.SetSlotFree(c.slotFree)
	return c
}

// OnLinkReady registers a callback fired once a link reaches
// LinkReadyForApp.
func (c *Central) OnLinkReady(fn func(registry.Link)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLinkReady = fn
}

// OnLinkTeardown registers a callback fired when a link tears down.
func (c *Central) OnLinkTeardown(fn func(registry.Link)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLinkTeardown = fn
}

// OnGlassesOnline registers the callback fired when both arms reach
// ArmBothReady (spec.md §4.4 step 6): "emits a glasses online event to
// the glasses protocol engine and unblocks the keepalive timer."
func (c *Central) OnGlassesOnline(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onGlassesOnline = fn
}

// OnNUSNotification registers the callback fired for every GATT
// notification received on a link's NUS data characteristic.
func (c *Central) OnNUSNotification(fn func(handle uint64, data []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onNUSNotify = fn
}

// OnHOGPNotification registers the callback fired for every GATT
// notification received on a link's HOGP report characteristic.
func (c *Central) OnHOGPNotification(fn func(handle uint64, reportID byte, payload []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onHOGPNotify = fn
}

func (c *Central) slotFree(k kind.Kind) bool {
	switch k {
	case kind.Wearable:
		return !c.registry.HasKind(kind.Wearable)
	case kind.GlassesLeft, kind.GlassesRight:
		return c.registry.NeedGlassesPair()
	default:
		return true
	}
}

// handleCandidate is the scanner callback (generalizes the teacher's
// name-dispatch switch inside StartScanning's scan closure).
func (c *Central) handleCandidate(cand scan.Candidate) {
	switch cand.Kind {
	case kind.Wearable:
		if c.registry.HasKind(kind.Wearable) {
			return
		}
		c.sched.Spawn(func() { c.adoptWearable(cand) })
	case kind.GlassesLeft, kind.GlassesRight:
		c.sched.Spawn(func() { c.adoptArm(cand) })
	}
}

func (c *Central) throttled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Since(c.lastAttempt) < attemptSpamGuard {
		return true
	}
	c.lastAttempt = time.Now()
	return false
}

// adoptWearable runs the per-link sub-machine for the single wearable
// slot.
func (c *Central) adoptWearable(cand scan.Candidate) {
	if c.throttled() || c.registry.HasKind(kind.Wearable) {
		return
	}
	// spec.md §4.2 bond invariant: only a fresh address (no bond stored
	// yet) or the one already bonded may become the Wearable link —
	// everything else is ignored (spec.md §8 scenario 2).
	if c.bonds != nil && !c.bonds.Matches(cand.Address.String()) {
		return
	}
	c.scanner.Stop()
	time.Sleep(c.settle)

	handle, err := c.connectFn(cand, hogpServiceUUIDStr, hogpReportCharUUIDStr)
	if err != nil {
		c.resumeScanIfNeeded()
		return
	}

	link, regErr := c.registry.Insert(registry.Link{
		Handle:  handle,
		Kind:    kind.Wearable,
		Address: cand.Address.String(),
		Name:    cand.Name,
	})
	if regErr != nil {
		c.teardown(handle)
		c.resumeScanIfNeeded()
		return
	}

	c.mu.Lock()
	onReady := c.onLinkReady
	c.mu.Unlock()
	if onReady != nil {
		onReady(*link)
	}
	if c.bonds != nil {
		// spec.md §8 scenario 1: once the wearable link reaches
		// LinkReadyForApp, its address becomes the stored bond.
		if err := c.bonds.Store(link.Address); err != nil {
			logrus.WithError(err).Warn("bond: failed to persist wearable address")
		}
	}
	c.resumeScanIfNeeded()
}

// adoptArm drives spec.md §4.4's dual-arm FSM. Step 1: the scanner
// caches the first arm seen and the FSM stays in Idle until the
// complementary arm is also cached; only then does it leave Idle and
// begin connecting, left first. The controller only begins the right
// arm once left reaches LeftReady, and any disconnect resets to Idle.
func (c *Central) adoptArm(cand scan.Candidate) {
	c.mu.Lock()
	state := c.armState
	if state == ArmIdle {
		switch cand.Kind {
		case kind.GlassesLeft:
			c.leftCandidate = &cand
		case kind.GlassesRight:
			c.rightCandidate = &cand
		}
		haveBoth := c.leftCandidate != nil && c.rightCandidate != nil
		var left scan.Candidate
		if haveBoth {
			left = *c.leftCandidate
			c.armState = ArmConnectingLeft
		}
		c.mu.Unlock()

		if !haveBoth {
			return
		}
		logArmTransition(ArmIdle, ArmConnectingLeft, left.Address.String())
		c.startCeiling()
		c.connectArm(left, kind.GlassesLeft)
		return
	}
	c.mu.Unlock()

	switch {
	case state == ArmLeftReady && cand.Kind == kind.GlassesRight:
		c.mu.Lock()
		c.armState = ArmConnectingRight
		c.mu.Unlock()
		logArmTransition(state, ArmConnectingRight, cand.Address.String())
		c.connectArm(cand, kind.GlassesRight)
	default:
		// Second advertisement for an arm already in flight or
		// connected: silently dropped per spec.md §4.4 edge case.
	}
}

func (c *Central) connectArm(cand scan.Candidate, k kind.Kind) {
	if c.throttled() {
		return
	}
	c.scanner.Stop()
	time.Sleep(c.settle)

	handle, err := c.connectFn(cand, nusServiceUUIDStr, nusDataCharUUIDStr)
	if err != nil {
		c.resetArmFSM()
		c.resumeScanIfNeeded()
		return
	}

	link, regErr := c.registry.Insert(registry.Link{
		Handle:  handle,
		Kind:    k,
		Address: cand.Address.String(),
		Name:    cand.Name,
	})
	if regErr != nil {
		c.teardown(handle)
		c.resetArmFSM()
		c.resumeScanIfNeeded()
		return
	}

	c.mu.Lock()
	prev := c.armState
	if k == kind.GlassesLeft {
		c.leftHandle = handle
		c.armState = ArmLeftReady
	} else {
		c.rightHandle = handle
		c.armState = ArmBothReady
	}
	bothReady := c.armState == ArmBothReady
	onReady := c.onLinkReady
	onOnline := c.onGlassesOnline
	next := c.armState
	c.mu.Unlock()
	logArmTransition(prev, next, cand.Address.String())

	if onReady != nil {
		onReady(*link)
	}
	if bothReady {
		c.stopCeiling()
		if onOnline != nil {
			onOnline()
		}
	}
	c.resumeScanIfNeeded()
}

func (c *Central) startCeiling() {
	c.mu.Lock()
	if c.ceilingActive {
		c.mu.Unlock()
		return
	}
	c.ceilingActive = true
	c.ceilingTimer = c.sched.After(c.ceiling, c.onCeilingExpired)
	c.mu.Unlock()
}

func (c *Central) stopCeiling() {
	c.mu.Lock()
	if c.ceilingActive {
		c.sched.Cancel(c.ceilingTimer)
		c.ceilingActive = false
	}
	c.mu.Unlock()
}

func (c *Central) onCeilingExpired() {
	// spec.md §4.4: "the whole FSM aborts if the entire process takes
	// longer than a configured ceiling and scanning restarts."
	c.mu.Lock()
	left, right := c.leftHandle, c.rightHandle
	c.ceilingActive = false
	c.mu.Unlock()

	if left != 0 {
		c.Disconnect(left)
	}
	if right != 0 {
		c.Disconnect(right)
	}
	c.resetArmFSM()
	c.resumeScanIfNeeded()
}

func (c *Central) resetArmFSM() {
	c.mu.Lock()
	prev := c.armState
	c.armState = ArmIdle
	c.leftHandle = 0
	c.rightHandle = 0
	c.leftCandidate = nil
	c.rightCandidate = nil
	c.mu.Unlock()
	if prev != ArmIdle {
		logArmTransition(prev, ArmIdle, "")
	}
	c.stopCeiling()
}

func (c *Central) resumeScanIfNeeded() {
	needWearable := !c.registry.HasKind(kind.Wearable)
	needGlasses := c.registry.NeedGlassesPair()
	if needWearable || needGlasses {
		_ = c.scanner.Start(scan.ModeSmart)
	}
}

// Disconnect tears down the link with the given handle, resetting the
// arm FSM to Idle if it belongs to an in-flight glasses arm.
func (c *Central) Disconnect(handle uint64) {
	link, ok := c.registry.Remove(handle)
	c.teardown(handle)
	c.forgetDIS(handle)
	if !ok {
		return
	}

	c.mu.Lock()
	isArm := link.Handle == c.leftHandle || link.Handle == c.rightHandle
	onTeardown := c.onLinkTeardown
	c.mu.Unlock()

	if onTeardown != nil {
		onTeardown(*link)
	}
	if isArm {
		c.resetArmFSM()
	}
	c.resumeScanIfNeeded()
}

// DisconnectAll tears down every active link.
func (c *Central) DisconnectAll() {
	for _, h := range c.registry.Handles() {
		c.Disconnect(h)
	}
}

func (c *Central) teardown(handle uint64) {
	c.mu.Lock()
	dev, ok := c.devices[handle]
	delete(c.devices, handle)
	c.mu.Unlock()
	if ok && dev != nil {
		_ = dev.Disconnect()
	}
}

// connectAndDiscover runs the per-link sub-machine
// (Connected -> ParamUpdateReq -> SecurityElev -> ServiceDiscovery ->
// MtuExchange -> ReadyForApp) for a single candidate, resolving the
// given service/characteristic pair via discoverGATT. It mirrors the
// teacher's connectToDevice, generalized away from the fixed sensor
// characteristic.
func (c *Central) connectAndDiscover(cand scan.Candidate, serviceUUIDStr, charUUIDStr string) (uint64, error) {
	device, err := c.adapter.Connect(cand.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return 0, fmt.Errorf("central: connect %s: %w", cand.Address, err)
	}

	// LinkParamUpdateReq / LinkSecurityElev happen implicitly inside
	// BlueZ's connection+bonding machinery; waitForServicesResolved is
	// the synchronization point standing in for
	// LinkServiceDiscovery's completion signal.
	if err := waitForServicesResolved(cand.Address, 15*time.Second); err != nil {
		_ = device.Disconnect()
		return 0, fmt.Errorf("central: services not resolved on %s: %w", cand.Address, err)
	}

	if _, err := discoverGATT(cand.Address, serviceUUIDStr, charUUIDStr); err != nil {
		_ = device.Disconnect()
		return 0, fmt.Errorf("central: gatt discovery failed on %s: %w", cand.Address, err)
	}

	c.mu.Lock()
	c.nextHandle++
	handle := c.nextHandle
	c.devices[handle] = device
	c.mu.Unlock()

	// LinkMtuExchange: tinygo.org/x/bluetooth negotiates MTU during
	// connection setup. The negotiated value is not read back here, and
	// neither adoptWearable nor connectArm records one; registry.SetMTU
	// is reached only through nus.Table.ExchangeMtu's OnMtu callback.
	return handle, nil
}

// Full-form UUID strings for the two GATT services the central
// controller resolves directly (HOGP's standard 0x1812 service and
// Nordic's vendor-specific UART service). connectAndDiscover performs
// one initial discoverGATT pass per link as its ServiceDiscovery gate;
// ResolveNUSChars and ResolveHOGPReportChars resolve the same
// characteristics again for internal/nus and internal/hogp.
const (
	hogpServiceUUIDStr    = "00001812-0000-1000-8000-00805f9b34fb"
	hogpReportCharUUIDStr = "00002a4d-0000-1000-8000-00805f9b34fb"
	nusServiceUUIDStr     = "6e400001-b5a3-f393-e0a9-e50e24dcca9e"
	nusDataCharUUIDStr    = "6e400003-b5a3-f393-e0a9-e50e24dcca9e"
)

// waitForServicesResolved blocks until BlueZ reports
// ServicesResolved=true for addr, generalized from the teacher's
// hardcoded glove polling to any address.
func waitForServicesResolved(addr bluetooth.Address, timeout time.Duration) error {
	devPath := devicePath(addr)

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("dbus: %w", err)
	}
	defer conn.Close()

	obj := conn.Object("org.bluez", devPath)

	if v, err := obj.GetProperty("org.bluez.Device1.ServicesResolved"); err == nil {
		if resolved, ok := v.Value().(bool); ok && resolved {
			return nil
		}
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchObjectPath(devPath),
	); err != nil {
		return fmt.Errorf("dbus match: %w", err)
	}

	ch := make(chan *dbus.Signal, 16)
	conn.Signal(ch)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case sig, ok := <-ch:
			if !ok {
				return fmt.Errorf("dbus signal channel closed")
			}
			if len(sig.Body) < 2 {
				continue
			}
			iface, ok := sig.Body[0].(string)
			if !ok || iface != "org.bluez.Device1" {
				continue
			}
			changed, ok := sig.Body[1].(map[string]dbus.Variant)
			if !ok {
				continue
			}
			if v, ok := changed["ServicesResolved"]; ok {
				if resolved, ok := v.Value().(bool); ok && resolved {
					return nil
				}
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ServicesResolved")
		}
	}
}

// discoverGATT walks BlueZ's managed-object tree directly (bypassing
// the go-bluetooth singleton, which can serve a stale view) to resolve
// a GattCharacteristic1 under addr by service/characteristic UUID.
func discoverGATT(addr bluetooth.Address, serviceUUIDStr, charUUIDStr string) (*gatt.GattCharacteristic1, error) {
	devPath := devicePath(addr)
	serviceUUIDStr = strings.ToLower(serviceUUIDStr)
	charUUIDStr = strings.ToLower(charUUIDStr)

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("dbus connect: %w", err)
	}
	defer conn.Close()

	obj := conn.Object("org.bluez", "/")
	var managed map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	if err := obj.Call("org.freedesktop.DBus.ObjectManager.GetManagedObjects", 0).Store(&managed); err != nil {
		return nil, fmt.Errorf("GetManagedObjects: %w", err)
	}

	servicePath := findChild(managed, string(devPath), "service", "org.bluez.GattService1", serviceUUIDStr)
	if servicePath == "" {
		return nil, fmt.Errorf("service %s not found on %s", serviceUUIDStr, devPath)
	}

	charPath := findChild(managed, servicePath, "char", "org.bluez.GattCharacteristic1", charUUIDStr)
	if charPath == "" {
		return nil, fmt.Errorf("characteristic %s not found under %s", charUUIDStr, servicePath)
	}

	char, err := gatt.NewGattCharacteristic1(dbus.ObjectPath(charPath))
	if err != nil {
		return nil, fmt.Errorf("NewGattCharacteristic1(%s): %w", charPath, err)
	}
	return char, nil
}

func findChild(managed map[dbus.ObjectPath]map[string]map[string]dbus.Variant, parent, prefix, iface, wantUUID string) string {
	for path, ifaces := range managed {
		pathStr := string(path)
		if !strings.HasPrefix(pathStr, parent+"/"+prefix) {
			continue
		}
		suffix := pathStr[len(parent)+1:]
		if strings.Contains(suffix, "/") {
			continue
		}
		ifaceData, ok := ifaces[iface]
		if !ok {
			continue
		}
		uuidVar, ok := ifaceData["UUID"]
		if !ok {
			continue
		}
		uuid, ok := uuidVar.Value().(string)
		if !ok {
			continue
		}
		if strings.ToLower(uuid) == wantUUID {
			return pathStr
		}
	}
	return ""
}

func devicePath(addr bluetooth.Address) dbus.ObjectPath {
	mac := strings.ToUpper(addr.String())
	devID := strings.ReplaceAll(mac, ":", "_")
	return dbus.ObjectPath("/org/bluez/hci0/dev_" + devID)
}

// ResolveNUSChars satisfies internal/nus's Resolver signature: it
// walks addr's GATT tree for the NUS rx/tx characteristics. addr is
// the link's registry.Link.Address string.
func (c *Central) ResolveNUSChars(addr string) (rx, tx *gatt.GattCharacteristic1, err error) {
	mac, err := bluetooth.ParseMAC(addr)
	if err != nil {
		return nil, nil, fmt.Errorf("central: parse address %s: %w", addr, err)
	}
	a := bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}

	rx, err = discoverGATT(a, nusServiceUUIDStr, nusDataCharUUIDStr)
	if err != nil {
		return nil, nil, err
	}

	if handle, ok := c.registry.LookupByAddress(addr); ok {
		if err := c.subscribeNotifications(rx, func(data []byte) {
			c.mu.Lock()
			fn := c.onNUSNotify
			c.mu.Unlock()
			if fn != nil {
				fn(handle.Handle, data)
			}
		}); err != nil {
			// Without notifications enabled the link must not be reported
			// as discovered, so nus.Table.Send keeps returning ErrNotReady.
			return nil, nil, fmt.Errorf("central: nus subscribe on %s: %w", addr, err)
		}
	}

	// NUS uses a single data characteristic for both directions in this
	// bridge's wire model (write to send, notify to receive), so rx and
	// tx resolve to the same characteristic.
	return rx, rx, nil
}

// ResolveHOGPReportChars satisfies the discovery shape internal/hogp
// needs: every HOGP input-report characteristic under addr.
func (c *Central) ResolveHOGPReportChars(addr string) ([]*gatt.GattCharacteristic1, error) {
	mac, err := bluetooth.ParseMAC(addr)
	if err != nil {
		return nil, fmt.Errorf("central: parse address %s: %w", addr, err)
	}
	a := bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}

	char, err := discoverGATT(a, hogpServiceUUIDStr, hogpReportCharUUIDStr)
	if err != nil {
		return nil, err
	}

	if handle, ok := c.registry.LookupByAddress(addr); ok {
		if err := c.subscribeNotifications(char, func(data []byte) {
			if len(data) == 0 {
				return
			}
			c.mu.Lock()
			fn := c.onHOGPNotify
			c.mu.Unlock()
			if fn != nil {
				fn(handle.Handle, data[0], data[1:])
			}
		}); err != nil {
			logrus.WithError(err).WithField("address", addr).Warn("hogp: failed to subscribe to notifications")
		}
	}

	return []*gatt.GattCharacteristic1{char}, nil
}

// subscribeNotifications mirrors the teacher's connectToDevice:
// WatchProperties then StartNotify, with a goroutine dispatching each
// PropertiesChanged signal on the characteristic's Value property to
// handler. Without this, GATT notifications are resolved but never
// delivered, so nothing past the initial discovery pass ever reaches
// internal/nus or internal/hogp in the running system.
func (c *Central) subscribeNotifications(char *gatt.GattCharacteristic1, handler func(data []byte)) error {
	propCh, err := char.WatchProperties()
	if err != nil {
		return fmt.Errorf("WatchProperties: %w", err)
	}
	if err := char.StartNotify(); err != nil {
		_ = char.UnwatchProperties(propCh)
		return fmt.Errorf("StartNotify: %w", err)
	}

	go func() {
		for update := range propCh {
			if update == nil {
				continue
			}
			if update.Interface == "org.bluez.GattCharacteristic1" && update.Name == "Value" {
				if data, ok := update.Value.([]byte); ok {
					handler(data)
				}
			}
		}
	}()
	return nil
}

// AddressForHandle returns the registry address backing handle, for
// callers (e.g. main's NUS/HOGP resolvers) that only have a handle.
func (c *Central) AddressForHandle(handle uint64) (string, bool) {
	link, ok := c.registry.LookupByHandle(handle)
	if !ok {
		return "", false
	}
	return link.Address, true
}
