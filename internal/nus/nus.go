// Package nus implements C5, the multi-connection Nordic UART Service
// client: a small table of per-handle clients with a serialized
// discovery FIFO, generalized from the teacher's single fixed
// characteristic (ble/central.go's sensorChar) to N independent NUS
// peers (the wearable plus both glasses arms).
package nus

import (
	"errors"
	"sync"

	"github.com/muka/go-bluetooth/bluez/profile/gatt"
)

var (
	// ErrNotReady is returned by Send until discovery completed and the
	// CCCD was written successfully.
	ErrNotReady = errors.New("nus: not ready")
	// ErrNotConnected is returned for an unknown handle.
	ErrNotConnected = errors.New("nus: not connected")
	// ErrCongested surfaces transient controller back-pressure (the
	// BlueZ/HCI equivalent of -EBUSY) so callers can back off.
	ErrCongested = errors.New("nus: congested")
)

type client struct {
	handle     uint64
	rxChar     *gatt.GattCharacteristic1
	txChar     *gatt.GattCharacteristic1
	discovered bool
	mtu        uint16
}

// discoveryRequest is one FIFO entry; the underlying discovery manager
// is single-threaded so only one runs at a time.
type discoveryRequest struct {
	handle  uint64
	resolve func(*gatt.GattCharacteristic1, *gatt.GattCharacteristic1, error)
}

// Resolver resolves a connection handle's rx/tx NUS characteristics;
// the production wiring points this at internal/central's discoverGATT
// equivalent, injected so this package stays free of D-Bus/BlueZ
// plumbing duplication.
type Resolver func(handle uint64) (rx, tx *gatt.GattCharacteristic1, err error)

// Table holds the per-handle NUS clients and the discovery FIFO.
type Table struct {
	resolve Resolver

	mu      sync.Mutex
	clients map[uint64]*client
	queue   []discoveryRequest
	busy    bool

	onData       func(handle uint64, data []byte)
	onDiscovered func(handle uint64)
	onMtu        func(handle uint64, mtu uint16)
	onSent       func(handle uint64, err error)
}

// New creates an empty Table using resolver to locate GATT
// characteristics for a handle on demand.
func New(resolver Resolver) *Table {
	return &Table{resolve: resolver, clients: make(map[uint64]*client)}
}

// OnData registers the callback for inbound NUS notifications.
func (t *Table) OnData(fn func(handle uint64, data []byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onData = fn
}

// OnDiscovered registers the callback fired when discovery completes.
func (t *Table) OnDiscovered(fn func(handle uint64)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDiscovered = fn
}

// OnMtu registers the callback fired once MTU exchange completes.
func (t *Table) OnMtu(fn func(handle uint64, mtu uint16)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMtu = fn
}

// OnSent registers the callback fired after Send completes (or fails).
func (t *Table) OnSent(fn func(handle uint64, err error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSent = fn
}

// Add registers handle as a pending NUS client, not yet discovered.
func (t *Table) Add(handle uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.clients[handle]; ok {
		return
	}
	t.clients[handle] = &client{handle: handle}
}

// Remove drops handle's client entirely (on disconnect).
func (t *Table) Remove(handle uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.clients, handle)
	filtered := t.queue[:0]
	for _, req := range t.queue {
		if req.handle != handle {
			filtered = append(filtered, req)
		}
	}
	t.queue = filtered
}

// Discover enqueues handle for GATT discovery. The discovery path is
// serialized: only one runs at a time, the next queued request starts
// on completion (success, service-not-found, or error).
func (t *Table) Discover(handle uint64) {
	t.mu.Lock()
	t.queue = append(t.queue, discoveryRequest{handle: handle})
	runNow := !t.busy
	if runNow {
		t.busy = true
	}
	t.mu.Unlock()

	if runNow {
		t.runNextDiscovery()
	}
}

func (t *Table) runNextDiscovery() {
	t.mu.Lock()
	if len(t.queue) == 0 {
		t.busy = false
		t.mu.Unlock()
		return
	}
	req := t.queue[0]
	t.queue = t.queue[1:]
	t.mu.Unlock()

	rx, tx, err := t.resolve(req.handle)

	t.mu.Lock()
	c, ok := t.clients[req.handle]
	if ok && err == nil {
		c.rxChar = rx
		c.txChar = tx
		c.discovered = true
	}
	onDiscovered := t.onDiscovered
	t.mu.Unlock()

	if err == nil && ok && onDiscovered != nil {
		onDiscovered(req.handle)
	}

	t.runNextDiscovery()
}

// ExchangeMtu records the negotiated MTU for handle and fires OnMtu.
func (t *Table) ExchangeMtu(handle uint64, mtu uint16) {
	t.mu.Lock()
	c, ok := t.clients[handle]
	if ok {
		c.mtu = mtu
	}
	onMtu := t.onMtu
	t.mu.Unlock()
	if ok && onMtu != nil {
		onMtu(handle, mtu)
	}
}

// Send writes data to handle's NUS rx characteristic.
func (t *Table) Send(handle uint64, data []byte) error {
	t.mu.Lock()
	c, ok := t.clients[handle]
	if !ok {
		t.mu.Unlock()
		return ErrNotConnected
	}
	if !c.discovered || c.rxChar == nil {
		t.mu.Unlock()
		return ErrNotReady
	}
	rxChar := c.rxChar
	onSent := t.onSent
	t.mu.Unlock()

	err := rxChar.WriteValue(data, map[string]interface{}{})
	if err != nil {
		err = ErrCongested
	}
	if onSent != nil {
		onSent(handle, err)
	}
	return err
}

// deliver routes an inbound notification to OnData. The exported
// Deliver wraps it for the GATT notification dispatcher in
// internal/central.
func (t *Table) deliver(handle uint64, data []byte) {
	t.mu.Lock()
	onData := t.onData
	t.mu.Unlock()
	if onData != nil {
		onData(handle, data)
	}
}

// Deliver routes an inbound NUS TX-characteristic notification for
// handle to the registered OnData callback.
func (t *Table) Deliver(handle uint64, data []byte) {
	t.deliver(handle, data)
}
