package cdc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/augmental/mouthpad-bridge/internal/proto"
)

type fakeNUSWriter struct {
	sent   map[uint64][]byte
	sendErr error
}

func (f *fakeNUSWriter) Send(handle uint64, data []byte) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	if f.sent == nil {
		f.sent = make(map[uint64][]byte)
	}
	f.sent[handle] = data
	return nil
}

type fakeBonds struct {
	cleared   bool
	unpaired  string
	clearErr  error
}

func (f *fakeBonds) Clear(unpair func(addr string)) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cleared = true
	unpair("aa:bb:cc:dd:ee:ff")
	return nil
}

type fakeBootloader struct {
	requested bool
}

func (f *fakeBootloader) RequestEntry() error {
	f.requested = true
	return nil
}

func newTestRelay(t *testing.T, wearableHandle uint64, wearableOK bool) (*Relay, *fakeNUSWriter, *fakeBonds, *fakeBootloader, *string) {
	t.Helper()
	nusw := &fakeNUSWriter{}
	bonds := &fakeBonds{}
	boot := &fakeBootloader{}
	var unpairedAddr string

	r := NewRelay(nusw, bonds, boot,
		func() ConnectionStatus { return ConnectionStatus{WearableConnected: wearableOK} },
		func() DeviceInfo { return DeviceInfo{Name: "mouthpad"} },
		func() (uint64, bool) { return wearableHandle, wearableOK },
		func(addr string) { unpairedAddr = addr },
	)
	return r, nusw, bonds, boot, &unpairedAddr
}

func TestHandleConnectionStatusRead(t *testing.T) {
	r, _, _, _, _ := newTestRelay(t, 1, true)
	raw := proto.EncodeAppToRelay(proto.AppToRelay{Body: proto.BodyBleConnectionStatusRead})

	resp, err := r.Handle(raw)
	require.NoError(t, err)
	require.Equal(t, proto.RelayBodyBleConnectionStatus, resp.Body)
}

func TestHandleDeviceInfoRead(t *testing.T) {
	r, _, _, _, _ := newTestRelay(t, 1, true)
	raw := proto.EncodeAppToRelay(proto.AppToRelay{Body: proto.BodyDeviceInfoRead})

	resp, err := r.Handle(raw)
	require.NoError(t, err)
	require.Equal(t, proto.RelayBodyDeviceInfo, resp.Body)
}

func TestHandleClearBondsInvokesUnpair(t *testing.T) {
	r, _, bonds, _, unpaired := newTestRelay(t, 1, true)
	raw := proto.EncodeAppToRelay(proto.AppToRelay{Body: proto.BodyClearBondsWrite})

	resp, err := r.Handle(raw)
	require.NoError(t, err)
	require.Equal(t, proto.RelayBodyClearBonds, resp.Body)
	require.True(t, bonds.cleared)
	require.Equal(t, "aa:bb:cc:dd:ee:ff", *unpaired)
}

func TestHandleDfuWriteRequestsBootloaderEntry(t *testing.T) {
	r, _, _, boot, _ := newTestRelay(t, 1, true)
	raw := proto.EncodeAppToRelay(proto.AppToRelay{Body: proto.BodyDfuWrite})

	resp, err := r.Handle(raw)
	require.NoError(t, err)
	require.Equal(t, proto.RelayBodyDfu, resp.Body)
	require.True(t, boot.requested)
}

func TestHandlePassThroughWritesToNUS(t *testing.T) {
	r, nusw, _, _, _ := newTestRelay(t, 42, true)
	raw := proto.EncodeAppToRelay(proto.AppToRelay{Body: proto.BodyPassThroughToMouthpad, PassThrough: []byte{0x01, 0x02}})

	resp, err := r.Handle(raw)
	require.NoError(t, err)
	require.Equal(t, proto.RelayBodyPassThroughToApp, resp.Body)
	require.Equal(t, proto.StatusUnspecified, resp.PassThroughSt)
	require.Equal(t, []byte{0x01, 0x02}, nusw.sent[42])
}

func TestHandlePassThroughNotConnected(t *testing.T) {
	r, _, _, _, _ := newTestRelay(t, 0, false)
	raw := proto.EncodeAppToRelay(proto.AppToRelay{Body: proto.BodyPassThroughToMouthpad, PassThrough: []byte{0x01}})

	resp, err := r.Handle(raw)
	require.NoError(t, err)
	require.Equal(t, proto.StatusNotConnected, resp.PassThroughSt)
}

func TestHandlePassThroughTooLarge(t *testing.T) {
	r, _, _, _, _ := newTestRelay(t, 1, true)
	big := make([]byte, MaxPayload+1)
	raw := proto.EncodeAppToRelay(proto.AppToRelay{Body: proto.BodyPassThroughToMouthpad, PassThrough: big})

	resp, err := r.Handle(raw)
	require.NoError(t, err)
	require.Equal(t, proto.StatusTooLarge, resp.PassThroughSt)
}

func TestHandlePassThroughUnknownErrorOnSendFailure(t *testing.T) {
	nusw := &fakeNUSWriter{sendErr: errors.New("congested")}
	bonds := &fakeBonds{}
	boot := &fakeBootloader{}
	r := NewRelay(nusw, bonds, boot,
		func() ConnectionStatus { return ConnectionStatus{} },
		func() DeviceInfo { return DeviceInfo{} },
		func() (uint64, bool) { return 1, true },
		func(string) {},
	)
	raw := proto.EncodeAppToRelay(proto.AppToRelay{Body: proto.BodyPassThroughToMouthpad, PassThrough: []byte{0x01}})

	resp, err := r.Handle(raw)
	require.NoError(t, err)
	require.Equal(t, proto.StatusUnknown, resp.PassThroughSt)
}

func TestWrapNotificationProducesPassThroughToApp(t *testing.T) {
	resp := WrapNotification([]byte{0xAB})
	require.Equal(t, proto.RelayBodyPassThroughToApp, resp.Body)
	require.Equal(t, []byte{0xAB}, resp.PassThrough)
	require.Equal(t, proto.StatusUnspecified, resp.PassThroughSt)
}
