package usbhid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeEndpoint struct {
	writes []struct {
		reportID byte
		payload  []byte
	}
}

func (f *fakeEndpoint) Write(reportID byte, payload []byte) error {
	f.writes = append(f.writes, struct {
		reportID byte
		payload  []byte
	}{reportID, payload})
	return nil
}

func TestSendWritesReport(t *testing.T) {
	ep := &fakeEndpoint{}
	f := New(ep)
	err := f.Send(ReportXY, []byte{1, 0, 2, 0})
	require.NoError(t, err)
	require.Len(t, ep.writes, 1)
	require.Equal(t, ReportXY, ep.writes[0].reportID)
}

func TestReleaseAllSendsThreeNeutralReports(t *testing.T) {
	ep := &fakeEndpoint{}
	f := New(ep)
	f.ReleaseAll()
	require.Len(t, ep.writes, 3)
	require.Equal(t, ReportButtonsWheel, ep.writes[0].reportID)
	require.Equal(t, ReportXY, ep.writes[1].reportID)
	require.Equal(t, ReportConsumer, ep.writes[2].reportID)
	for _, w := range ep.writes {
		for _, b := range w.payload {
			require.Zero(t, b)
		}
	}
}

func TestSendBusyTimesOut(t *testing.T) {
	ep := &fakeEndpoint{}
	f := New(ep)
	<-f.epReady // drain the semaphore so Send can't acquire it

	err := f.Send(ReportXY, []byte{0, 0, 0, 0})
	require.ErrorIs(t, err, ErrBusy)
}

func TestRemoteWakeupClearsSuspended(t *testing.T) {
	ep := &fakeEndpoint{}
	f := New(ep)
	f.SetSuspended(true)
	require.NoError(t, f.RemoteWakeup())
	f.mu.Lock()
	defer f.mu.Unlock()
	require.False(t, f.suspended)
}
