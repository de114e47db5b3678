package net

import (
	"bytes"
	stdnet "net"
	"testing"
	"time"

	"github.com/l1jgo/banker/internal/net/packet"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte{0x02, 0x00, 0x01, 0x05, 0, 0, 0}))
	require.Equal(t, []byte{9, 0}, buf.Bytes()[:2])

	payload, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, []byte{0x02, 0x00, 0x01, 0x05, 0, 0, 0}, payload)
}

func TestReadFrameRejectsBadLength(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{3, 0, 1}))
	require.ErrorContains(t, err, "invalid frame length")

	_, err = ReadFrame(bytes.NewReader([]byte{10, 0, 1, 2}))
	require.Error(t, err)

	require.Error(t, WriteFrame(&bytes.Buffer{}, make([]byte, MaxPayload+1)))
}

func TestSessionQueues(t *testing.T) {
	agentEnd, hookEnd := stdnet.Pipe()
	defer hookEnd.Close()

	sess := NewSession(agentEnd, 1, SessionOptions{InQueueSize: 4, OutQueueSize: 4, WriteTimeout: time.Second}, zaptest.NewLogger(t))
	sess.Start()
	defer sess.Close()
	require.Equal(t, packet.StateHandshake, sess.State())

	hello := packet.NewWriterWithOpcode(packet.OpHello)
	hello.WriteD(1)
	go WriteFrame(hookEnd, hello.Bytes())

	select {
	case got := <-sess.InQueue:
		require.Equal(t, hello.Bytes(), got)
	case <-time.After(2 * time.Second):
		t.Fatal("frame not received")
	}

	notice := packet.NewWriterWithOpcode(packet.OpNotice)
	notice.WriteC(0)
	notice.WriteS("ok")
	sess.Send(notice.Bytes())
	sess.FlushOutput()

	hookEnd.SetReadDeadline(time.Now().Add(2 * time.Second))
	got, err := ReadFrame(hookEnd)
	require.NoError(t, err)
	require.Equal(t, notice.Bytes(), got)

	sess.Close()
	require.True(t, sess.IsClosed())
	require.Equal(t, packet.StateDisconnecting, sess.State())
	sess.Send([]byte{1, 0})
	require.Empty(t, sess.outBuf)
}
