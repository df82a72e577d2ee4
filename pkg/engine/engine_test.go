package engine

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/minghan/bond/pkg/epoxybuf"
	"github.com/minghan/bond/pkg/host"
	"github.com/minghan/bond/pkg/metrics"
	"github.com/minghan/bond/pkg/protocol"
	"github.com/minghan/bond/pkg/wire"
)

const testTimeout = 2 * time.Second

func configFrame() *wire.Frame {
	buf := epoxybuf.NewBuffer(0)
	(&protocol.EpoxyConfig{}).Encode(buf)
	return &wire.Frame{Framelets: []wire.Framelet{
		{Type: uint16(protocol.FrameletEpoxyConfig), Body: buf.Bytes()},
	}}
}

func headersFramelet(h *protocol.EpoxyHeaders) wire.Framelet {
	buf := epoxybuf.NewBuffer(64)
	h.Encode(buf)
	return wire.Framelet{Type: uint16(protocol.FrameletEpoxyHeaders), Body: buf.Bytes()}
}

func payloadFramelet(p []byte) wire.Framelet {
	return wire.Framelet{Type: uint16(protocol.FrameletPayloadData), Body: p}
}

// tcpPipe returns a connected pair of loopback TCP sockets. Unlike
// net.Pipe, a real socket has OS-level send buffering, so a handshake step
// that writes before its peer is ready to read doesn't deadlock — the same
// reason strandapi/pkg/transport/overlay_test.go drives its loopback test
// over a real listener rather than an in-memory pipe.
func tcpPipe(t *testing.T) (client, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	acceptCh := make(chan net.Conn, 1)
	acceptErrCh := make(chan error, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			acceptErrCh <- err
			return
		}
		acceptCh <- c
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	select {
	case server = <-acceptCh:
	case err := <-acceptErrCh:
		require.NoError(t, err)
	case <-time.After(testTimeout):
		t.Fatal("timed out accepting loopback connection")
	}
	return client, server
}

func readFrameT(t *testing.T, conn net.Conn) *wire.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(testTimeout)))
	f, err := wire.Read(conn)
	require.NoError(t, err)
	return f
}

// doHandshakeAsFakeClient drives the raw "fake peer" side of a handshake against a
// real server-role engine: it sends EpoxyConfig first (as a client always
// does) and reads back the server's own EpoxyConfig reply.
func doHandshakeAsFakeClient(t *testing.T, conn net.Conn) {
	t.Helper()
	require.NoError(t, conn.SetWriteDeadline(time.Now().Add(testTimeout)))
	require.NoError(t, wire.WriteFrame(conn, configFrame()))
	reply := readFrameT(t, conn)
	require.Len(t, reply.Framelets, 1)
	require.Equal(t, uint16(protocol.FrameletEpoxyConfig), reply.Framelets[0].Type)
}

func startAsync(t *testing.T, c *Connection) <-chan error {
	t.Helper()
	ch := make(chan error, 1)
	go func() { ch <- c.Start(context.Background()) }()
	return ch
}

func requireStarted(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for Start to resolve")
		return nil
	}
}

func TestCleanRoundTripAndFireEvent(t *testing.T) {
	clientConn, serverConn := tcpPipe(t)

	clientSink := metrics.NewMemorySink()
	serverSink := metrics.NewMemorySink()

	var gotEventPayload []byte
	eventSeen := make(chan struct{}, 1)
	serverHost := host.NewRouter().
		HandleRequest("Echo", func(ctx context.Context, payload []byte) ([]byte, error) {
			return payload, nil
		}).
		HandleEvent("Ping", func(ctx context.Context, payload []byte) error {
			gotEventPayload = payload
			eventSeen <- struct{}{}
			return nil
		})

	client := New(clientConn, RoleClient, WithMetricsSink(clientSink))
	server := New(serverConn, RoleServer, WithHost(serverHost), WithMetricsSink(serverSink))

	clientStart := startAsync(t, client)
	serverStart := startAsync(t, server)

	require.NoError(t, requireStarted(t, clientStart))
	require.NoError(t, requireStarted(t, serverStart))
	require.Equal(t, StateConnected, client.State())
	require.Equal(t, StateConnected, server.State())

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	resp, err := client.RequestResponse(ctx, "Echo", []byte("hi"))
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), resp)

	require.NoError(t, client.FireEvent(ctx, "Ping", []byte("pong")))
	select {
	case <-eventSeen:
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for event dispatch")
	}
	require.Equal(t, []byte("pong"), gotEventPayload)

	require.NoError(t, client.Stop(ctx))
	require.NoError(t, server.Stop(ctx))

	require.Equal(t, StateDisconnected, client.State())
	require.Equal(t, StateDisconnected, server.State())

	require.Len(t, clientSink.Records(), 1)
	require.Len(t, serverSink.Records(), 1)
	require.Contains(t, []protocol.ConnectionShutdownReason{protocol.ShutdownClientGraceful, protocol.ShutdownServerGraceful}, clientSink.Records()[0].ShutdownReason)
	require.Contains(t, []protocol.ConnectionShutdownReason{protocol.ShutdownClientGraceful, protocol.ShutdownServerGraceful}, serverSink.Records()[0].ShutdownReason)
}

func TestHandshakeRejection(t *testing.T) {
	clientConn, serverConn := tcpPipe(t)

	rejection := &protocol.Error{Code: 42, Message: "nope"}
	server := New(serverConn, RoleServer, WithOnConnected(func(ctx context.Context) *protocol.Error {
		return rejection
	}))
	client := New(clientConn, RoleClient)

	clientStart := startAsync(t, client)
	serverStart := startAsync(t, server)

	clientErr := requireStarted(t, clientStart)
	serverErr := requireStarted(t, serverStart)

	require.Error(t, clientErr)
	require.Error(t, serverErr)

	var clientRec *protocol.Error
	require.ErrorAs(t, clientErr, &clientRec)
	require.Equal(t, int32(42), clientRec.Code)
	require.Equal(t, "nope", clientRec.Message)

	require.Eventually(t, func() bool {
		return client.State() == StateDisconnected && server.State() == StateDisconnected
	}, testTimeout, 10*time.Millisecond)
}

func TestMalformedFrameTearsDownConnection(t *testing.T) {
	serverConn, fakeClient := tcpPipe(t)
	server := New(serverConn, RoleServer)

	serverStart := startAsync(t, server)
	doHandshakeAsFakeClient(t, fakeClient)
	require.NoError(t, requireStarted(t, serverStart))

	// A frame with two EpoxyHeaders framelets is malformed: duplicate
	// framelets of the same type are always rejected.
	dup := &protocol.EpoxyHeaders{ConversationID: 2, PayloadType: protocol.PayloadRequest, MethodName: "X"}
	bad := &wire.Frame{Framelets: []wire.Framelet{headersFramelet(dup), headersFramelet(dup), payloadFramelet(nil)}}
	require.NoError(t, fakeClient.SetWriteDeadline(time.Now().Add(testTimeout)))
	require.NoError(t, wire.WriteFrame(fakeClient, bad))

	errFrame := readFrameT(t, fakeClient)
	require.Len(t, errFrame.Framelets, 1)
	require.Equal(t, uint16(protocol.FrameletProtocolErr), errFrame.Framelets[0].Type)

	pe := &protocol.ProtocolError{}
	require.NoError(t, pe.Decode(epoxybuf.NewReader(errFrame.Framelets[0].Body)))
	require.Equal(t, protocol.CodeMalformedData, pe.Code)

	require.Eventually(t, func() bool { return server.State() == StateDisconnected }, testTimeout, 10*time.Millisecond)
	require.Equal(t, protocol.ShutdownClientProtocolError, server.Metrics().ShutdownReason)
}

func TestUnmatchedResponseIsDroppedAndConnectionSurvives(t *testing.T) {
	clientConn, fakeServer := tcpPipe(t)
	client := New(clientConn, RoleClient)

	clientStart := startAsync(t, client)

	require.NoError(t, fakeServer.SetReadDeadline(time.Now().Add(testTimeout)))
	cfg, err := wire.Read(fakeServer)
	require.NoError(t, err)
	require.Len(t, cfg.Framelets, 1)
	require.NoError(t, fakeServer.SetWriteDeadline(time.Now().Add(testTimeout)))
	require.NoError(t, wire.WriteFrame(fakeServer, configFrame()))

	require.NoError(t, requireStarted(t, clientStart))

	// An unsolicited response for a conversation id the client never
	// allocated; the client should log and drop it, staying Connected.
	bogus := &protocol.EpoxyHeaders{ConversationID: 999, PayloadType: protocol.PayloadResponse}
	unmatched := &wire.Frame{Framelets: []wire.Framelet{headersFramelet(bogus), payloadFramelet([]byte("nope"))}}
	require.NoError(t, wire.WriteFrame(fakeServer, unmatched))

	// A legitimate request still completes afterward.
	reqDone := make(chan struct{})
	var reqErr error
	var reqResp []byte
	go func() {
		defer close(reqDone)
		reqResp, reqErr = client.RequestResponse(context.Background(), "Echo", []byte("hi"))
	}()

	req := readFrameT(t, fakeServer)
	require.Len(t, req.Framelets, 2)
	h := &protocol.EpoxyHeaders{}
	require.NoError(t, h.Decode(epoxybuf.NewReader(req.Framelets[0].Body)))
	require.Equal(t, uint64(1), h.ConversationID)

	okHeaders := &protocol.EpoxyHeaders{ConversationID: h.ConversationID, PayloadType: protocol.PayloadResponse}
	reply := &wire.Frame{Framelets: []wire.Framelet{headersFramelet(okHeaders), payloadFramelet([]byte("hi"))}}
	require.NoError(t, wire.WriteFrame(fakeServer, reply))

	select {
	case <-reqDone:
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for RequestResponse")
	}
	require.NoError(t, reqErr)
	require.Equal(t, []byte("hi"), reqResp)
	require.Equal(t, StateConnected, client.State())
}

func TestAbruptCloseDuringRequestFailsPendingSlot(t *testing.T) {
	clientConn, fakeServer := tcpPipe(t)
	sink := metrics.NewMemorySink()
	client := New(clientConn, RoleClient, WithMetricsSink(sink))

	clientStart := startAsync(t, client)

	require.NoError(t, fakeServer.SetReadDeadline(time.Now().Add(testTimeout)))
	_, err := wire.Read(fakeServer)
	require.NoError(t, err)
	require.NoError(t, fakeServer.SetWriteDeadline(time.Now().Add(testTimeout)))
	require.NoError(t, wire.WriteFrame(fakeServer, configFrame()))
	require.NoError(t, requireStarted(t, clientStart))

	reqDone := make(chan struct{})
	var reqErr error
	go func() {
		defer close(reqDone)
		_, reqErr = client.RequestResponse(context.Background(), "Echo", []byte("hi"))
	}()

	_ = readFrameT(t, fakeServer)
	require.NoError(t, fakeServer.Close())

	select {
	case <-reqDone:
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for RequestResponse to fail")
	}
	require.Error(t, reqErr)

	require.Eventually(t, func() bool { return client.State() == StateDisconnected }, testTimeout, 10*time.Millisecond)
	require.NoError(t, client.Stop(context.Background()))
	require.Len(t, sink.Records(), 1)
}
