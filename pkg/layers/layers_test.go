package layers

import (
	"context"
	"errors"
	"testing"

	"github.com/minghan/bond/pkg/protocol"
)

type recordingLayer struct {
	name      string
	sendBlob  []byte
	sendErr   error
	recvErr   error
	gotOnRecv []byte
	sawBlob   bool
}

func (l *recordingLayer) OnSend(context.Context, protocol.PayloadType, Context) ([]byte, error) {
	return l.sendBlob, l.sendErr
}

func (l *recordingLayer) OnReceive(_ context.Context, _ protocol.PayloadType, _ Context, blob []byte) error {
	l.gotOnRecv = blob
	l.sawBlob = blob != nil
	return l.recvErr
}

func TestNopDoesNothing(t *testing.T) {
	var n Nop
	blob, err := n.OnSend(context.Background(), protocol.PayloadRequest, Context{})
	if blob != nil || err != nil {
		t.Fatalf("Nop.OnSend = (%v, %v), want (nil, nil)", blob, err)
	}
	if err := n.OnReceive(context.Background(), protocol.PayloadRequest, Context{}, []byte("x")); err != nil {
		t.Fatalf("Nop.OnReceive = %v, want nil", err)
	}
}

func TestChainEmptyProducesNoBlob(t *testing.T) {
	c := NewChain()
	blob, err := c.OnSend(context.Background(), protocol.PayloadRequest, Context{})
	if err != nil || blob != nil {
		t.Fatalf("empty chain OnSend = (%v, %v), want (nil, nil)", blob, err)
	}
	if err := c.OnReceive(context.Background(), protocol.PayloadRequest, Context{}, nil); err != nil {
		t.Fatalf("empty chain OnReceive = %v, want nil", err)
	}
}

func TestChainRoundTripsPerLayerBlobs(t *testing.T) {
	a := &recordingLayer{name: "a", sendBlob: []byte("from-a")}
	b := &recordingLayer{name: "b", sendBlob: nil}
	c := &recordingLayer{name: "c", sendBlob: []byte("from-c")}
	chain := NewChain(a, b, c)

	blob, err := chain.OnSend(context.Background(), protocol.PayloadRequest, Context{ConversationID: 1})
	if err != nil {
		t.Fatalf("OnSend error: %v", err)
	}
	if blob == nil {
		t.Fatalf("OnSend blob = nil, want non-nil since at least one layer produced data")
	}

	ra := &recordingLayer{}
	rb := &recordingLayer{}
	rc := &recordingLayer{}
	recvChain := NewChain(ra, rb, rc)
	if err := recvChain.OnReceive(context.Background(), protocol.PayloadRequest, Context{}, blob); err != nil {
		t.Fatalf("OnReceive error: %v", err)
	}
	if string(ra.gotOnRecv) != "from-a" {
		t.Fatalf("layer a got %q, want %q", ra.gotOnRecv, "from-a")
	}
	if rb.sawBlob {
		t.Fatalf("layer b saw a blob, want nil")
	}
	if string(rc.gotOnRecv) != "from-c" {
		t.Fatalf("layer c got %q, want %q", rc.gotOnRecv, "from-c")
	}
}

func TestChainOnSendStopsAtFirstError(t *testing.T) {
	boom := errors.New("boom")
	a := &recordingLayer{sendBlob: []byte("from-a")}
	b := &recordingLayer{sendErr: boom}
	c := &recordingLayer{sendBlob: []byte("never")}
	chain := NewChain(a, b, c)

	_, err := chain.OnSend(context.Background(), protocol.PayloadEvent, Context{})
	if !errors.Is(err, boom) {
		t.Fatalf("OnSend error = %v, want %v", err, boom)
	}
}

func TestChainOnReceiveStopsAtFirstError(t *testing.T) {
	boom := errors.New("boom")
	a := &recordingLayer{}
	b := &recordingLayer{recvErr: boom}
	c := &recordingLayer{}
	chain := NewChain(a, b, c)

	err := chain.OnReceive(context.Background(), protocol.PayloadResponse, Context{}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("OnReceive error = %v, want %v", err, boom)
	}
}
