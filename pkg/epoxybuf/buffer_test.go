package epoxybuf

import "testing"

func TestRoundTrip(t *testing.T) {
	buf := NewBuffer(16)
	buf.WriteUint8(7)
	buf.WriteUint16(1234)
	buf.WriteUint32(987654)
	buf.WriteUint64(1 << 40)
	buf.WriteInt32(-5)
	buf.WriteString("hello")
	buf.WriteBytes([]byte{1, 2, 3})

	r := NewReader(buf.Bytes())

	if v, err := r.ReadUint8(); err != nil || v != 7 {
		t.Fatalf("ReadUint8 = %v, %v", v, err)
	}
	if v, err := r.ReadUint16(); err != nil || v != 1234 {
		t.Fatalf("ReadUint16 = %v, %v", v, err)
	}
	if v, err := r.ReadUint32(); err != nil || v != 987654 {
		t.Fatalf("ReadUint32 = %v, %v", v, err)
	}
	if v, err := r.ReadUint64(); err != nil || v != 1<<40 {
		t.Fatalf("ReadUint64 = %v, %v", v, err)
	}
	if v, err := r.ReadInt32(); err != nil || v != -5 {
		t.Fatalf("ReadInt32 = %v, %v", v, err)
	}
	if v, err := r.ReadString(); err != nil || v != "hello" {
		t.Fatalf("ReadString = %q, %v", v, err)
	}
	if v, err := r.ReadBytes(); err != nil || string(v) != "\x01\x02\x03" {
		t.Fatalf("ReadBytes = %v, %v", v, err)
	}
	if r.Remaining() != 0 {
		t.Fatalf("Remaining = %d, want 0", r.Remaining())
	}
}

func TestShortBuffer(t *testing.T) {
	r := NewReader([]byte{1, 2})
	if _, err := r.ReadUint32(); err != ErrShortBuffer {
		t.Fatalf("ReadUint32 err = %v, want ErrShortBuffer", err)
	}
}
