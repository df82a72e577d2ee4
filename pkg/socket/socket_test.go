package socket

import (
	"net"
	"testing"
)

func TestShutdownIdempotent(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	s := New(a)

	if err := s.Shutdown(); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := s.Shutdown(); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
	if !s.Closed() {
		t.Fatalf("Closed() = false after Shutdown")
	}
}

func TestConcurrentShutdown(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	s := New(a)

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			s.Shutdown()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	if !s.Closed() {
		t.Fatalf("Closed() = false")
	}
}

func TestWriteMutexExclusion(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	s := New(a)

	s.LockWrite()
	acquired := make(chan struct{})
	go func() {
		s.LockWrite()
		close(acquired)
		s.Unlock()
	}()

	select {
	case <-acquired:
		t.Fatalf("second LockWrite acquired while first held")
	default:
	}
	s.Unlock()
	<-acquired
}
