//go:build linux || darwin

package client

import (
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/legamerdc/llsock"
	"github.com/legamerdc/llsock/server"
	"github.com/legamerdc/llsock/tcp"
)

var quiet = log.New(io.Discard, "", 0)

type recorder struct {
	opened chan struct{}
	msgs   chan string
	closed chan error
}

func newRecorder() *recorder {
	return &recorder{
		opened: make(chan struct{}, 1),
		msgs:   make(chan string, 16),
		closed: make(chan error, 1),
	}
}

func (r *recorder) OnOpen(*Client)                  { r.opened <- struct{}{} }
func (r *recorder) OnMessage(_ *Client, msg []byte) { r.msgs <- string(msg) }
func (r *recorder) OnClose(_ *Client, err error)    { r.closed <- err }

// serve 在独立 goroutine 中独占驱动服务端
func serve(t *testing.T, h server.Handler) *server.Server {
	t.Helper()
	srv := server.New(quiet, h, server.WithBufferSize(4096))
	if err := srv.Listen("", 0); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	stop, done := make(chan struct{}), make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			srv.Poll()
			srv.SendAndRecv()
			time.Sleep(time.Millisecond)
		}
	}()
	t.Cleanup(func() {
		close(stop)
		<-done
		srv.Close()
	})
	return srv
}

func wait[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
	panic("unreachable")
}

func echo() server.Handler {
	return server.HandlerFuncs{Recv: func(s *tcp.Socket, _ time.Time) {
		s.Send(s.Inbound())
		s.ResetRecvSize()
	}}
}

func TestWriteEcho(t *testing.T) {
	srv := serve(t, echo())
	port := srv.LocalPort()

	r := newRecorder()
	c, err := DialSize("127.0.0.1", "", port, 4096, r, quiet)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	wait(t, r.opened)

	if err := c.Write([]byte("ping")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := wait(t, r.msgs); got != "ping" {
		t.Fatalf("echo = %q", got)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := wait(t, r.closed); !IsClosed(err) {
		t.Fatalf("close cause = %v", err)
	}
	if !c.Done().Done() {
		t.Fatal("Done not signalled after Close")
	}
	if err := c.Write([]byte("late")); !errors.Is(err, llsock.ErrClosed) {
		t.Fatalf("Write after Close: %v", err)
	}
	c.Close()
}

func TestPeerCloseReported(t *testing.T) {
	srv := serve(t, server.HandlerFuncs{Recv: func(s *tcp.Socket, _ time.Time) {
		s.ResetRecvSize()
		s.Close()
	}})

	r := newRecorder()
	c, err := DialSize("127.0.0.1", "", srv.LocalPort(), 4096, r, quiet)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()
	wait(t, r.opened)

	if err := c.Write([]byte("bye")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := wait(t, r.closed); !errors.Is(err, llsock.ErrPeerClosed) {
		t.Fatalf("close cause = %v", err)
	}
	if err := c.Write([]byte("again")); err == nil {
		t.Fatal("Write on dead connection succeeded")
	}
}

func TestWriteTooLarge(t *testing.T) {
	srv := serve(t, echo())
	r := newRecorder()
	c, err := DialSize("127.0.0.1", "", srv.LocalPort(), 64, r, quiet)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()
	if err := c.Write(make([]byte, 64)); !errors.Is(err, llsock.ErrBufferOverflow) {
		t.Fatalf("Write: %v", err)
	}
}

func TestDialRefused(t *testing.T) {
	ln := tcp.NewSize(quiet, 64)
	if _, err := ln.Connect("", "", 0, true); err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.LocalPort()
	ln.Close()
	if _, err := Dial("127.0.0.1", "", port, newRecorder(), quiet); !errors.Is(err, llsock.ErrSocketSetup) {
		t.Fatalf("Dial: %v", err)
	}
}
