package tcp

import (
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/legamerdc/llsock"
)

var quiet = log.New(io.Discard, "", 0)

// pair 返回已建立连接的 (listener, client, accepted peer)
func pair(t *testing.T, size int) (*Socket, *Socket, *Socket) {
	t.Helper()
	ln := NewSize(quiet, size)
	if _, err := ln.Connect("127.0.0.1", "", 0, true); err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	cli := NewSize(quiet, size)
	if _, err := cli.Connect("127.0.0.1", "", ln.LocalPort(), false); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { cli.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for {
		peer, err := ln.Accept()
		if err == nil {
			t.Cleanup(func() { peer.Close() })
			return ln, cli, peer
		}
		if !errors.Is(err, llsock.ErrWouldBlock) {
			t.Fatalf("Accept: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for accept")
		}
		time.Sleep(time.Millisecond)
	}
}

// pollUntil 反复驱动 s.SendAndRecv 直到 cond 成立
func pollUntil(t *testing.T, s *Socket, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out polling")
		}
		s.SendAndRecv()
		time.Sleep(time.Millisecond)
	}
}

func TestSendAndRecvRoundTrip(t *testing.T) {
	_, cli, peer := pair(t, 1024)

	var got string
	var from int
	var stamp time.Time
	peer.SetHandler(HandlerFunc(func(s *Socket, rx time.Time) {
		got = string(s.Inbound())
		from = s.FD()
		stamp = rx
		s.ResetRecvSize()
	}))

	cli.Send([]byte("hello"))
	if cli.Pending() != 5 {
		t.Fatalf("Pending = %d, want 5", cli.Pending())
	}
	if cli.SendAndRecv() {
		t.Fatal("client received nothing but SendAndRecv returned true")
	}
	if cli.Pending() != 0 {
		t.Fatalf("outbound cursor not reset: %d", cli.Pending())
	}

	pollUntil(t, peer, func() bool { return got != "" })
	if got != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
	if from != peer.FD() {
		t.Fatalf("callback socket fd=%d, want %d", from, peer.FD())
	}
	if stamp.IsZero() {
		t.Fatal("missing receive timestamp")
	}
	if peer.RecvSize() != 0 {
		t.Fatalf("RecvSize = %d after reset", peer.RecvSize())
	}
}

func TestIdleSendAndRecvIsNoop(t *testing.T) {
	_, cli, peer := pair(t, 64)
	calls := 0
	peer.SetHandler(HandlerFunc(func(*Socket, time.Time) { calls++ }))

	for i := 0; i < 3; i++ {
		if peer.SendAndRecv() {
			t.Fatal("idle SendAndRecv returned true")
		}
		if cli.SendAndRecv() {
			t.Fatal("idle SendAndRecv returned true")
		}
	}
	if calls != 0 || peer.RecvSize() != 0 || peer.Pending() != 0 || !peer.Alive() {
		t.Fatalf("idle cycle changed state: calls=%d recv=%d pending=%d alive=%t",
			calls, peer.RecvSize(), peer.Pending(), peer.Alive())
	}
}

func TestUnconsumedInboundAccumulates(t *testing.T) {
	_, cli, peer := pair(t, 64)
	peer.SetHandler(HandlerFunc(func(*Socket, time.Time) {}))

	cli.Send([]byte("ab"))
	cli.SendAndRecv()
	pollUntil(t, peer, func() bool { return peer.RecvSize() == 2 })

	cli.Send([]byte("cd"))
	cli.SendAndRecv()
	pollUntil(t, peer, func() bool { return peer.RecvSize() == 4 })
	if string(peer.Inbound()) != "abcd" {
		t.Fatalf("got %q", peer.Inbound())
	}
}

func TestSendOverflowPanics(t *testing.T) {
	s := NewSize(quiet, 16)
	s.Send(make([]byte, 10))

	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, llsock.ErrBufferOverflow) {
			t.Fatalf("recovered %v, want ErrBufferOverflow", r)
		}
		var oe *llsock.OverflowError
		if !errors.As(err, &oe) || oe.Op != "send" || oe.Len != 10 || oe.Want != 6 {
			t.Fatalf("got %#v", r)
		}
		if s.Pending() != 10 {
			t.Fatalf("overflowing send must not truncate-copy, pending=%d", s.Pending())
		}
	}()
	// 10+6 达到容量
	s.Send(make([]byte, 6))
	t.Fatal("Send did not panic")
}

func TestRepeatedSendWithoutDrainOverflowsOnce(t *testing.T) {
	s := NewSize(quiet, 32)
	chunk := []byte("TICK|")
	panics := 0
	for i := 0; i < 20; i++ {
		func() {
			defer func() {
				if r := recover(); r != nil {
					panics++
				}
			}()
			s.Send(chunk)
		}()
		if panics > 0 {
			break
		}
	}
	if panics != 1 {
		t.Fatalf("panics = %d, want exactly 1", panics)
	}
	if s.Pending() != 30 {
		t.Fatalf("pending = %d, want 30", s.Pending())
	}
}

func TestPeerCloseDetected(t *testing.T) {
	_, cli, peer := pair(t, 64)
	calls := 0
	peer.SetHandler(HandlerFunc(func(*Socket, time.Time) { calls++ }))

	cli.Close()
	pollUntil(t, peer, func() bool { return !peer.Alive() })
	if !errors.Is(peer.Err(), llsock.ErrPeerClosed) {
		t.Fatalf("Err = %v, want ErrPeerClosed", peer.Err())
	}
	if peer.SendAndRecv() || calls != 0 {
		t.Fatal("dead socket must not receive")
	}
}

func TestConnectRefusedSurfacesAsDisconnect(t *testing.T) {
	ln := New(quiet)
	if _, err := ln.Connect("127.0.0.1", "", 0, true); err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.LocalPort()
	ln.Close()

	cli := New(quiet)
	if _, err := cli.Connect("127.0.0.1", "", port, false); err != nil {
		// 部分内核在非阻塞 connect 时直接返回 ECONNREFUSED
		if !errors.Is(err, llsock.ErrSocketSetup) {
			t.Fatalf("Connect: %v", err)
		}
		return
	}
	defer cli.Close()
	pollUntil(t, cli, func() bool { return !cli.Alive() })
}

func TestSetupErrors(t *testing.T) {
	s := New(quiet)
	if _, err := s.Connect("", "", 1, false); !errors.Is(err, llsock.ErrSocketSetup) {
		t.Fatalf("got %v, want ErrSocketSetup", err)
	}
	if s.FD() != -1 || s.Alive() {
		t.Fatal("failed setup must leave the socket closed")
	}
	if _, err := s.Accept(); !errors.Is(err, llsock.ErrClosed) {
		t.Fatalf("Accept on closed socket: %v", err)
	}

	if _, err := s.Connect("127.0.0.1", "", 0, true); err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer s.Close()
	if _, err := s.Connect("127.0.0.1", "", 0, true); !errors.Is(err, llsock.ErrSocketSetup) {
		t.Fatalf("second setup: got %v", err)
	}
	if _, err := s.Accept(); !errors.Is(err, llsock.ErrWouldBlock) {
		t.Fatalf("Accept with nothing pending: %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	_, cli, _ := pair(t, 64)
	if err := cli.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := cli.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	cli.Send([]byte("x"))
	if cli.SendAndRecv() || cli.Pending() != 0 {
		t.Fatal("closed socket should drop outbound data")
	}
}

func TestRecvOverflowPanicsWhenInboundFull(t *testing.T) {
	_, cli, peer := pair(t, 8)

	// 不消费 Inbound，直到接收缓冲填满
	cli.Send([]byte("1234567"))
	cli.SendAndRecv()
	pollUntil(t, peer, func() bool { return peer.RecvSize() == 7 })
	cli.Send([]byte("8"))
	cli.SendAndRecv()
	pollUntil(t, peer, func() bool { return peer.RecvSize() == 8 })

	defer func() {
		var oe *llsock.OverflowError
		err, _ := recover().(error)
		if !errors.As(err, &oe) || !errors.Is(err, llsock.ErrBufferOverflow) {
			t.Fatalf("recovered %v, want *OverflowError", err)
		}
		if oe.Op != "recv" || oe.Cap != 8 || oe.Len != 8 || oe.Want != 1 {
			t.Fatalf("got %+v", oe)
		}
		if string(peer.Inbound()) != "12345678" {
			t.Fatalf("inbound changed: %q", peer.Inbound())
		}
	}()
	peer.SendAndRecv()
	t.Fatal("SendAndRecv did not panic on full inbound buffer")
}

func TestBlockedSendDropsRemainderAndStaysAlive(t *testing.T) {
	const size = 1 << 20
	// 对端从不读取，内核发送缓冲最终写满
	_, cli, _ := pair(t, size)

	chunk := make([]byte, size-1)
	for i := 0; i < 64; i++ {
		cli.Send(chunk)
		cli.SendAndRecv()
		if cli.Pending() != 0 {
			t.Fatalf("round %d: pending = %d, cursor must reset after send", i, cli.Pending())
		}
		if !cli.Alive() {
			t.Fatalf("round %d: would-block send treated as disconnect: %v", i, cli.Err())
		}
	}
}

func TestAcceptSizeOverridesListenerBuffer(t *testing.T) {
	ln := NewSize(quiet, 16)
	if _, err := ln.Connect("127.0.0.1", "", 0, true); err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	cli := NewSize(quiet, 4096)
	if _, err := cli.Connect("127.0.0.1", "", ln.LocalPort(), false); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer cli.Close()

	var peer *Socket
	deadline := time.Now().Add(2 * time.Second)
	for peer == nil {
		p, err := ln.AcceptSize(4096)
		switch {
		case err == nil:
			peer = p
		case !errors.Is(err, llsock.ErrWouldBlock):
			t.Fatalf("AcceptSize: %v", err)
		case time.Now().After(deadline):
			t.Fatal("timed out waiting for accept")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	defer peer.Close()

	// 超过监听 socket 的 16 字节容量也不会溢出
	peer.Send(make([]byte, 1000))
	if peer.Pending() != 1000 {
		t.Fatalf("pending = %d", peer.Pending())
	}
}
