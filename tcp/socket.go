// Package tcp 实现点对点连接 socket：定长收发缓冲 + 单步 SendAndRecv。
package tcp

import (
	"time"

	"github.com/legamerdc/llsock"
	"github.com/legamerdc/llsock/internal/buffer"
	"github.com/legamerdc/llsock/internal/netutil"
	"github.com/legamerdc/llsock/logging"
)

// Handler 为接收回调，在 SendAndRecv 内同步调用。
// 实现负责读取 Inbound() 并调用 ResetRecvSize()，否则下次接收会接在未消费数据之后。
// 回调不应 panic 到调用方之外。
type Handler interface {
	OnRecv(s *Socket, rx time.Time)
}

// HandlerFunc 将普通函数适配为 Handler
type HandlerFunc func(s *Socket, rx time.Time)

func (f HandlerFunc) OnRecv(s *Socket, rx time.Time) { f(s, rx) }

// Socket 独占一个 descriptor 及其收发缓冲，非并发安全
type Socket struct {
	fd  int
	cfg llsock.Config
	log llsock.Logger

	out *buffer.Buffer
	in  *buffer.Buffer
	h   Handler

	// 对端断开或发送失败后记录原因，之后 SendAndRecv 不再做系统调用
	err error
}

var _ llsock.BufferedSocket = (*Socket)(nil)

func New(logger llsock.Logger) *Socket { return NewSize(logger, llsock.DefaultBufferSize) }

func NewSize(logger llsock.Logger, size int) *Socket {
	return &Socket{
		fd:  -1,
		log: llsock.LoggerOrDefault(logger),
		out: buffer.New(size),
		in:  buffer.New(size),
	}
}

// Setup 按 cfg 创建 descriptor，返回 fd。失败只记录日志并返回，由调用方决定是否重试。
func (s *Socket) Setup(cfg llsock.Config) (int, error) {
	if s.fd >= 0 {
		return -1, &llsock.SetupError{Op: "setup", Config: cfg, Err: llsock.ErrInvalidArgument}
	}
	cfg.Multicast = false
	fd, err := netutil.CreateSocket(cfg)
	if err != nil {
		s.log.Printf("tcp: setup %s failed: %v", cfg, err)
		return -1, err
	}
	s.fd, s.cfg, s.err = fd, cfg, nil
	s.log.Printf("tcp: setup fd=%d %s", fd, cfg)
	return fd, nil
}

// Connect 以非阻塞方式建立连接（listening=false）或监听（listening=true）
func (s *Socket) Connect(ip, iface string, port int, listening bool) (int, error) {
	return s.Setup(llsock.Config{IP: ip, Iface: iface, Port: port, Listening: listening})
}

// Accept 在监听 socket 上做一次非阻塞 accept。
// 无挂起连接时返回 llsock.ErrWouldBlock；新 socket 继承缓冲大小与 logger。
func (s *Socket) Accept() (*Socket, error) { return s.AcceptSize(s.in.Cap()) }

// AcceptSize 同 Accept，新 socket 的收发缓冲各为 size 字节
func (s *Socket) AcceptSize(size int) (*Socket, error) {
	if s.fd < 0 {
		return nil, llsock.ErrClosed
	}
	fd, err := netutil.Accept(s.fd)
	if err != nil {
		if netutil.IsWouldBlock(err) {
			return nil, llsock.ErrWouldBlock
		}
		s.log.Printf("tcp: accept on fd=%d failed: %v", s.fd, err)
		return nil, &llsock.SetupError{Op: "accept", Config: s.cfg, Err: err}
	}
	_ = netutil.SetNoDelay(fd, true)
	peer := NewSize(s.log, size)
	peer.fd = fd
	peer.cfg = llsock.Config{Iface: s.cfg.Iface, Port: s.cfg.Port}
	s.log.Printf("tcp: accepted fd=%d on fd=%d", fd, s.fd)
	return peer, nil
}

func (s *Socket) SetHandler(h Handler) { s.h = h }

// Send 把 p 拷入发送缓冲，不发起系统调用。
// 缓冲写满属于调用方协议错误：记录日志后以 *llsock.OverflowError panic。
func (s *Socket) Send(p []byte) {
	if _, err := s.out.Write(p); err != nil {
		s.overflow("send", s.out, len(p))
	}
}

// SendAndRecv 依次：一次非阻塞接收并回调，一次非阻塞发送，清零发送游标。
// 返回本次是否收到数据。
func (s *Socket) SendAndRecv() bool {
	if s.fd < 0 || s.err != nil {
		s.out.Reset()
		return false
	}

	if s.in.Free() == 0 {
		s.overflow("recv", s.in, 1)
	}
	n, err := netutil.Recv(s.fd, s.in.Tail())
	received := n > 0
	switch {
	case received:
		rx := time.Now()
		s.in.Advance(n)
		s.log.Printf("tcp: read fd=%d len=%d time=%s", s.fd, s.in.Len(), logging.TimeStr(rx))
		if s.h != nil {
			s.h.OnRecv(s, rx)
		}
	case err == nil:
		s.disconnect(llsock.ErrPeerClosed)
	case !netutil.IsWouldBlock(err):
		s.disconnect(err)
	}

	// 回调内可能已经关闭 socket
	if pending := s.out.Len(); pending > 0 && s.fd >= 0 && s.err == nil {
		sent, err := netutil.Send(s.fd, s.out.Bytes())
		s.log.Printf("tcp: send fd=%d len=%d sent=%d time=%s", s.fd, pending, sent, logging.Now())
		if sent < pending {
			// 剩余部分不保留
			s.log.Printf("tcp: partial send fd=%d dropped=%d err=%v", s.fd, pending-sent, err)
		}
		if err != nil && !netutil.IsWouldBlock(err) {
			s.disconnect(err)
		}
	}
	s.out.Reset()
	return received
}

func (s *Socket) disconnect(err error) {
	if s.err != nil {
		return
	}
	s.err = err
	s.log.Printf("tcp: peer disconnect fd=%d err=%v", s.fd, err)
}

func (s *Socket) overflow(op string, b *buffer.Buffer, want int) {
	e := &llsock.OverflowError{FD: s.fd, Op: op, Cap: b.Cap(), Len: b.Len(), Want: want}
	s.log.Printf("tcp: %v", e)
	panic(e)
}

// Inbound 返回尚未消费的接收数据
func (s *Socket) Inbound() []byte { return s.in.Bytes() }

func (s *Socket) RecvSize() int { return s.in.Len() }

func (s *Socket) ResetRecvSize() { s.in.Reset() }

// Pending 返回发送缓冲中待发字节数
func (s *Socket) Pending() int { return s.out.Len() }

func (s *Socket) FD() int { return s.fd }

func (s *Socket) Config() llsock.Config { return s.cfg }

// Alive 报告 descriptor 是否打开且未检测到断开
func (s *Socket) Alive() bool { return s.fd >= 0 && s.err == nil }

// Err 返回断开原因
func (s *Socket) Err() error { return s.err }

func (s *Socket) LocalPort() int {
	if s.fd < 0 {
		return 0
	}
	port, _ := netutil.LocalPort(s.fd)
	return port
}

// Close 释放 descriptor，可重复调用
func (s *Socket) Close() error {
	if s.fd < 0 {
		return nil
	}
	fd := s.fd
	s.fd = -1
	if s.err == nil {
		s.err = llsock.ErrClosed
	}
	s.out.Reset()
	return netutil.Close(fd)
}
