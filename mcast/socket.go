// Package mcast 实现组播 socket：与 tcp.Socket 相同的缓冲收发模型，无连接、无 peer 集合。
//
// 不做分帧：每次接收追加一个数据报的原始字节，回调须把 Inbound() 当作一个不透明块处理。
package mcast

import (
	"github.com/legamerdc/llsock"
	"github.com/legamerdc/llsock/internal/buffer"
	"github.com/legamerdc/llsock/internal/netutil"
	"github.com/legamerdc/llsock/logging"
)

// Handler 在 SendAndRecv 内同步调用，不携带时间戳
type Handler interface {
	OnRecv(s *Socket)
}

type HandlerFunc func(s *Socket)

func (f HandlerFunc) OnRecv(s *Socket) { f(s) }

type Socket struct {
	fd  int
	cfg llsock.Config
	log llsock.Logger

	out *buffer.Buffer
	in  *buffer.Buffer
	h   Handler
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

// Init 创建用于接收（listening=true，随后 Join）或发送的 UDP socket
func (s *Socket) Init(group, iface string, port int, listening bool) (int, error) {
	return s.Setup(llsock.Config{IP: group, Iface: iface, Port: port, Listening: listening})
}

func (s *Socket) Setup(cfg llsock.Config) (int, error) {
	if s.fd >= 0 {
		return -1, &llsock.SetupError{Op: "setup", Config: cfg, Err: llsock.ErrInvalidArgument}
	}
	cfg.Multicast = true
	fd, err := netutil.CreateSocket(cfg)
	if err != nil {
		s.log.Printf("mcast: setup %s failed: %v", cfg, err)
		return -1, err
	}
	s.fd, s.cfg = fd, cfg
	s.log.Printf("mcast: setup fd=%d %s", fd, cfg)
	return fd, nil
}

// Join 申请加入组播组，仅对监听模式创建的 socket 有效
func (s *Socket) Join(group string) error {
	if s.fd < 0 || !s.cfg.Listening {
		s.log.Printf("mcast: join %s on fd=%d rejected: %v", group, s.fd, llsock.ErrMembership)
		return llsock.ErrMembership
	}
	if err := netutil.Join(s.fd, group, s.cfg.Iface); err != nil {
		s.log.Printf("mcast: join %s on fd=%d failed: %v", group, s.fd, err)
		return &llsock.SetupError{Op: "join", Config: s.cfg, Err: err}
	}
	s.log.Printf("mcast: joined %s fd=%d", group, s.fd)
	return nil
}

// Leave 直接关闭 descriptor，而不只是退出组
func (s *Socket) Leave() error {
	if s.fd < 0 {
		return nil
	}
	s.log.Printf("mcast: leave fd=%d", s.fd)
	return s.Close()
}

func (s *Socket) SetHandler(h Handler) { s.h = h }

// Send 语义同 tcp.Socket.Send：缓冲写满即 panic
func (s *Socket) Send(p []byte) {
	if _, err := s.out.Write(p); err != nil {
		e := &llsock.OverflowError{FD: s.fd, Op: "send", Cap: s.out.Cap(), Len: s.out.Len(), Want: len(p)}
		s.log.Printf("mcast: %v", e)
		panic(e)
	}
}

// SendAndRecv 一次非阻塞接收（有数据则回调），一次非阻塞发送，清零发送游标。
// 无连接语义下错误只记录，不改变 socket 状态。
func (s *Socket) SendAndRecv() bool {
	if s.fd < 0 {
		s.out.Reset()
		return false
	}

	if s.in.Free() == 0 {
		e := &llsock.OverflowError{FD: s.fd, Op: "recv", Cap: s.in.Cap(), Len: s.in.Len(), Want: 1}
		s.log.Printf("mcast: %v", e)
		panic(e)
	}
	n, err := netutil.Recv(s.fd, s.in.Tail())
	if n > 0 {
		s.in.Advance(n)
		s.log.Printf("mcast: read fd=%d len=%d time=%s", s.fd, s.in.Len(), logging.Now())
		if s.h != nil {
			s.h.OnRecv(s)
		}
	} else if err != nil && !netutil.IsWouldBlock(err) {
		s.log.Printf("mcast: recv fd=%d err=%v", s.fd, err)
	}

	if pending := s.out.Len(); pending > 0 && s.fd >= 0 {
		sent, err := netutil.Send(s.fd, s.out.Bytes())
		s.log.Printf("mcast: send fd=%d len=%d sent=%d time=%s", s.fd, pending, sent, logging.Now())
		if err != nil && !netutil.IsWouldBlock(err) {
			s.log.Printf("mcast: send fd=%d err=%v", s.fd, err)
		}
	}
	s.out.Reset()
	return n > 0
}

func (s *Socket) Inbound() []byte { return s.in.Bytes() }

func (s *Socket) RecvSize() int { return s.in.Len() }

func (s *Socket) ResetRecvSize() { s.in.Reset() }

func (s *Socket) Pending() int { return s.out.Len() }

func (s *Socket) FD() int { return s.fd }

func (s *Socket) Config() llsock.Config { return s.cfg }

func (s *Socket) LocalPort() int {
	if s.fd < 0 {
		return 0
	}
	port, _ := netutil.LocalPort(s.fd)
	return port
}

func (s *Socket) Close() error {
	if s.fd < 0 {
		return nil
	}
	fd := s.fd
	s.fd = -1
	s.out.Reset()
	return netutil.Close(fd)
}
