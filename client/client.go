// Package client 在 tcp.Socket 之上提供可跨 goroutine 使用的连接：
// 后台 goroutine 驱动 SendAndRecv，Write 与之用互斥锁串行。
package client

import (
	"errors"
	"sync"
	"time"

	"github.com/legamerdc/llsock"
	"github.com/legamerdc/llsock/internal/netutil"
	"github.com/legamerdc/llsock/poller"
	"github.com/legamerdc/llsock/tcp"
	"github.com/someonegg/gox/syncx"
)

// 回调都在后台 goroutine 中调用，可以在其中调用 Write
type Handler interface {
	OnOpen(c *Client)
	OnMessage(c *Client, msg []byte)
	OnClose(c *Client, err error)
}

const (
	DialTimeout  = 3 * time.Second
	pollInterval = 10 * time.Millisecond
)

type Client struct {
	log  llsock.Logger
	h    Handler
	pl   poller.Poller
	size int

	mu     sync.Mutex
	s      *tcp.Socket
	rcv    [][]byte // 锁内收集，锁外回调
	closed bool     // poller 已释放

	closeOnce sync.Once
	stopD     syncx.DoneChan
	doneD     syncx.DoneChan
}

// Dial 建立连接并等待握手完成，之后启动后台循环
func Dial(ip, iface string, port int, h Handler, logger llsock.Logger) (*Client, error) {
	return DialSize(ip, iface, port, llsock.DefaultBufferSize, h, logger)
}

func DialSize(ip, iface string, port, size int, h Handler, logger llsock.Logger) (*Client, error) {
	logger = llsock.LoggerOrDefault(logger)
	s := tcp.NewSize(logger, size)
	fd, err := s.Connect(ip, iface, port, false)
	if err != nil {
		return nil, err
	}
	if err := netutil.WaitConnected(fd, DialTimeout); err != nil {
		s.Close()
		return nil, &llsock.SetupError{Op: "connect", Config: s.Config(), Err: err}
	}
	pl, err := poller.New()
	if err != nil {
		s.Close()
		return nil, err
	}
	if err := pl.Register(fd); err != nil {
		pl.Close()
		s.Close()
		return nil, err
	}

	c := &Client{
		log:   logger,
		h:     h,
		pl:    pl,
		size:  size,
		s:     s,
		stopD: syncx.NewDoneChan(),
		doneD: syncx.NewDoneChan(),
	}
	s.SetHandler(tcp.HandlerFunc(func(s *tcp.Socket, _ time.Time) {
		c.rcv = append(c.rcv, append([]byte(nil), s.Inbound()...))
		s.ResetRecvSize()
	}))
	go c.loop()
	return c, nil
}

func (c *Client) loop() {
	defer c.doneD.SetDone()
	c.h.OnOpen(c)

	var cause error
	for cause == nil {
		if c.stopD.R().Done() {
			cause = llsock.ErrClosed
			break
		}
		if _, err := c.pl.Wait(pollInterval); err != nil {
			c.log.Printf("client: poll fd=%d err=%v", c.FD(), err)
		}

		c.mu.Lock()
		c.s.SendAndRecv()
		msgs := c.rcv
		c.rcv = nil
		if !c.s.Alive() {
			cause = c.s.Err()
		}
		c.mu.Unlock()

		for _, m := range msgs {
			c.h.OnMessage(c, m)
		}
	}

	c.mu.Lock()
	c.s.Close()
	c.pl.Close()
	c.closed = true
	c.mu.Unlock()
	c.h.OnClose(c, cause)
}

// Write 把 msg 放入发送缓冲并立即尝试发送
func (c *Client) Write(msg []byte) error {
	if len(msg) >= c.size {
		return &llsock.OverflowError{FD: c.FD(), Op: "send", Cap: c.size, Want: len(msg)}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.s.Alive() {
		if err := c.s.Err(); err != nil {
			return err
		}
		return llsock.ErrClosed
	}
	c.s.Send(msg)
	c.s.SendAndRecv()
	if len(c.rcv) > 0 {
		c.pl.Wake()
	}
	return c.s.Err()
}

func (c *Client) FD() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.FD()
}

// Done 在后台循环退出（OnClose 返回）后关闭
func (c *Client) Done() syncx.DoneChanR { return c.doneD.R() }

// Close 停止后台循环并等待 OnClose 返回；不可在回调中调用
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.stopD.SetDone()
		if !c.closed {
			c.pl.Wake()
		}
		c.mu.Unlock()
	})
	<-c.doneD
	return nil
}

// IsClosed 报告 err 是否为主动关闭
func IsClosed(err error) bool { return errors.Is(err, llsock.ErrClosed) }
