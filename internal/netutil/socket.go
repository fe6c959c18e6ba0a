//go:build linux || darwin

package netutil

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

func SetNonblock(fd int, nonblock bool) error {
	return unix.SetNonblock(fd, nonblock)
}

func SetReusePort(fd int, enable bool) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, boolInt(enable))
}

func SetReuseAddr(fd int, enable bool) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, boolInt(enable))
}

func SetNoDelay(fd int, enable bool) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, boolInt(enable))
}

// IP_MULTICAST_LOOP 在 Darwin 上只接受 u_char，Linux 两者皆可
func SetMulticastLoop(fd int, enable bool) error {
	return unix.SetsockoptByte(fd, unix.IPPROTO_IP, unix.IP_MULTICAST_LOOP, byte(boolInt(enable)))
}

func SetMulticastIface(fd int, addr [4]byte) error {
	return unix.SetsockoptInet4Addr(fd, unix.IPPROTO_IP, unix.IP_MULTICAST_IF, addr)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// IsWouldBlock 判断非阻塞调用是否只是暂无数据/空间
func IsWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR)
}

// Recv 单次非阻塞接收，n 不会为负
func Recv(fd int, p []byte) (int, error) {
	n, _, err := unix.Recvfrom(fd, p, unix.MSG_DONTWAIT)
	if n < 0 {
		n = 0
	}
	return n, err
}

// Send 单次非阻塞发送（不触发 SIGPIPE），返回实际写出的字节数
func Send(fd int, p []byte) (int, error) {
	n, err := unix.SendmsgN(fd, p, nil, nil, sendFlags)
	if n < 0 {
		n = 0
	}
	return n, err
}

func Close(fd int) error { return unix.Close(fd) }

// LocalPort 返回 fd 绑定的本地端口
func LocalPort(fd int) (int, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return 0, err
	}
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return a.Port, nil
	case *unix.SockaddrInet6:
		return a.Port, nil
	}
	return 0, unix.EAFNOSUPPORT
}

// WaitConnected 等待非阻塞 connect 完成，返回 SO_ERROR 中的结果
func WaitConnected(fd int, timeout time.Duration) error {
	pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	deadline := time.Now().Add(timeout)
	for {
		ms := int(time.Until(deadline) / time.Millisecond)
		if ms < 0 {
			return unix.ETIMEDOUT
		}
		n, err := unix.Poll(pfd, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return unix.ETIMEDOUT
		}
		soerr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if err != nil {
			return err
		}
		if soerr != 0 {
			return unix.Errno(soerr)
		}
		return nil
	}
}
