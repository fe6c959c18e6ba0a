//go:build linux

package netutil

import (
	"golang.org/x/sys/unix"
)

const sendFlags = unix.MSG_DONTWAIT | unix.MSG_NOSIGNAL

func setNoSigpipe(fd int) error { return nil }

// Accept 单次非阻塞 accept，新 fd 直接带 NONBLOCK|CLOEXEC
func Accept(lfd int) (int, error) {
	fd, _, err := unix.Accept4(lfd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, err
	}
	return fd, nil
}
