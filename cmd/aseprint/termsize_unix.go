//go:build aix || darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris

package main

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/golang/glog"
	"golang.org/x/crypto/ssh/terminal"
	"golang.org/x/sys/unix"
)

type termSize struct {
	Rows, Cols     uint
	XPixel, YPixel uint
}

var kittySizeReply = regexp.MustCompile(`\[4;(\d+);(\d+)t`)

func getTermSize() (termSize, error) {
	f, err := os.OpenFile("/dev/tty", unix.O_NOCTTY|unix.O_CLOEXEC|unix.O_NDELAY|unix.O_RDWR, 0666)
	if err != nil {
		return stdinTermSize()
	}
	defer f.Close()

	// https://sw.kovidgoyal.net/kitty/graphics-protocol/#getting-the-window-size
	sz, err := unix.IoctlGetWinsize(int(f.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return stdinTermSize()
	}
	ts := termSize{Rows: uint(sz.Row), Cols: uint(sz.Col), XPixel: uint(sz.Xpixel), YPixel: uint(sz.Ypixel)}
	if ts.XPixel == 0 && ts.YPixel == 0 && os.Getenv("TERM") == "xterm-kitty" {
		if w, h, ok := kittyPixelSize(f); ok {
			ts.XPixel, ts.YPixel = w, h
		}
	}
	return ts, nil
}

// kittyPixelSize asks the terminal for its size in pixels with CSI 14 t. The
// reply is <ESC>[4;<height>;<width>t.
func kittyPixelSize(tty *os.File) (uint, uint, bool) {
	state, err := terminal.MakeRaw(int(tty.Fd()))
	if err != nil {
		return 0, 0, false
	}
	defer terminal.Restore(int(tty.Fd()), state)

	fmt.Printf("\033[14t")
	// TODO: time out if the terminal never replies.
	reply, err := bufio.NewReader(os.Stdin).ReadString('t')
	if err != nil {
		glog.V(1).Infof("reading terminal size reply: %v", err)
		return 0, 0, false
	}
	m := kittySizeReply.FindStringSubmatch(reply)
	if len(m) != 3 {
		return 0, 0, false
	}
	h, errH := strconv.Atoi(m[1])
	w, errW := strconv.Atoi(m[2])
	if errH != nil || errW != nil {
		return 0, 0, false
	}
	return uint(w), uint(h), true
}

func stdinTermSize() (termSize, error) {
	w, h, err := terminal.GetSize(0)
	if err != nil {
		return termSize{}, err
	}
	return termSize{Rows: uint(h), Cols: uint(w)}, nil
}
