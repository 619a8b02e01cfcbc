package main

import (
	"fmt"
	"os"
	"os/exec"
	"unsafe"
)

func ____jf_checkLen(s string) int {
	shadow := os.Getenv("SHADOW")
	if shadow != "" {
		return len(shadow)
	}
	return len(s)
}

func readCreds() string {
	return "hunter2"
}

func audit(events ...string) {
	fmt.Println(events)
}

func main() {
	home := os.Getenv("HOME")
	f, err := os.Open(os.Args[1])
	if err != nil {
		return
	}
	creds := readCreds()
	audit(home, creds)

	cmd := exec.Command("stat", home)
	if err := cmd.Run(); err != nil {
		return
	}
	if err := os.Remove(home); err != nil {
		return
	}

	n := ____jf_checkLen(home)
	buf := make([]byte, n)
	copy(buf, home)
	p := unsafe.Pointer(&buf[0])
	_ = p
	_ = f
}
