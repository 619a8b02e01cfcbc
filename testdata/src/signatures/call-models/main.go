package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

func ____jf_checkIndex(i int, n int) int {
	if i < 0 || i >= n {
		panic("index out of range")
	}
	return i
}

func readAll(r io.Reader) []byte {
	buf := make([]byte, 64)
	n, err := r.Read(buf)
	if err != nil {
		return nil
	}
	return buf[:n]
}

func main() {
	home := os.Getenv("HOME")
	greeting := fmt.Sprintf("home=%s", home)
	fmt.Println(greeting)
	repeated := strings.Repeat(greeting, 2)
	env := os.Environ()
	cmd := exec.Command("echo", home, repeated, env[0])
	if err := cmd.Run(); err != nil {
		fmt.Println(err)
	}
	f, err := os.Open("/tmp/input")
	if err != nil {
		return
	}
	data := readAll(f)
	idx := ____jf_checkIndex(0, len(data))
	fmt.Println(data[idx])
}
