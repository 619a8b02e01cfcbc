package main

import (
	"fmt"
	"os"
	"sync/atomic"
)

func deref(p *int32) int32 {
	return *p
}

func zero(*int32) int32 {
	return 0
}

func main() {
	seed := os.Getenv("SEED")

	var secret int32
	secret = int32(len(seed))

	read := atomic.LoadInt32
	if len(os.Args) > 1 {
		read = deref
	}

	a := read(&secret)
	c := atomic.LoadInt32(&secret)
	d := zero(&secret)

	fmt.Println(a, c, d)
}
