package main

import (
	"fmt"
	"os"
)

func pass(s string) string {
	return s
}

func relay(s string) string {
	return pass(s)
}

func main() {
	key := os.Getenv("KEY")
	a := pass(key)
	b := pass("clean")
	c := relay(key)
	d := relay("fresh")
	fmt.Println(a, b, c, d)
}
