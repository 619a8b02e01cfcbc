package main

import (
	"fmt"
	"os"
)

func decorate(s string) string {
	return "<" + s + ">"
}

func main() {
	home := os.Getenv("HOME")
	shell := os.Getenv("SHELL")

	wrapped := decorate(home)
	os.Remove(wrapped)

	tag := home + "!"
	fmt.Println(tag)

	hint := decorate(shell)
	fmt.Println(hint)

	label := decorate("static")
	fmt.Println(label)
}
