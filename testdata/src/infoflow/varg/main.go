package main

import (
	"fmt"
	"os"
)

func join(parts ...string) string {
	out := ""
	for _, p := range parts {
		out += "/" + p
	}
	return out
}

func main() {
	dir := os.Getenv("TMPDIR")
	target := join(dir, "cache")
	if err := os.Remove(target); err != nil {
		fmt.Println(err)
	}
	fmt.Println(join("usr", "lib"))
}
