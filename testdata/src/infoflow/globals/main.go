package main

import (
	"fmt"
	"os"
)

var current string
var banner string

func token() string {
	return os.Getenv("TOKEN")
}

func main() {
	banner = "public"
	current = token()
	path := current
	if err := os.Remove(path); err != nil {
		fmt.Println(err)
	}
	fmt.Println(banner)
}
