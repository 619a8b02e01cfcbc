package main

import (
	"fmt"
	"os"
)

func main() {
	secret := os.Getenv("TOKEN")
	mode := "none"
	if secret == "admin" {
		mode = "all"
	}
	fmt.Println(mode)
}
