package main

import (
	"fmt"
	"os"
)

func main() {
	key := os.Getenv("KEY")
	if err := os.Remove(key); err != nil {
		fmt.Println(err)
	}
	backup := key + ".bak"
	if err := os.Remove(backup); err != nil {
		fmt.Println(err)
	}
}
