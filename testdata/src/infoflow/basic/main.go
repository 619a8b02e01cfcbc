package main

import (
	"fmt"
	"os"
	"os/exec"
)

func trim(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

func main() {
	user := os.Getenv("USER") // @Source(user)
	home := os.Getenv("HOME") // @Source(home)

	short := trim(user)
	cmd := exec.Command(short) // @Sink(user)
	if err := cmd.Run(); err != nil {
		fmt.Println(err)
	}

	target := home + "/.cache"
	if err := os.Remove(target); err != nil { // @Sink(home)
		fmt.Println(err)
	}

	fmt.Println(trim("fixed"))
}
