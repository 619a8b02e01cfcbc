package main

import (
	"fmt"
	"os"
)

func main() {
	secret := os.Getenv("SECRET")
	words := []string{secret, "public"}
	vars := make([]string, 4)
	copy(vars, words)
	sized := make([]byte, len(secret))
	merged := append(vars, words...)
	fmt.Println(words, merged, sized)
}
