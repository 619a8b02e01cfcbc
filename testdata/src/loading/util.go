package main

func message() string {
	return "ready"
}
