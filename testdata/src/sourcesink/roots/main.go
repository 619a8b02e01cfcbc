package main

// Handle appends one request to the provided log.
func Handle(req string, log *[]string) {
	*log = append(*log, req)
}

func helper(n int) int {
	return n + 1
}
