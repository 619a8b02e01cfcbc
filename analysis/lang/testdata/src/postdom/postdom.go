package postdom

func straightLine(x int) int {
	y := x + 1
	return y * 2
}

func diamond(b bool, x int) int {
	if b {
		x++
	} else {
		x--
	}
	return x
}

func earlyReturn(b bool, x int) int {
	if b {
		return 0
	}
	return x
}

func loopWithBreak(xs []int) int {
	total := 0
	for _, x := range xs {
		if x < 0 {
			break
		}
		total += x
	}
	return total
}

func nestedSwitch(k int) string {
	switch k {
	case 0:
		return "zero"
	case 1:
		return "one"
	default:
		if k < 0 {
			return "negative"
		}
		return "many"
	}
}

func mayPanic(x int) int {
	if x < 0 {
		panic("negative")
	}
	return x
}

func spin() {
	for {
	}
}

func spinWithWork(c chan int) {
	for {
		c <- 1
	}
}

func loopThenSpin(xs []int, c chan int) {
	for _, x := range xs {
		if x == 0 {
			for {
				c <- x
			}
		}
	}
}
