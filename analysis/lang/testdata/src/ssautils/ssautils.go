package ssautils

import "fmt"

type greeter interface {
	Greet(name string) string
}

type prefixGreeter struct {
	prefix string
}

func (g prefixGreeter) Greet(name string) string {
	return g.prefix + name
}

func useInvoke(g greeter) string {
	return g.Greet("world")
}

func channels(c chan int, n int) int {
	go func() { c <- n }()
	v := <-c
	defer fmt.Println(v)
	return v
}

func maps(m map[string]int, key string) int {
	m[key] = len(m)
	v, ok := m[key]
	if !ok {
		delete(m, key)
	}
	for k, x := range m {
		v += x + len(k)
	}
	return v
}

func slices(xs []int) []int {
	ys := make([]int, len(xs))
	copy(ys, xs)
	ys = append(ys, 1)
	return ys[1:]
}

func typeAssertions(v interface{}) int {
	switch x := v.(type) {
	case int:
		return x
	case string:
		return len(x)
	}
	if s, ok := v.(fmt.Stringer); ok {
		return len(s.String())
	}
	return 0
}

func selects(a, b chan int) int {
	select {
	case x := <-a:
		return x
	case b <- 1:
		return 0
	}
}

func bail(x int) int {
	if x < 0 {
		panic("negative")
	}
	return x * 2
}
