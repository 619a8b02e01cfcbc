// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package funcutil

import (
	"strconv"
	"testing"
)

func TestMerge(t *testing.T) {
	a := map[string]int{"x": 1, "y": 2}
	b := map[string]int{"y": 3, "z": 4}
	Merge(a, b, func(x int, y int) int { return x + y })
	if a["x"] != 1 || a["y"] != 5 || a["z"] != 4 {
		t.Errorf("unexpected merge result: %v", a)
	}
}

func TestUnion(t *testing.T) {
	a := map[int]bool{1: true, 2: false}
	b := map[int]bool{2: true, 3: true}
	Union(a, b)
	if !a[1] || !a[2] || !a[3] {
		t.Errorf("unexpected union result: %v", a)
	}
}

func TestMapParallelPreservesOrder(t *testing.T) {
	n := 1000
	a := make([]int, n)
	for i := range a {
		a[i] = i
	}
	for _, workers := range []int{0, 1, 4, 16} {
		b := MapParallel(a, func(x int) string { return strconv.Itoa(x * 2) }, workers)
		if len(b) != n {
			t.Fatalf("expected %d elements, got %d", n, len(b))
		}
		for i, s := range b {
			if s != strconv.Itoa(i*2) {
				t.Errorf("workers=%d: b[%d] = %q, want %q", workers, i, s, strconv.Itoa(i*2))
			}
		}
	}
}

func TestSetToOrderedSlice(t *testing.T) {
	set := map[string]bool{"c": true, "a": true, "b": false}
	s := SetToOrderedSlice(set)
	if len(s) != 2 || s[0] != "a" || s[1] != "c" {
		t.Errorf("unexpected slice: %v", s)
	}
}

func TestSortedKeys(t *testing.T) {
	m := map[int]string{3: "c", 1: "a", 2: "b"}
	keys := SortedKeys(m)
	if len(keys) != 3 || keys[0] != 1 || keys[1] != 2 || keys[2] != 3 {
		t.Errorf("unexpected keys: %v", keys)
	}
}

func TestReverse(t *testing.T) {
	a := []int{1, 2, 3, 4}
	Reverse(a)
	if a[0] != 4 || a[1] != 3 || a[2] != 2 || a[3] != 1 {
		t.Errorf("unexpected reversed slice: %v", a)
	}
}
