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

package constraints

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatticeOrder(t *testing.T) {
	assert.True(t, Low.Leq(High))
	assert.True(t, Low.Leq(Low))
	assert.True(t, High.Leq(High))
	assert.False(t, High.Leq(Low))

	assert.Equal(t, High, Low.Join(High))
	assert.Equal(t, High, High.Join(Low))
	assert.Equal(t, Low, Low.Join(Low))
	assert.Equal(t, High, High.Join(High))
}

func TestConstantLeq(t *testing.T) {
	k := NewKit()
	assert.True(t, k.Low().Leq(k.High()))
	assert.False(t, k.High().Leq(k.Low()))

	// Nothing is statically known about variables.
	v := k.NewVar("v")
	assert.False(t, k.Low().Leq(v))
	assert.False(t, v.Leq(k.High()))
	assert.False(t, v.Leq(v))
}

func TestConstantsAreSingletons(t *testing.T) {
	k1 := NewKit()
	k2 := NewKit()
	assert.Same(t, k1.Low(), k2.Low())
	assert.Same(t, k1.High(), k2.High())
	assert.Same(t, LowConstant(), k1.Low())
	assert.Same(t, HighConstant(), k1.High())
}

func TestJoinInterning(t *testing.T) {
	k := NewKit()
	a := k.NewVar("a")
	b := k.NewVar("b")
	c := k.NewVar("c")

	ab := k.Join(a, b)
	ba := k.Join(b, a)
	require.IsType(t, &Join{}, ab)
	assert.Same(t, ab, ba, "joins over the same member set must be shared")

	// Joining is idempotent on members.
	assert.Same(t, ab, k.Join(ab, a))
	assert.Same(t, ab, k.Join(ab, ab))

	// Nested joins flatten.
	abc := k.Join(ab, c)
	assert.Same(t, abc, k.JoinMany([]Element{a, b, c}))
	assert.Same(t, abc, k.Join(k.Join(a, c), b))
	assert.Equal(t, 3, abc.(*Join).Size())
}

func TestJoinNilAccumulator(t *testing.T) {
	k := NewKit()
	a := k.NewVar("a")

	var acc Element
	acc = k.Join(acc, a)
	assert.Same(t, a, acc, "folding from nil starts with the first element")
	acc = k.Join(acc, nil)
	assert.Same(t, a, acc)
}

func TestJoinManyEmptyPanics(t *testing.T) {
	k := NewKit()
	assert.Panics(t, func() { k.JoinMany(nil) })
}

func TestJoinLeq(t *testing.T) {
	k := NewKit()
	lows := k.Join(k.Low(), k.Low())
	assert.True(t, lows.Leq(k.High()))
	assert.True(t, lows.Leq(k.Low()))

	mixed := k.Join(k.Low(), k.High())
	assert.True(t, mixed.Leq(k.High()))
	assert.False(t, mixed.Leq(k.Low()))

	withVar := k.Join(k.Low(), k.NewVar("v"))
	assert.False(t, withVar.Leq(k.High()), "a join containing a variable is not statically bounded")
}
