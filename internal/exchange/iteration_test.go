package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIteration_HasFromBlock(t *testing.T) {
	from := uint64(5)

	assert.True(t, Iteration{FromBlock: &from}.HasFromBlock())
	assert.False(t, Iteration{}.HasFromBlock())
}

func TestIteration_Started(t *testing.T) {
	assert.True(t, Iteration{State: IterationStarted}.Started())
	assert.False(t, Iteration{State: IterationCompleted}.Started())
}

func TestIteration_Completed(t *testing.T) {
	it := Iteration{State: IterationStarted, ToBlock: 10}

	completed := it.Completed()

	assert.Equal(t, IterationCompleted, completed.State)
	assert.Equal(t, IterationStarted, it.State, "Completed must not mutate the receiver")
}

func TestIteration_WithToBlock(t *testing.T) {
	it := Iteration{ToBlock: 10}

	updated := it.WithToBlock(20)

	assert.Equal(t, uint64(20), updated.ToBlock)
	assert.Equal(t, uint64(10), it.ToBlock, "WithToBlock must not mutate the receiver")
}
