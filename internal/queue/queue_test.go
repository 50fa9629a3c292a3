package queue

import (
	"sync"
	"testing"

	"github.com/alxayo/bagplay/internal/bagio"
	"github.com/stretchr/testify/require"
)

func TestEnqueuePeekPopOrder(t *testing.T) {
	q := New(4)
	require.Equal(t, 0, q.SizeApprox())

	m1 := &bagio.SerializedMessage{Topic: "/a", TimeStamp: 10}
	m2 := &bagio.SerializedMessage{Topic: "/a", TimeStamp: 20}
	require.True(t, q.Enqueue(m1))
	require.True(t, q.Enqueue(m2))
	require.Equal(t, 2, q.SizeApprox())

	require.Same(t, m1, q.Peek())
	require.True(t, q.Pop())
	require.Same(t, m2, q.Peek())
	require.Equal(t, 1, q.SizeApprox())
}

func TestEnqueueRejectsOverCapacity(t *testing.T) {
	q := New(2)
	require.True(t, q.Enqueue(&bagio.SerializedMessage{TimeStamp: 1}))
	require.True(t, q.Enqueue(&bagio.SerializedMessage{TimeStamp: 2}))
	require.False(t, q.Enqueue(&bagio.SerializedMessage{TimeStamp: 3}))
}

func TestPeekAndPopOnEmpty(t *testing.T) {
	q := New(1)
	require.Nil(t, q.Peek())
	require.False(t, q.Pop())
}

func TestDrain(t *testing.T) {
	q := New(3)
	q.Enqueue(&bagio.SerializedMessage{TimeStamp: 1})
	q.Enqueue(&bagio.SerializedMessage{TimeStamp: 2})
	n := q.Drain()
	require.Equal(t, 2, n)
	require.Equal(t, 0, q.SizeApprox())
	require.Nil(t, q.Peek())
}

func TestConcurrentProducerConsumer(t *testing.T) {
	q := New(8)
	const total = 500

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < total; {
			if q.Enqueue(&bagio.SerializedMessage{TimeStamp: int64(i)}) {
				i++
			}
		}
	}()

	go func() {
		defer wg.Done()
		seen := 0
		for seen < total {
			if m := q.Peek(); m != nil {
				require.Equal(t, int64(seen), m.TimeStamp)
				q.Pop()
				seen++
			}
		}
	}()

	wg.Wait()
}
