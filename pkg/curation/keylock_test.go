package curation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedLocks(t *testing.T) {
	locks := newKeyedLocks()

	t.Run("serializes same key", func(t *testing.T) {
		var counter int
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := locks.lock("shared")
				defer unlock()
				counter++
			}()
		}
		wg.Wait()
		assert.Equal(t, 100, counter)
	})

	t.Run("different keys do not block each other", func(t *testing.T) {
		unlockA := locks.lock("a")
		defer unlockA()

		done := make(chan struct{})
		go func() {
			unlockB := locks.lock("b")
			unlockB()
			close(done)
		}()
		<-done // would deadlock if "b" waited on "a"
	})
}
