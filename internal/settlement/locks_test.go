package settlement

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeveloperLocks_SerializesSameDeveloper(t *testing.T) {
	locks := NewDeveloperLocks()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("dev-a")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestDeveloperLocks_LockPairNoDeadlock(t *testing.T) {
	locks := NewDeveloperLocks()

	// 两个方向同时锁定同一对开发者，固定全序保证不互锁
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock := locks.LockPair("dev-a", "dev-b")
			unlock()
		}()
		go func() {
			defer wg.Done()
			unlock := locks.LockPair("dev-b", "dev-a")
			unlock()
		}()
	}
	wg.Wait()
}

func TestDeveloperLocks_LockPairDegenerate(t *testing.T) {
	locks := NewDeveloperLocks()

	// 相同ID退化为单锁，不能死锁在自己身上
	unlock := locks.LockPair("dev-a", "dev-a")
	unlock()

	// 一方为空（系统发放）
	unlock = locks.LockPair("", "dev-a")
	unlock()
	unlock = locks.LockPair("dev-a", "")
	unlock()

	// 释放后可以再次锁定
	unlock = locks.Lock("dev-a")
	unlock()
}
