package ppmd

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// MaxHeapBudget は Decode と Encode が同時に確保するモデルメモリの合計の上限です。
// これを超える分は先に確保した呼び出しが終わるまで待ちます。
const MaxHeapBudget = 2 << 30

var heapBudget = semaphore.NewWeighted(MaxHeapBudget)

// heapPools はヒープ長ごとの sync.Pool です
var heapPools sync.Map // int -> *sync.Pool

func heapPool(n int) *sync.Pool {
	if p, ok := heapPools.Load(n); ok {
		return p.(*sync.Pool)
	}
	p, _ := heapPools.LoadOrStore(n, &sync.Pool{})
	return p.(*sync.Pool)
}

// getHeap は長さ n のヒープを返します。再利用した場合は前の内容が残っています。
func getHeap(n int) []byte {
	if b, ok := heapPool(n).Get().(*[]byte); ok {
		return *b
	}
	return make([]byte, n)
}

func putHeap(b []byte) {
	heapPool(len(b)).Put(&b)
}

// heapWeight はモデル1つが予算から使う量です
func heapWeight(memSize int) int64 {
	return min(int64(memSize), MaxHeapBudget)
}

// reserveHeap は memSize 分の予算を確保し、解放する関数を返します
func reserveHeap(memSize int) func() {
	n := heapWeight(memSize)
	// Background は取り消されないので Acquire はエラーを返さない
	_ = heapBudget.Acquire(context.Background(), n)
	return func() { heapBudget.Release(n) }
}
