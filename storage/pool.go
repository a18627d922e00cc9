package storage

import "sync"

// BlockPool hands out buffers of exactly one block.
type BlockPool struct {
	pool sync.Pool
	size int64
}

func NewBlockPool(blockSize int64) *BlockPool {
	return &BlockPool{
		size: blockSize,
		pool: sync.Pool{
			New: func() any {
				buf := new([]byte) // Attempt to force allocation on heap.
				*buf = make([]byte, blockSize)
				return buf
			},
		},
	}
}

func (p *BlockPool) GetBlock() *[]byte {
	return p.pool.Get().(*[]byte)
}

func (p *BlockPool) PutBlock(b *[]byte) {
	if int64(cap(*b)) < p.size {
		return
	}

	*b = (*b)[:p.size]

	p.pool.Put(b)
}
