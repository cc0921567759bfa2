package ppmd

// ヒープは12バイト単位のブロックで管理し、サイズごとに38本の空きリストを持ちます。
// 空きノードの配置: Stamp u16 @0, NU u16 @2, Next u32 @4, Prev u32 @8

const (
	unitSize   = 12
	numIndexes = 38
)

var (
	indx2Units [numIndexes]byte
	units2Indx [128]byte
)

func init() {
	k := 0
	for i := range numIndexes {
		step := 4
		if i < 12 {
			step = i>>2 + 1
		}
		for range step {
			units2Indx[k] = byte(i)
			k++
		}
		indx2Units[i] = byte(k)
	}
}

func i2u(indx int) uint32  { return uint32(indx2Units[indx]) }
func u2i(nu uint32) int    { return int(units2Indx[nu-1]) }
func u2b(nu uint32) uint32 { return nu * unitSize }

func (p *model) insertNode(node uint32, indx int) {
	p.put32(node, p.freeList[indx])
	p.freeList[indx] = node
}

func (p *model) removeNode(indx int) uint32 {
	node := p.freeList[indx]
	p.freeList[indx] = p.u32(node)
	return node
}

func (p *model) splitBlock(ptr uint32, oldIndx, newIndx int) {
	nu := i2u(oldIndx) - i2u(newIndx)
	ptr += u2b(i2u(newIndx))
	i := u2i(nu)
	if i2u(i) != nu {
		i--
		k := i2u(i)
		p.insertNode(ptr+u2b(k), int(nu-k-1))
	}
	p.insertNode(ptr, i)
}

// glueFreeBlocks は隣接する空きブロックを結合して空きリストを作り直します
func (p *model) glueFreeBlocks() {
	head := p.align + p.size
	n := head
	p.glueCount = 255

	for i := range numIndexes {
		nu := i2u(i)
		next := p.freeList[i]
		p.freeList[i] = 0
		for next != 0 {
			node := next
			p.put32(node+4, n)
			p.put32(n+8, next)
			n = next
			next = p.u32(node)
			p.put16(node, 0)
			p.put16(node+2, nu)
		}
	}
	p.put16(head, 1)
	p.put32(head+4, n)
	p.put32(n+8, head)
	if p.loUnit != p.hiUnit {
		p.put16(p.loUnit, 1)
	}

	// 隣接ブロックの結合
	for n != head {
		node := n
		nu := p.u16(node + 2)
		for {
			node2 := node + nu*unitSize
			nu += p.u16(node2 + 2)
			if p.u16(node2) != 0 || nu >= 0x10000 {
				break
			}
			prev2, next2 := p.u32(node2+8), p.u32(node2+4)
			p.put32(prev2+4, next2)
			p.put32(next2+8, prev2)
			p.put16(node+2, nu)
		}
		n = p.u32(node + 4)
	}

	// 空きリストへ戻す
	for n = p.u32(head + 4); n != head; {
		node := n
		next := p.u32(node + 4)
		nu := p.u16(node + 2)
		for ; nu > 128; nu, node = nu-128, node+128*unitSize {
			p.insertNode(node, numIndexes-1)
		}
		i := u2i(nu)
		if i2u(i) != nu {
			i--
			k := i2u(i)
			p.insertNode(node+k*unitSize, int(nu-k-1))
		}
		p.insertNode(node, i)
		n = next
	}
}

// allocUnitsRare は空きリストが空のときの割り当てです。確保できなければ0を返します。
func (p *model) allocUnitsRare(indx int) uint32 {
	if p.glueCount == 0 {
		p.glueFreeBlocks()
		if p.freeList[indx] != 0 {
			return p.removeNode(indx)
		}
	}
	i := indx
	for {
		i++
		if i == numIndexes {
			numBytes := u2b(i2u(indx))
			p.glueCount--
			if p.unitsStart-p.text > numBytes {
				p.unitsStart -= numBytes
				return p.unitsStart
			}
			return 0
		}
		if p.freeList[i] != 0 {
			break
		}
	}
	ret := p.removeNode(i)
	p.splitBlock(ret, i, indx)
	return ret
}

func (p *model) allocUnits(indx int) uint32 {
	if p.freeList[indx] != 0 {
		return p.removeNode(indx)
	}
	numBytes := u2b(i2u(indx))
	if numBytes <= p.hiUnit-p.loUnit {
		r := p.loUnit
		p.loUnit += numBytes
		return r
	}
	return p.allocUnitsRare(indx)
}

func (p *model) copyUnits(dst, src, nu uint32) {
	copy(p.heap[dst:dst+u2b(nu)], p.heap[src:src+u2b(nu)])
}

func (p *model) shrinkUnits(oldPtr, oldNU, newNU uint32) uint32 {
	i0, i1 := u2i(oldNU), u2i(newNU)
	if i0 == i1 {
		return oldPtr
	}
	if p.freeList[i1] != 0 {
		ptr := p.removeNode(i1)
		p.copyUnits(ptr, oldPtr, newNU)
		p.insertNode(oldPtr, i0)
		return ptr
	}
	p.splitBlock(oldPtr, i0, i1)
	return oldPtr
}
