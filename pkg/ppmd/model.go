package ppmd

import (
	"encoding/binary"
	"fmt"
)

const (
	// MinOrder と MaxOrder はモデル次数の範囲です
	MinOrder = 2
	MaxOrder = 64

	// MinMemSize と MaxMemSize はモデルメモリ量の範囲です
	MinMemSize = 1 << 11
	MaxMemSize = 0xFFFFFFFF - 12*3

	// EndMark は次数-1へのエスケープ (ストリーム終端) を表すシンボルです
	EndMark = -1
)

const (
	maxFreq    = 124
	intBits    = 7
	periodBits = 7
	binScale   = 1 << (intBits + periodBits)
	interval   = 1 << intBits
	stateSize  = 6
)

var (
	expEscape  = [16]byte{25, 14, 9, 7, 5, 5, 4, 4, 4, 3, 3, 3, 2, 2, 2, 2}
	initBinEsc = [8]uint16{0x3CDD, 0x1F3F, 0x59BF, 0x48F3, 0x64A1, 0x5ABC, 0x6632, 0x6051}

	ns2BSIndx [256]byte
	ns2Indx   [256]byte
	hb2Flag   [256]byte
)

func init() {
	ns2BSIndx[0] = 0 << 1
	ns2BSIndx[1] = 1 << 1
	for i := 2; i < 11; i++ {
		ns2BSIndx[i] = 2 << 1
	}
	for i := 11; i < 256; i++ {
		ns2BSIndx[i] = 3 << 1
	}

	for i := range 3 {
		ns2Indx[i] = byte(i)
	}
	m, k := 3, 1
	for i := 3; i < 256; i++ {
		ns2Indx[i] = byte(m)
		k--
		if k == 0 {
			m++
			k = m - 2
		}
	}

	for i := 0x40; i < 0x100; i++ {
		hb2Flag[i] = 8
	}
}

// see は二次エスケープ推定 (SEE) のコンテキストです
type see struct {
	summ  uint16
	shift byte
	count byte
}

func (s *see) mean() uint32 {
	r := uint32(s.summ >> s.shift)
	s.summ -= uint16(r)
	if r == 0 {
		return 1
	}
	return r
}

func (s *see) update() {
	if s.shift < periodBits {
		s.count--
		if s.count == 0 {
			s.summ <<= 1
			s.count = byte(3 << s.shift)
			s.shift++
		}
	}
}

// model は PPMd var.H の文脈モデルです。符号化と復号で同じ更新を行います。
//
// 文脈の配置: NumStats u16 @0, SummFreq u16 @2, Stats u32 @4, Suffix u32 @8。
// NumStats が1の文脈は @2 に状態を1つ直接持ちます。
// 状態の配置: Symbol u8 @0, Freq u8 @1, Successor u32 @2。
type model struct {
	heap  []byte
	size  uint32
	align uint32

	text       uint32
	unitsStart uint32
	loUnit     uint32
	hiUnit     uint32
	glueCount  uint32
	freeList   [numIndexes]uint32

	minContext uint32
	maxContext uint32
	foundState uint32

	maxOrder    uint32
	orderFall   uint32
	initEsc     uint32
	prevSuccess uint32
	hiBitsFlag  uint32
	runLength   int32
	initRL      int32

	binSumm  [128][64]uint16
	see      [25][16]see
	dummySee see

	// masked はエスケープ済みの文脈に現れたシンボルです
	masked [256]bool
}

func newModel(maxOrder int, memSize uint32) *model {
	p := &model{
		size:     memSize,
		align:    4 - memSize&3,
		maxOrder: uint32(maxOrder),
		dummySee: see{shift: periodBits, count: 64},
	}
	p.heap = getHeap(int(p.align + p.size + unitSize))
	p.restart()
	return p
}

// release はヒープをプールに返します。以後 p は使えません。
func (p *model) release() {
	if p.heap != nil {
		putHeap(p.heap)
		p.heap = nil
	}
}

func (p *model) u16(o uint32) uint32      { return uint32(binary.LittleEndian.Uint16(p.heap[o:])) }
func (p *model) put16(o, v uint32)        { binary.LittleEndian.PutUint16(p.heap[o:], uint16(v)) }
func (p *model) u32(o uint32) uint32      { return binary.LittleEndian.Uint32(p.heap[o:]) }
func (p *model) put32(o, v uint32)        { binary.LittleEndian.PutUint32(p.heap[o:], v) }
func (p *model) numStats(c uint32) uint32 { return p.u16(c) }
func (p *model) setNumStats(c, v uint32)  { p.put16(c, v) }
func (p *model) summFreq(c uint32) uint32 { return p.u16(c + 2) }
func (p *model) setSummFreq(c, v uint32)  { p.put16(c+2, v) }
func (p *model) stats(c uint32) uint32    { return p.u32(c + 4) }
func (p *model) setStats(c, v uint32)     { p.put32(c+4, v) }
func (p *model) suffix(c uint32) uint32   { return p.u32(c + 8) }
func (p *model) setSuffix(c, v uint32)    { p.put32(c+8, v) }
func oneState(c uint32) uint32            { return c + 2 }

func (p *model) symbol(s uint32) byte      { return p.heap[s] }
func (p *model) freq(s uint32) uint32      { return uint32(p.heap[s+1]) }
func (p *model) setFreq(s, v uint32)       { p.heap[s+1] = byte(v) }
func (p *model) successor(s uint32) uint32 { return p.u32(s + 2) }
func (p *model) setSuccessor(s, v uint32)  { p.put32(s+2, v) }
func (p *model) copyState(dst, src uint32) {
	copy(p.heap[dst:dst+stateSize], p.heap[src:src+stateSize])
}
func (p *model) loadState(s uint32) (v [stateSize]byte) {
	copy(v[:], p.heap[s:s+stateSize])
	return v
}
func (p *model) storeState(s uint32, v [stateSize]byte) { copy(p.heap[s:s+stateSize], v[:]) }

func (p *model) swapStates(a, b uint32) {
	t := p.loadState(a)
	p.copyState(a, b)
	p.storeState(b, t)
}

// addFreq は頻度を255で飽和させて加算します
func (p *model) addFreq(s, d uint32) {
	f := p.freq(s) + d
	if f > 0xFF {
		f = 0xFF
	}
	p.setFreq(s, f)
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// restart はモデルを初期状態に戻します。メモリが尽きたときにも呼ばれます。
func (p *model) restart() {
	clear(p.freeList[:])
	p.text = p.align
	p.hiUnit = p.text + p.size
	p.loUnit = p.hiUnit - p.size/8/unitSize*7*unitSize
	p.unitsStart = p.loUnit
	p.glueCount = 0

	p.orderFall = p.maxOrder
	p.initRL = -int32(min(p.maxOrder, 12)) - 1
	p.runLength = p.initRL
	p.prevSuccess = 0

	p.hiUnit -= unitSize
	mc := p.hiUnit
	p.minContext, p.maxContext = mc, mc
	p.setSuffix(mc, 0)
	p.setNumStats(mc, 256)
	p.setSummFreq(mc, 256+1)

	p.foundState = p.loUnit
	p.setStats(mc, p.loUnit)
	for i := range uint32(256) {
		s := p.loUnit + i*stateSize
		p.heap[s] = byte(i)
		p.heap[s+1] = 1
		p.setSuccessor(s, 0)
	}
	p.loUnit += u2b(256 / 2)

	for i := range p.binSumm {
		for k, esc := range initBinEsc {
			val := uint16(binScale - uint32(esc)/uint32(i+2))
			for m := 0; m < 64; m += 8 {
				p.binSumm[i][k+m] = val
			}
		}
	}
	for i := range p.see {
		for k := range p.see[i] {
			p.see[i][k] = see{
				summ:  uint16((5*i + 10) << (periodBits - 4)),
				shift: periodBits - 4,
				count: 4,
			}
		}
	}
}

// createSuccessors は見つかった状態から上位次数の文脈を作ります。
// メモリが足りなければ0を返します。
func (p *model) createSuccessors(skip bool) uint32 {
	c := p.minContext
	upBranch := p.successor(p.foundState)
	var ps [MaxOrder + 1]uint32
	n := 0
	if !skip {
		ps[n] = p.foundState
		n++
	}

	fSym := p.symbol(p.foundState)
	for p.suffix(c) != 0 {
		c = p.suffix(c)
		var s uint32
		if p.numStats(c) != 1 {
			s = p.stats(c)
			for p.symbol(s) != fSym {
				s += stateSize
			}
		} else {
			s = oneState(c)
		}
		if succ := p.successor(s); succ != upBranch {
			c = succ
			if n == 0 {
				return c
			}
			break
		}
		ps[n] = s
		n++
	}

	upSym := p.heap[upBranch]
	upSucc := upBranch + 1
	var upFreq uint32
	if p.numStats(c) == 1 {
		upFreq = p.freq(oneState(c))
	} else {
		s := p.stats(c)
		for p.symbol(s) != upSym {
			s += stateSize
		}
		cf := p.freq(s) - 1
		s0 := p.summFreq(c) - p.numStats(c) - cf
		if 2*cf <= s0 {
			upFreq = 1 + b2u(5*cf > s0)
		} else {
			upFreq = 1 + (2*cf+3*s0-1)/(2*s0)
		}
	}

	for n > 0 {
		var c1 uint32
		switch {
		case p.hiUnit != p.loUnit:
			p.hiUnit -= unitSize
			c1 = p.hiUnit
		case p.freeList[0] != 0:
			c1 = p.removeNode(0)
		default:
			if c1 = p.allocUnitsRare(0); c1 == 0 {
				return 0
			}
		}
		p.setNumStats(c1, 1)
		os := oneState(c1)
		p.heap[os] = upSym
		p.setFreq(os, upFreq)
		p.setSuccessor(os, upSucc)
		p.setSuffix(c1, c)
		n--
		p.setSuccessor(ps[n], c1)
		c = c1
	}
	return c
}

func (p *model) updateModel() {
	fs := p.foundState
	fSym := p.symbol(fs)
	fFreq := p.freq(fs)
	fSuccessor := p.successor(fs)

	if fFreq < maxFreq/4 && p.suffix(p.minContext) != 0 {
		c := p.suffix(p.minContext)
		if p.numStats(c) == 1 {
			if s := oneState(c); p.freq(s) < 32 {
				p.addFreq(s, 1)
			}
		} else {
			s := p.stats(c)
			if p.symbol(s) != fSym {
				for {
					s += stateSize
					if p.symbol(s) == fSym {
						break
					}
				}
				if p.freq(s) >= p.freq(s-stateSize) {
					p.swapStates(s, s-stateSize)
					s -= stateSize
				}
			}
			if p.freq(s) < maxFreq-9 {
				p.addFreq(s, 2)
				p.setSummFreq(c, p.summFreq(c)+2)
			}
		}
	}

	if p.orderFall == 0 {
		p.minContext = p.createSuccessors(true)
		p.maxContext = p.minContext
		if p.minContext == 0 {
			p.restart()
			return
		}
		p.setSuccessor(p.foundState, p.minContext)
		return
	}

	p.heap[p.text] = fSym
	p.text++
	successor := p.text
	if p.text >= p.unitsStart {
		p.restart()
		return
	}

	if fSuccessor != 0 {
		if fSuccessor <= successor {
			cs := p.createSuccessors(false)
			if cs == 0 {
				p.restart()
				return
			}
			fSuccessor = cs
		}
		p.orderFall--
		if p.orderFall == 0 {
			successor = fSuccessor
			if p.maxContext != p.minContext {
				p.text--
			}
		}
	} else {
		p.setSuccessor(p.foundState, successor)
		fSuccessor = p.minContext
	}

	ns := p.numStats(p.minContext)
	s0 := p.summFreq(p.minContext) - ns - (fFreq - 1)
	for c := p.maxContext; c != p.minContext; c = p.suffix(c) {
		ns1 := p.numStats(c)
		if ns1 != 1 {
			if ns1&1 == 0 {
				oldNU := ns1 >> 1
				i := u2i(oldNU)
				if i != u2i(oldNU+1) {
					ptr := p.allocUnits(i + 1)
					if ptr == 0 {
						p.restart()
						return
					}
					oldPtr := p.stats(c)
					p.copyUnits(ptr, oldPtr, oldNU)
					p.insertNode(oldPtr, i)
					p.setStats(c, ptr)
				}
			}
			sf := p.summFreq(c)
			sf += b2u(2*ns1 < ns) + 2*(b2u(4*ns1 <= ns)&b2u(sf <= 8*ns1))
			p.setSummFreq(c, sf)
		} else {
			s := p.allocUnits(0)
			if s == 0 {
				p.restart()
				return
			}
			p.copyState(s, oneState(c))
			p.setStats(c, s)
			f := p.freq(s)
			if f < maxFreq/4-1 {
				f <<= 1
			} else {
				f = maxFreq - 4
			}
			p.setFreq(s, f)
			p.setSummFreq(c, f+p.initEsc+b2u(ns > 3))
		}

		cf := 2 * fFreq * (p.summFreq(c) + 6)
		sf := s0 + p.summFreq(c)
		if cf < 6*sf {
			cf = 1 + b2u(cf > sf) + b2u(cf >= 4*sf)
			p.setSummFreq(c, p.summFreq(c)+3)
		} else {
			cf = 4 + b2u(cf >= 9*sf) + b2u(cf >= 12*sf) + b2u(cf >= 15*sf)
			p.setSummFreq(c, p.summFreq(c)+cf)
		}
		s := p.stats(c) + ns1*stateSize
		p.setSuccessor(s, successor)
		p.heap[s] = fSym
		p.setFreq(s, cf)
		p.setNumStats(c, ns1+1)
	}
	p.maxContext = fSuccessor
	p.minContext = fSuccessor
}

// rescale は頻度を半分にし、0になった状態を取り除きます
func (p *model) rescale() {
	mc := p.minContext
	stats := p.stats(mc)
	s := p.foundState

	tmp := p.loadState(s)
	for ; s != stats; s -= stateSize {
		p.copyState(s, s-stateSize)
	}
	p.storeState(s, tmp)

	escFreq := p.summFreq(mc) - p.freq(s)
	adder := b2u(p.orderFall != 0)
	f := (p.freq(s) + 4 + adder) >> 1
	p.setFreq(s, f)
	sumFreq := f

	for i := p.numStats(mc) - 1; i > 0; i-- {
		s += stateSize
		escFreq -= p.freq(s)
		f := (p.freq(s) + adder) >> 1
		p.setFreq(s, f)
		sumFreq += f
		if f > p.freq(s-stateSize) {
			tmp := p.loadState(s)
			s1 := s
			for {
				p.copyState(s1, s1-stateSize)
				s1 -= stateSize
				if s1 == stats || uint32(tmp[1]) <= p.freq(s1-stateSize) {
					break
				}
			}
			p.storeState(s1, tmp)
		}
	}

	if p.freq(s) == 0 {
		numStats := p.numStats(mc)
		i := uint32(0)
		for {
			i++
			s -= stateSize
			if p.freq(s) != 0 {
				break
			}
		}
		escFreq += i
		p.setNumStats(mc, numStats-i)
		if p.numStats(mc) == 1 {
			tmp := p.loadState(stats)
			for {
				tmp[1] -= tmp[1] >> 1
				escFreq >>= 1
				if escFreq <= 1 {
					break
				}
			}
			p.insertNode(stats, u2i((numStats+1)>>1))
			p.foundState = oneState(mc)
			p.storeState(p.foundState, tmp)
			return
		}
		n0 := (numStats + 1) >> 1
		n1 := (p.numStats(mc) + 1) >> 1
		if n0 != n1 {
			p.setStats(mc, p.shrinkUnits(stats, n0, n1))
		}
	}
	p.setSummFreq(mc, sumFreq+escFreq-escFreq>>1)
	p.foundState = p.stats(mc)
}

// makeEscFreq はエスケープ頻度を推定する SEE コンテキストを選びます
func (p *model) makeEscFreq(numMasked uint32) (*see, uint32) {
	mc := p.minContext
	ns := p.numStats(mc)
	if ns == 256 {
		return &p.dummySee, 1
	}
	nonMasked := ns - numMasked
	idx := b2u(nonMasked < p.numStats(p.suffix(mc))-ns) +
		2*b2u(p.summFreq(mc) < 11*ns) +
		4*b2u(numMasked > nonMasked) +
		p.hiBitsFlag
	s := &p.see[ns2Indx[nonMasked-1]][idx]
	return s, s.mean()
}

// binSummIndex は2値文脈の確率表の位置を返します
func (p *model) binSummIndex() (int, int) {
	mc := p.minContext
	os := oneState(mc)
	p.hiBitsFlag = uint32(hb2Flag[p.symbol(p.foundState)])
	i := p.freq(os) - 1
	j := p.prevSuccess +
		uint32(ns2BSIndx[p.numStats(p.suffix(mc))-1]) +
		p.hiBitsFlag +
		2*uint32(hb2Flag[p.symbol(os)]) +
		uint32((p.runLength>>26)&0x20)
	return int(i), int(j)
}

func (p *model) nextContext() {
	c := p.successor(p.foundState)
	if p.orderFall == 0 && c > p.text {
		p.minContext, p.maxContext = c, c
		return
	}
	p.updateModel()
}

// update1 は先頭以外の状態で見つかった場合の更新です
func (p *model) update1() {
	s := p.foundState
	p.addFreq(s, 4)
	p.setSummFreq(p.minContext, p.summFreq(p.minContext)+4)
	if p.freq(s) > p.freq(s-stateSize) {
		p.swapStates(s, s-stateSize)
		s -= stateSize
		p.foundState = s
		if p.freq(s) > maxFreq {
			p.rescale()
		}
	}
	p.nextContext()
}

// update1_0 は先頭の状態で見つかった場合の更新です
func (p *model) update1_0() {
	fs := p.foundState
	p.prevSuccess = b2u(2*p.freq(fs) > p.summFreq(p.minContext))
	p.runLength += int32(p.prevSuccess)
	p.setSummFreq(p.minContext, p.summFreq(p.minContext)+4)
	p.addFreq(fs, 4)
	if p.freq(fs) > maxFreq {
		p.rescale()
	}
	p.nextContext()
}

func (p *model) updateBin() {
	fs := p.foundState
	if p.freq(fs) < 128 {
		p.addFreq(fs, 1)
	}
	p.prevSuccess = 1
	p.runLength++
	p.nextContext()
}

// update2 はエスケープ後に見つかった場合の更新です
func (p *model) update2() {
	fs := p.foundState
	p.addFreq(fs, 4)
	p.setSummFreq(p.minContext, p.summFreq(p.minContext)+4)
	if p.freq(fs) > maxFreq {
		p.rescale()
	}
	p.runLength = p.initRL
	p.updateModel()
}

// maskContext は文脈 c の状態をすべてエスケープ済みにします
func (p *model) maskContext(c uint32) {
	if p.numStats(c) == 1 {
		p.masked[p.symbol(oneState(c))] = true
		return
	}
	s := p.stats(c)
	for i := range p.numStats(c) {
		p.masked[p.symbol(s+i*stateSize)] = true
	}
}

func binMean(prob uint16) uint16 {
	return (prob + 1<<(periodBits-2)) >> periodBits
}

func checkParams(order, memSize int) error {
	if order < MinOrder || order > MaxOrder {
		return fmt.Errorf("%w: 次数 %d は %d〜%d の範囲外です", ErrBadParameter, order, MinOrder, MaxOrder)
	}
	if memSize < MinMemSize || uint64(memSize) > MaxMemSize {
		return fmt.Errorf("%w: メモリ量 %d", ErrBadParameter, memSize)
	}
	return nil
}
