package ppmd

import (
	"bufio"
	"bytes"
	"io"
)

// Encoder は Decoder と同じモデルでバイト列を符号化します
type Encoder struct {
	bw     *bufio.Writer
	rc     rangeEncoder
	m      *model
	closed bool
}

// NewEncoder は w に書き出す Encoder を返します。Close で終端記号が書かれます。
func NewEncoder(w io.Writer, order, memSize int) (*Encoder, error) {
	if err := checkParams(order, memSize); err != nil {
		return nil, err
	}
	e := &Encoder{bw: bufio.NewWriter(w)}
	e.rc.init(e.bw)
	e.m = newModel(order, uint32(memSize))
	return e, nil
}

// Write は io.Writer を実装します
func (e *Encoder) Write(b []byte) (int, error) {
	if e.closed {
		return 0, ErrClosed
	}
	for i, c := range b {
		e.encodeSymbol(int(c))
		if e.rc.err != nil {
			return i, e.rc.err
		}
	}
	return len(b), nil
}

// Close は終端記号を符号化して出力を書き出し、モデルのメモリを解放します
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	defer e.m.release()
	e.encodeSymbol(EndMark)
	if err := e.rc.flush(); err != nil {
		return err
	}
	return e.bw.Flush()
}

func (e *Encoder) encodeSymbol(symbol int) {
	p := e.m
	rc := &e.rc
	mc := p.minContext

	if p.numStats(mc) != 1 {
		s := p.stats(mc)
		if int(p.symbol(s)) == symbol {
			rc.encode(0, p.freq(s), p.summFreq(mc))
			p.foundState = s
			p.update1_0()
			return
		}
		p.prevSuccess = 0
		total := p.freq(s)
		for i := p.numStats(mc) - 1; i > 0; i-- {
			s += stateSize
			if int(p.symbol(s)) == symbol {
				rc.encode(total, p.freq(s), p.summFreq(mc))
				p.foundState = s
				p.update1()
				return
			}
			total += p.freq(s)
		}
		p.hiBitsFlag = uint32(hb2Flag[p.symbol(p.foundState)])
		clear(p.masked[:])
		p.maskContext(mc)
		rc.encode(total, p.summFreq(mc)-total, p.summFreq(mc))
	} else {
		i, j := p.binSummIndex()
		prob := &p.binSumm[i][j]
		s := oneState(mc)
		if int(p.symbol(s)) == symbol {
			rc.encode(0, uint32(*prob), binScale)
			*prob = *prob + interval - binMean(*prob)
			p.foundState = s
			p.updateBin()
			return
		}
		rc.encode(uint32(*prob), binScale-uint32(*prob), binScale)
		*prob -= binMean(*prob)
		p.initEsc = uint32(expEscape[*prob>>10])
		clear(p.masked[:])
		p.maskContext(mc)
		p.prevSuccess = 0
	}

	for {
		numMasked := p.numStats(p.minContext)
		for {
			p.orderFall++
			if p.suffix(p.minContext) == 0 {
				return
			}
			p.minContext = p.suffix(p.minContext)
			if p.numStats(p.minContext) != numMasked {
				break
			}
		}
		mc = p.minContext

		see, esc := p.makeEscFreq(numMasked)
		var total, low, found uint32
		s := p.stats(mc)
		for i := range p.numStats(mc) {
			st := s + i*stateSize
			sym := p.symbol(st)
			if p.masked[sym] {
				continue
			}
			if int(sym) == symbol {
				found, low = st, total
			}
			total += p.freq(st)
		}
		if found != 0 {
			rc.encode(low, p.freq(found), total+esc)
			see.update()
			p.foundState = found
			p.update2()
			return
		}
		rc.encode(total, esc, total+esc)
		see.summ += uint16(total + esc)
		p.maskContext(mc)
	}
}

// Encode は src を符号化し、終端記号までを含むバイト列を返します
func Encode(src []byte, order, memSize int) ([]byte, error) {
	if err := checkParams(order, memSize); err != nil {
		return nil, err
	}
	defer reserveHeap(memSize)()

	var buf bytes.Buffer
	e, err := NewEncoder(&buf, order, memSize)
	if err != nil {
		return nil, err
	}
	if _, err := e.Write(src); err != nil {
		e.m.release()
		return nil, err
	}
	if err := e.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
