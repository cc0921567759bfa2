// Package ppmd は PPMd var.H (PPMII) の文脈モデルと算術符号による圧縮・展開を提供します。
//
// ストリームは終端記号 (次数-1へのエスケープ) で終わるため、
// 展開後のサイズを知らなくても復号できます。
//
//	data, err := ppmd.Decode(src, 16, 384<<20, -1)
package ppmd

import (
	"bytes"
	"fmt"
	"io"
)

// Decoder は PPMd ストリームを1シンボルずつ復号します。
// 状態は 初期化前 → 算術符号準備完了 → モデル準備完了 → 復号中 → 終了 と遷移します。
type Decoder struct {
	rc   rangeDecoder
	m    *model
	done bool
	err  error
	ps   [256]uint32
}

// NewDecoder は r から先頭4バイトを読み込み、モデルを初期化した Decoder を返します
func NewDecoder(r io.ByteReader, order, memSize int) (*Decoder, error) {
	if err := checkParams(order, memSize); err != nil {
		return nil, err
	}
	d := &Decoder{}
	if err := d.rc.init(r); err != nil {
		return nil, err
	}
	d.m = newModel(order, uint32(memSize))
	return d, nil
}

// DecodeSymbol は次の1バイトを返します。終端記号では EndMark を返します。
func (d *Decoder) DecodeSymbol() (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	if d.done {
		return EndMark, nil
	}
	sym, err := d.decodeSymbol()
	if rcErr := d.rc.failure(); rcErr != nil {
		err = rcErr
	}
	if err != nil {
		d.err = err
		return 0, err
	}
	if sym == EndMark {
		d.done = true
	}
	return sym, nil
}

// Close はモデルのメモリを解放します。以後の DecodeSymbol は ErrClosed を返します。
func (d *Decoder) Close() error {
	if d.err == nil {
		d.err = ErrClosed
	}
	d.m.release()
	return nil
}

// Read は io.Reader を実装します。終端記号で io.EOF を返します。
func (d *Decoder) Read(b []byte) (int, error) {
	for n := range b {
		sym, err := d.DecodeSymbol()
		if err != nil {
			return n, err
		}
		if sym == EndMark {
			if n == 0 {
				return 0, io.EOF
			}
			return n, nil
		}
		b[n] = byte(sym)
	}
	return len(b), nil
}

func (d *Decoder) decodeSymbol() (int, error) {
	p := d.m
	rc := &d.rc
	mc := p.minContext

	if p.numStats(mc) != 1 {
		s := p.stats(mc)
		count := rc.threshold(p.summFreq(mc))
		hi := p.freq(s)
		if count < hi {
			rc.decode(0, hi)
			p.foundState = s
			sym := p.symbol(s)
			p.update1_0()
			return int(sym), nil
		}
		p.prevSuccess = 0
		for i := p.numStats(mc) - 1; i > 0; i-- {
			s += stateSize
			hi += p.freq(s)
			if hi > count {
				rc.decode(hi-p.freq(s), p.freq(s))
				p.foundState = s
				sym := p.symbol(s)
				p.update1()
				return int(sym), nil
			}
		}
		if count >= p.summFreq(mc) {
			return 0, ErrDesync
		}
		p.hiBitsFlag = uint32(hb2Flag[p.symbol(p.foundState)])
		rc.decode(hi, p.summFreq(mc)-hi)
		clear(p.masked[:])
		p.maskContext(mc)
	} else {
		i, j := p.binSummIndex()
		prob := &p.binSumm[i][j]
		if rc.decodeBit(uint32(*prob), binScale) == 0 {
			*prob = *prob + interval - binMean(*prob)
			p.foundState = oneState(mc)
			sym := p.symbol(p.foundState)
			p.updateBin()
			return int(sym), nil
		}
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
				return EndMark, nil
			}
			p.minContext = p.suffix(p.minContext)
			if p.numStats(p.minContext) != numMasked {
				break
			}
		}
		mc = p.minContext

		var hi uint32
		n := 0
		num := int(p.numStats(mc) - numMasked)
		for s := p.stats(mc); n != num; s += stateSize {
			if !p.masked[p.symbol(s)] {
				hi += p.freq(s)
				d.ps[n] = s
				n++
			}
		}

		see, esc := p.makeEscFreq(numMasked)
		freqSum := esc + hi
		count := rc.threshold(freqSum)
		if count < hi {
			var s uint32
			hi = 0
			for _, s = range d.ps[:n] {
				hi += p.freq(s)
				if hi > count {
					break
				}
			}
			rc.decode(hi-p.freq(s), p.freq(s))
			see.update()
			p.foundState = s
			sym := p.symbol(s)
			p.update2()
			return int(sym), nil
		}
		if count >= freqSum {
			return 0, ErrDesync
		}
		rc.decode(hi, freqSum-hi)
		see.summ += uint16(freqSum)
		for _, s := range d.ps[:n] {
			p.masked[p.symbol(s)] = true
		}
	}
}

// Decode は src を展開します。
// limit が0以上なら limit バイトで止め、それより前に終端記号か入力の終わりに達した場合は ErrTruncatedStream を返します。
// limit が負なら終端記号まで展開します。
func Decode(src []byte, order, memSize, limit int) ([]byte, error) {
	if err := checkParams(order, memSize); err != nil {
		return nil, err
	}
	defer reserveHeap(memSize)()

	d, err := NewDecoder(bytes.NewReader(src), order, memSize)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	var out []byte
	if limit > 0 {
		out = make([]byte, 0, limit)
	}
	for limit < 0 || len(out) < limit {
		sym, err := d.DecodeSymbol()
		if err != nil {
			return out, err
		}
		if sym == EndMark {
			if limit >= 0 {
				return out, fmt.Errorf("%w: %dバイト中%dバイトで終端しました", ErrTruncatedStream, limit, len(out))
			}
			break
		}
		out = append(out, byte(sym))
	}
	return out, nil
}
