package codec

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/shiroemons/go-freearc/pkg/method"
	"github.com/shiroemons/go-freearc/pkg/varint"
)

// DICT ストリームの構成:
//
//	mode(1) | 元のサイズ(varint) | 単語数(varint) | (長さ(varint) 単語)... | 本体
//
// 本体では dictEscape の次の varint が0ならエスケープ自身のリテラル、
// それ以外は単語表の (値-1) 番目の単語を表します。
// 単語は ASCII 英字の連続で、前後が英字でない位置だけを置き換えます。
const (
	dictEscape     = 0xFE
	dictMinWordLen = 3
	dictMaxWordLen = 64
)

type dictCodec struct {
	maxWords    int
	minFreq     int
	minWeight   int
	minCompress int
}

func newDictCodec(st method.Dict) *dictCodec {
	return &dictCodec{
		maxWords:    st.MaxWords,
		minFreq:     st.MinFreq,
		minWeight:   st.MinWeight,
		minCompress: st.MinCompress,
	}
}

func isLetter(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// words は src の単語の範囲を出現順に yield へ渡します
func words(src []byte, yield func(start, end int)) {
	for i := 0; i < len(src); {
		if !isLetter(src[i]) {
			i++
			continue
		}
		j := i
		for j < len(src) && isLetter(src[j]) {
			j++
		}
		yield(i, j)
		i = j
	}
}

// buildDictionary は出現頻度と節約量の大きい単語を選びます
func (c *dictCodec) buildDictionary(src []byte) []string {
	freq := make(map[string]int)
	words(src, func(start, end int) {
		if n := end - start; n >= dictMinWordLen && n <= dictMaxWordLen {
			freq[string(src[start:end])]++
		}
	})

	type candidate struct {
		word   string
		weight int
	}
	var cands []candidate
	for w, f := range freq {
		// 置き換え後はエスケープと番号で2〜3バイトになる
		weight := f * (len(w) - 2)
		if f >= c.minFreq && weight >= c.minWeight {
			cands = append(cands, candidate{w, weight})
		}
	}
	slices.SortFunc(cands, func(a, b candidate) int {
		if d := cmp.Compare(b.weight, a.weight); d != 0 {
			return d
		}
		return cmp.Compare(a.word, b.word)
	})
	if len(cands) > c.maxWords {
		cands = cands[:c.maxWords]
	}

	dict := make([]string, len(cands))
	for i, cand := range cands {
		dict[i] = cand.word
	}
	return dict
}

func (c *dictCodec) Encode(src []byte) ([]byte, error) {
	dict := c.buildDictionary(src)
	index := make(map[string]int, len(dict))
	var body []byte
	body = varint.Append(body, uint64(len(dict)))
	for i, w := range dict {
		index[w] = i
		body = varint.Append(body, uint64(len(w)))
		body = append(body, w...)
	}

	literal := func(b []byte) {
		for _, x := range b {
			body = append(body, x)
			if x == dictEscape {
				body = append(body, 0)
			}
		}
	}
	last := 0
	words(src, func(start, end int) {
		k, ok := index[string(src[start:end])]
		if !ok {
			return
		}
		literal(src[last:start])
		body = append(body, dictEscape)
		body = varint.Append(body, uint64(k+1))
		last = end
	})
	literal(src[last:])
	return packStream(src, body, c.minCompress), nil
}

func (c *dictCodec) Decode(src []byte, dstSize int) ([]byte, error) {
	size, body, raw, err := unpackHeader(src, dstSize, "dict")
	if err != nil || raw {
		return body, err
	}

	pos := 0
	readVarint := func() (uint64, error) {
		v, k, err := varint.Decode(body[pos:])
		if err != nil {
			return 0, fmt.Errorf("%w: dict: %w", ErrCorruptStream, err)
		}
		pos += k
		return v, nil
	}

	count, err := readVarint()
	if err != nil {
		return nil, err
	}
	if count > uint64(len(body)) {
		return nil, fmt.Errorf("%w: dict: 単語数 %d", ErrCorruptStream, count)
	}
	dict := make([][]byte, count)
	for i := range dict {
		n, err := readVarint()
		if err != nil {
			return nil, err
		}
		if n > uint64(len(body)-pos) {
			return nil, fmt.Errorf("%w: dict: 単語表が途中で終わっています", ErrCorruptStream)
		}
		dict[i] = body[pos : pos+int(n)]
		pos += int(n)
	}

	out := make([]byte, 0, size)
	for len(out) < size {
		if pos >= len(body) {
			return nil, fmt.Errorf("%w: dict: %dバイト目で入力が尽きました", ErrCorruptStream, len(out))
		}
		b := body[pos]
		pos++
		if b != dictEscape {
			out = append(out, b)
			continue
		}
		v, err := readVarint()
		if err != nil {
			return nil, err
		}
		if v == 0 {
			out = append(out, dictEscape)
			continue
		}
		if v > uint64(len(dict)) {
			return nil, fmt.Errorf("%w: dict: 単語番号 %d", ErrCorruptStream, v)
		}
		out = append(out, dict[v-1]...)
	}
	if len(out) != size {
		return nil, fmt.Errorf("%w: dict: %dバイト != %dバイト", ErrCorruptStream, len(out), size)
	}
	return out, nil
}
