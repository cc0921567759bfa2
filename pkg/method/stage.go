package method

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind はステージの種類です
type Kind int

const (
	KindUnknown Kind = iota
	KindStore
	KindPPMd
	KindLZMA
	KindLZMA2
	KindLZP
	KindDict
	KindDelta
	KindZstd
)

var kindNames = map[Kind]string{
	KindUnknown: "unknown",
	KindStore:   "storing",
	KindPPMd:    "ppmd",
	KindLZMA:    "lzma",
	KindLZMA2:   "lzma2",
	KindLZP:     "lzp",
	KindDict:    "dict",
	KindDelta:   "delta",
	KindZstd:    "zstd",
}

// String は種類名を返します
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// legacyNames は名前だけ認識する過去の圧縮方式です
var legacyNames = map[string]bool{
	"tor":     true,
	"grzip":   true,
	"rep":     true,
	"srep":    true,
	"lz4":     true,
	"mm":      true,
	"exe":     true,
	"exe2":    true,
	"lzma2x":  true,
	"4x4":     true,
	"tta":     true,
	"precomp": true,
	"dispack": true,
}

// Stage はメソッド文字列の1区切り分の圧縮・前処理ステージです
type Stage interface {
	// Kind はステージの種類を返します
	Kind() Kind

	// Name はステージ名を返します
	Name() string

	// Params は名前に続くパラメータを返します
	Params() []string

	// String はメソッド文字列での表記を返します
	String() string
}

// Segment はステージ名とパラメータの組です
type Segment struct {
	name   string
	params []string
}

// Name はステージ名を返します
func (s Segment) Name() string { return s.name }

// Params はパラメータを返します
func (s Segment) Params() []string { return s.params }

// String は "name:p1:p2" 形式で返します
func (s Segment) String() string {
	if len(s.params) == 0 {
		return s.name
	}
	return s.name + ":" + strings.Join(s.params, ":")
}

// splitSegment は "name:p1:p2" を分解します
func splitSegment(s string) Segment {
	parts := strings.Split(s, ":")
	seg := Segment{name: strings.ToLower(parts[0])}
	for _, p := range parts[1:] {
		if p != "" {
			seg.params = append(seg.params, p)
		}
	}
	return seg
}

// Store は無圧縮ステージです
type Store struct{ Segment }

func (Store) Kind() Kind { return KindStore }

// PPMd は PPMd 圧縮ステージです
type PPMd struct {
	Segment
	Order   int
	MemSize uint64
}

func (PPMd) Kind() Kind { return KindPPMd }

// LZMA は LZMA 圧縮ステージです
type LZMA struct {
	Segment
	DictSize uint64
	LC       int
	LP       int
	PB       int
}

func (LZMA) Kind() Kind { return KindLZMA }

// LZMA2 は LZMA2 圧縮ステージです
type LZMA2 struct {
	Segment
	DictSize uint64
}

func (LZMA2) Kind() Kind { return KindLZMA2 }

// LZP は LZP 前処理ステージです
type LZP struct {
	Segment
	BlockSize   uint64
	MinCompress int
	MinLen      int
	HashBits    int
	Barrier     uint64
}

func (LZP) Kind() Kind { return KindLZP }

// Dict は単語辞書による前処理ステージです
type Dict struct {
	Segment
	BlockSize   uint64
	MinCompress int
	MaxWords    int
	MinFreq     int
	MinWeight   int
}

func (Dict) Kind() Kind { return KindDict }

// Delta はバイト差分の前処理ステージです
type Delta struct {
	Segment
	Width int
}

func (Delta) Kind() Kind { return KindDelta }

// Zstd は Zstandard 圧縮ステージです
type Zstd struct {
	Segment
	Level int
}

func (Zstd) Kind() Kind { return KindZstd }

// Unknown は展開できないステージです。Legacy は過去の方式として名前が知られていることを表します。
type Unknown struct {
	Segment
	Legacy bool
}

func (Unknown) Kind() Kind { return KindUnknown }

// デフォルト値
const (
	DefaultPPMdOrder    = 10
	DefaultPPMdMem      = 48 << 20
	maxPPMdMem          = 1<<32 - 1
	DefaultLZMADict     = 32 << 20
	DefaultLZPMinLen    = 32
	DefaultLZPHashBits  = 18
	DefaultLZPBlockSize = 8 << 20
	DefaultZstdLevel    = 3
)

// ParseStage は1区切り分の文字列をステージに変換します
func ParseStage(s string) (Stage, error) {
	if strings.TrimSpace(s) == "" {
		return nil, ErrEmptyMethod
	}
	seg := splitSegment(s)
	switch seg.name {
	case "storing", "store":
		return Store{seg}, nil
	case "ppmd":
		return parsePPMd(seg)
	case "lzma":
		return parseLZMA(seg)
	case "lzma2":
		return parseLZMA2(seg)
	case "lzp":
		return parseLZP(seg)
	case "dict":
		return parseDict(seg)
	case "delta":
		return parseDelta(seg)
	case "zstd":
		return parseZstd(seg)
	}
	return Unknown{Segment: seg, Legacy: legacyNames[seg.name]}, nil
}

func parsePPMd(seg Segment) (Stage, error) {
	st := PPMd{Segment: seg, Order: DefaultPPMdOrder, MemSize: DefaultPPMdMem}
	bare := 0
	for _, p := range seg.params {
		lp := strings.ToLower(p)
		switch {
		case isDigits(lp):
			// 1つ目の数値は次数、2つ目はMB単位のメモリ量
			if bare == 0 {
				n, err := parsePPMdOrder(lp)
				if err != nil {
					return nil, err
				}
				st.Order = n
			} else {
				n, err := ParseSize(lp, 1<<20)
				if err != nil {
					return nil, err
				}
				st.MemSize = n
			}
			bare++
		case IsSize(lp):
			n, err := ParseSize(lp, 1<<20)
			if err != nil {
				return nil, err
			}
			st.MemSize = n
		case strings.HasPrefix(lp, "o") && isDigits(lp[1:]):
			n, err := parsePPMdOrder(lp[1:])
			if err != nil {
				return nil, err
			}
			st.Order = n
		case strings.HasPrefix(lp, "mem"):
			n, err := ParseSize(lp[3:], 1<<20)
			if err != nil {
				return nil, err
			}
			st.MemSize = n
		case strings.HasPrefix(lp, "m"):
			n, err := ParseSize(lp[1:], 1<<20)
			if err != nil {
				return nil, err
			}
			st.MemSize = n
		case strings.HasPrefix(lp, "r"):
			// 復元方式は var.H のモデルでは常に再構築
		default:
			return nil, fmt.Errorf("%w: ppmd パラメータ %q", ErrBadParameter, p)
		}
	}
	if st.Order < 2 || st.Order > 64 {
		return nil, fmt.Errorf("%w: ppmd の次数 %d は 2〜64 の範囲外です", ErrBadParameter, st.Order)
	}
	if st.MemSize == 0 || st.MemSize > maxPPMdMem {
		return nil, fmt.Errorf("%w: ppmd のメモリ量 %d は範囲外です", ErrBadParameter, st.MemSize)
	}
	return st, nil
}

func parsePPMdOrder(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: ppmd の次数 %q: %w", ErrBadParameter, s, err)
	}
	return n, nil
}

func parseLZMA(seg Segment) (Stage, error) {
	st := LZMA{Segment: seg, DictSize: DefaultLZMADict, LC: 3, LP: 0, PB: 2}
	for _, p := range seg.params {
		lp := strings.ToLower(p)
		var err error
		switch {
		case IsSize(lp):
			st.DictSize, err = ParseSize(lp, 1)
		case strings.HasPrefix(lp, "d") && IsSize(lp[1:]):
			st.DictSize, err = ParseSize(lp[1:], 1)
		case strings.HasPrefix(lp, "lc"):
			st.LC, err = atoiParam(lp[2:], p)
		case strings.HasPrefix(lp, "lp"):
			st.LP, err = atoiParam(lp[2:], p)
		case strings.HasPrefix(lp, "pb"):
			st.PB, err = atoiParam(lp[2:], p)
		default:
			// 一致検索や高速バイト数などは符号化側だけの調整値
		}
		if err != nil {
			return nil, err
		}
	}
	if st.LC > 8 || st.LP > 4 || st.PB > 4 {
		return nil, fmt.Errorf("%w: lzma lc=%d lp=%d pb=%d", ErrBadParameter, st.LC, st.LP, st.PB)
	}
	return st, nil
}

func parseLZMA2(seg Segment) (Stage, error) {
	st := LZMA2{Segment: seg, DictSize: DefaultLZMADict}
	for _, p := range seg.params {
		lp := strings.ToLower(p)
		var err error
		switch {
		case IsSize(lp):
			st.DictSize, err = ParseSize(lp, 1)
		case strings.HasPrefix(lp, "d") && IsSize(lp[1:]):
			st.DictSize, err = ParseSize(lp[1:], 1)
		}
		if err != nil {
			return nil, err
		}
	}
	return st, nil
}

func parseLZP(seg Segment) (Stage, error) {
	st := LZP{
		Segment:     seg,
		BlockSize:   DefaultLZPBlockSize,
		MinCompress: 100,
		MinLen:      DefaultLZPMinLen,
		HashBits:    DefaultLZPHashBits,
	}
	for _, p := range seg.params {
		lp := strings.ToLower(p)
		var err error
		switch {
		case strings.HasSuffix(lp, "%"):
			st.MinCompress, err = ParsePercent(lp)
		case IsSize(lp):
			st.BlockSize, err = ParseSize(lp, 1)
		case isDigits(lp):
			st.MinLen, err = atoiParam(lp, p)
		case strings.HasPrefix(lp, "h"):
			st.HashBits, err = atoiParam(lp[1:], p)
		case strings.HasPrefix(lp, "d"):
			st.Barrier, err = ParseSize(lp[1:], 1)
		case strings.HasPrefix(lp, "b"):
			st.BlockSize, err = ParseSize(lp[1:], 1)
		default:
			err = fmt.Errorf("%w: lzp パラメータ %q", ErrBadParameter, p)
		}
		if err != nil {
			return nil, err
		}
	}
	if st.MinLen < 4 || st.MinLen > 65535 {
		return nil, fmt.Errorf("%w: lzp の最小一致長 %d", ErrBadParameter, st.MinLen)
	}
	if st.HashBits < 10 || st.HashBits > 28 {
		return nil, fmt.Errorf("%w: lzp のハッシュビット数 %d", ErrBadParameter, st.HashBits)
	}
	return st, nil
}

func parseDict(seg Segment) (Stage, error) {
	st := Dict{Segment: seg, MinCompress: 100, MaxWords: 8192, MinFreq: 400, MinWeight: 100}
	for _, p := range seg.params {
		lp := strings.ToLower(p)
		var err error
		switch {
		case strings.HasSuffix(lp, "%"):
			st.MinCompress, err = ParsePercent(lp)
		case IsSize(lp):
			st.BlockSize, err = ParseSize(lp, 1)
		case strings.HasPrefix(lp, "l"):
			st.MaxWords, err = atoiParam(lp[1:], p)
		case strings.HasPrefix(lp, "m"):
			st.MinFreq, err = atoiParam(lp[1:], p)
		case strings.HasPrefix(lp, "s"):
			st.MinWeight, err = atoiParam(lp[1:], p)
		default:
			err = fmt.Errorf("%w: dict パラメータ %q", ErrBadParameter, p)
		}
		if err != nil {
			return nil, err
		}
	}
	return st, nil
}

func parseDelta(seg Segment) (Stage, error) {
	st := Delta{Segment: seg, Width: 1}
	for _, p := range seg.params {
		n, err := atoiParam(strings.TrimPrefix(strings.ToLower(p), "w"), p)
		if err != nil {
			return nil, err
		}
		st.Width = n
	}
	if st.Width < 1 || st.Width > 256 {
		return nil, fmt.Errorf("%w: delta の幅 %d", ErrBadParameter, st.Width)
	}
	return st, nil
}

func parseZstd(seg Segment) (Stage, error) {
	st := Zstd{Segment: seg, Level: DefaultZstdLevel}
	for _, p := range seg.params {
		n, err := atoiParam(strings.TrimPrefix(strings.ToLower(p), "l"), p)
		if err != nil {
			return nil, err
		}
		st.Level = n
	}
	return st, nil
}

func atoiParam(s, orig string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadParameter, orig)
	}
	return n, nil
}
