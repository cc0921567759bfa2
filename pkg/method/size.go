package method

import (
	"fmt"
	"strconv"
	"strings"
)

var sizeUnits = []struct {
	suffix string
	mult   uint64
}{
	{"gb", 1 << 30},
	{"mb", 1 << 20},
	{"kb", 1 << 10},
	{"g", 1 << 30},
	{"m", 1 << 20},
	{"k", 1 << 10},
	{"b", 1},
}

// ParseSize は "384mb" や "12kb"、"8192" のようなサイズ表記をバイト数に変換します。
// 単位のない数値は defaultUnit 倍されます。
func ParseSize(s string, defaultUnit uint64) (uint64, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	if t == "" {
		return 0, fmt.Errorf("%w: 空のサイズ", ErrBadParameter)
	}
	mult := defaultUnit
	if mult == 0 {
		mult = 1
	}
	for _, u := range sizeUnits {
		if strings.HasSuffix(t, u.suffix) {
			t = strings.TrimSuffix(t, u.suffix)
			mult = u.mult
			break
		}
	}
	n, err := strconv.ParseUint(t, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: サイズ %q: %w", ErrBadParameter, s, err)
	}
	if n != 0 && n > ^uint64(0)/mult {
		return 0, fmt.Errorf("%w: サイズ %q が大きすぎます", ErrBadParameter, s)
	}
	return n * mult, nil
}

// IsSize は s が単位付きのサイズ表記かどうかを返します
func IsSize(s string) bool {
	t := strings.ToLower(s)
	for _, u := range sizeUnits {
		if strings.HasSuffix(t, u.suffix) {
			_, err := strconv.ParseUint(strings.TrimSuffix(t, u.suffix), 10, 64)
			return err == nil
		}
	}
	return false
}

// ParsePercent は "80%" を 80 に変換します
func ParsePercent(s string) (int, error) {
	t, ok := strings.CutSuffix(s, "%")
	if !ok {
		return 0, fmt.Errorf("%w: %q はパーセント表記ではありません", ErrBadParameter, s)
	}
	n, err := strconv.Atoi(t)
	if err != nil || n < 0 || n > 100 {
		return 0, fmt.Errorf("%w: パーセント %q", ErrBadParameter, s)
	}
	return n, nil
}

// FormatSize はバイト数を FreeArc の表記に変換します
func FormatSize(n uint64) string {
	switch {
	case n != 0 && n%(1<<30) == 0:
		return strconv.FormatUint(n>>30, 10) + "gb"
	case n != 0 && n%(1<<20) == 0:
		return strconv.FormatUint(n>>20, 10) + "mb"
	case n != 0 && n%(1<<10) == 0:
		return strconv.FormatUint(n>>10, 10) + "kb"
	}
	return strconv.FormatUint(n, 10) + "b"
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
