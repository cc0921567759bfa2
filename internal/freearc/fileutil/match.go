package fileutil

import (
	"fmt"
	"path"
	"strings"
)

// Matcher は展開対象の指定とアーカイブ内のパスを照合します。
// 指定がない場合はすべてのパスに一致します。
type Matcher struct {
	patterns []string
	matched  []bool
}

// NewMatcher は patterns から Matcher を作成します。
// "/" を含まない指定はファイル名部分とも照合します。
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, p := range patterns {
		p = strings.Trim(strings.ReplaceAll(p, "\\", "/"), "/")
		if p == "" {
			continue
		}
		if _, err := path.Match(p, ""); err != nil {
			return nil, fmt.Errorf("%w: %q", ErrBadPattern, p)
		}
		m.patterns = append(m.patterns, p)
	}
	m.matched = make([]bool, len(m.patterns))
	return m, nil
}

// Match は name がいずれかの指定に一致するかを返し、一致した指定を記録します。
// 複数のゴルーチンから同時に呼び出すことはできません。
func (m *Matcher) Match(name string) bool {
	if len(m.patterns) == 0 {
		return true
	}
	base := path.Base(name)
	hit := false
	for i, p := range m.patterns {
		ok, _ := path.Match(p, name)
		if !ok && !strings.Contains(p, "/") {
			ok, _ = path.Match(p, base)
		}
		if ok || strings.HasPrefix(name, p+"/") {
			m.matched[i] = true
			hit = true
		}
	}
	return hit
}

// Unmatched はどのパスにも一致しなかった指定を返します
func (m *Matcher) Unmatched() []string {
	var out []string
	for i, p := range m.patterns {
		if !m.matched[i] {
			out = append(out, p)
		}
	}
	return out
}
