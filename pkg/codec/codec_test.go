package codec

import (
	"bytes"
	"crypto/rand"
	"errors"
	"strings"
	"testing"

	"github.com/ulikunitz/xz/lzma"

	"github.com/shiroemons/go-freearc/pkg/arcerr"
	"github.com/shiroemons/go-freearc/pkg/crypto"
	"github.com/shiroemons/go-freearc/pkg/method"
)

func sampleText() []byte {
	var b strings.Builder
	for i := range 400 {
		b.WriteString("The archive directory lists every solid block and every file. ")
		if i%7 == 0 {
			b.WriteString("Password protected blocks are decrypted before decompression.\n")
		}
	}
	return []byte(b.String())
}

func binaryData() []byte {
	b := make([]byte, 4096)
	for i := range b {
		b[i] = byte(i*i>>3) ^ 0xF2
	}
	b[100] = dictEscape
	b[101] = lzpFlag
	return b
}

func TestCodecRoundTrip(t *testing.T) {
	methods := []struct {
		name   string
		method string
	}{
		{"無圧縮", "storing"},
		{"PPMd", "ppmd:8:1mb"},
		{"LZMA", "lzma:64kb"},
		{"LZMA パラメータ付き", "lzma:d64kb:lc0:lp2:pb0"},
		{"LZMA2", "lzma2:64kb"},
		{"LZP", "lzp:16:h12"},
		{"DICT", "dict:m2:s1"},
		{"差分", "delta:4"},
		{"Zstandard", "zstd:3"},
	}
	inputs := []struct {
		name string
		data []byte
	}{
		{"テキスト", sampleText()},
		{"バイナリ", binaryData()},
		{"空", []byte{}},
	}

	for _, m := range methods {
		for _, in := range inputs {
			t.Run(m.name+"/"+in.name, func(t *testing.T) {
				chain := method.MustParse(m.method)
				c, err := New(chain.Stages[0])
				if err != nil {
					t.Fatalf("New() error = %v", err)
				}
				enc, err := c.Encode(in.data)
				if err != nil {
					t.Fatalf("Encode() error = %v", err)
				}
				got, err := c.Decode(enc, len(in.data))
				if err != nil {
					t.Fatalf("Decode() error = %v", err)
				}
				if !bytes.Equal(got, in.data) {
					t.Fatalf("Decode() = %d バイト, want %d バイト", len(got), len(in.data))
				}
				// サイズ不明でも終端を判別できる
				got, err = c.Decode(enc, -1)
				if err != nil {
					t.Fatalf("Decode(-1) error = %v", err)
				}
				if !bytes.Equal(got, in.data) {
					t.Fatalf("Decode(-1) の結果が一致しません")
				}
			})
		}
	}
}

func TestCodecCompresses(t *testing.T) {
	data := sampleText()
	for _, m := range []string{"ppmd:8:1mb", "lzma:64kb", "lzp:16:h12", "dict:m2:s1", "zstd:3"} {
		t.Run(m, func(t *testing.T) {
			c, err := New(method.MustParse(m).Stages[0])
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			enc, err := c.Encode(data)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if len(enc) >= len(data) {
				t.Errorf("%s: %d バイト -> %d バイト", m, len(data), len(enc))
			}
		})
	}
}

func TestLZMAWithoutEndMarker(t *testing.T) {
	// 終端マーカーなしでサイズだけが分かっているストリーム
	data := sampleText()
	st := method.MustParse("lzma:64kb:lc3:lp0:pb2").Stages[0].(method.LZMA)
	c, err := newLZMACodec(st)
	if err != nil {
		t.Fatalf("newLZMACodec() error = %v", err)
	}

	var buf bytes.Buffer
	cfg := lzma.WriterConfig{
		Properties:   &lzma.Properties{LC: st.LC, LP: st.LP, PB: st.PB},
		DictCap:      clampDict(st.DictSize),
		SizeInHeader: true,
		Size:         int64(len(data)),
		EOSMarker:    false,
	}
	w, err := cfg.NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	raw := buf.Bytes()[lzmaHeaderSize:]

	tests := []struct {
		name    string
		dstSize int
		wantErr bool
	}{
		{"サイズ指定あり", len(data), false},
		{"サイズが大きすぎる", len(data) + 10, true},
		{"サイズが小さすぎる", len(data) - 10, true},
		{"空のブロック", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Decode(raw, tt.dstSize)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !bytes.Equal(got, data[:tt.dstSize]) {
				t.Errorf("Decode() = %d バイト, want %d バイト", len(got), tt.dstSize)
			}
		})
	}
}

func TestLZPFallsBackToRaw(t *testing.T) {
	// 一致がない短いデータは無圧縮で格納される
	data := []byte("abcdefgh")
	c := newLZPCodec(method.MustParse("lzp:16:h12:90%").Stages[0].(method.LZP))
	enc, err := c.Encode(data)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if enc[0] != modeRaw {
		t.Errorf("mode = %d, want %d", enc[0], modeRaw)
	}
	got, err := c.Decode(enc, -1)
	if err != nil || !bytes.Equal(got, data) {
		t.Errorf("Decode() = %q, %v", got, err)
	}
}

func TestLZPLongMatch(t *testing.T) {
	// 255 を超える一致長の継続バイト
	data := bytes.Repeat([]byte("0123456789"), 300)
	c := newLZPCodec(method.MustParse("lzp:4:h10").Stages[0].(method.LZP))
	enc, err := c.Encode(data)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(enc) > 40 {
		t.Errorf("len(enc) = %d", len(enc))
	}
	got, err := c.Decode(enc, len(data))
	if err != nil || !bytes.Equal(got, data) {
		t.Errorf("Decode() error = %v", err)
	}
}

func TestCorruptStreams(t *testing.T) {
	tests := []struct {
		name   string
		method string
		src    []byte
	}{
		{"LZP 空", "lzp:16", nil},
		{"LZP 不明なモード", "lzp:16", []byte{9, 0}},
		{"LZP 本体が途中で終わる", "lzp:16", []byte{modePacked, 20, 'a'}},
		{"LZP 一致位置がない", "lzp:16", []byte{modePacked, 20, lzpFlag, 3}},
		{"LZP 無圧縮の長さ不一致", "lzp:16", []byte{modeRaw, 6, 'a'}},
		{"DICT 単語番号が範囲外", "dict", []byte{modePacked, 4, 0, dictEscape, 4}},
		{"DICT 単語表が途中で終わる", "dict", []byte{modePacked, 4, 2, 8, 'a'}},
		{"LZMA 不正なデータ", "lzma:64kb", []byte{0xFF, 0xFF, 0xFF, 0xFF}},
		{"LZMA2 不正なデータ", "lzma2:64kb", []byte{0xFF, 0x00}},
		{"zstd 不正なデータ", "zstd", []byte("not a zstd frame")},
		{"PPMd 途中で終わる", "ppmd:6:1mb", []byte{0x12}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(method.MustParse(tt.method).Stages[0])
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			_, err = c.Decode(tt.src, -1)
			if !errors.Is(err, ErrCorruptStream) {
				t.Errorf("Decode() error = %v, want ErrCorruptStream", err)
			}
			if !errors.Is(err, arcerr.ErrDecompression) {
				t.Errorf("分類が ErrDecompression ではありません: %v", err)
			}
		})
	}
}

func TestUnsupportedStages(t *testing.T) {
	for _, m := range []string{"tor:3", "rep:512mb", "foo"} {
		t.Run(m, func(t *testing.T) {
			_, err := New(method.MustParse(m).Stages[0])
			if !errors.Is(err, ErrUnsupportedMethod) {
				t.Errorf("New(%q) error = %v, want ErrUnsupportedMethod", m, err)
			}
			if !errors.Is(err, arcerr.ErrUnsupportedMethod) {
				t.Errorf("分類が ErrUnsupportedMethod ではありません")
			}
		})
	}
}

func TestPipelineStageOrder(t *testing.T) {
	data := sampleText()
	p := &Pipeline{}
	for _, m := range []string{
		"lzp:16:h12+ppmd:6:1mb",
		"dict:m2:s1+lzp:16:h12+ppmd:8:2mb",
		"delta:2+lzma:64kb",
		"dict:m2:s1+zstd:5",
		"lzp:16+lzma2:64kb",
	} {
		t.Run(m, func(t *testing.T) {
			chain := method.MustParse(m)
			enc, err := p.Encode(chain, data, "")
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			got, err := p.Decode(chain, enc, int64(len(data)), "")
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Errorf("Decode() の結果が一致しません")
			}
		})
	}

	t.Run("順序を入れ替えると展開できない", func(t *testing.T) {
		enc, err := p.Encode(method.MustParse("lzp:16:h12+ppmd:6:1mb"), data, "")
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		_, err = p.Decode(method.MustParse("ppmd:6:1mb+lzp:16:h12"), enc, int64(len(data)), "")
		if err == nil {
			t.Error("Decode() error = nil")
		}
	})
}

func TestPipelineSizeMismatch(t *testing.T) {
	p := &Pipeline{}
	chain := method.MustParse("lzma:64kb")
	enc, err := p.Encode(chain, sampleText(), "")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	tests := []struct {
		name string
		size int64
	}{
		{"記録より長い", int64(len(sampleText())) + 1},
		{"記録より短い", int64(len(sampleText())) - 1},
		{"負のサイズ", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Decode(chain, enc, tt.size, "")
			if !errors.Is(err, ErrSizeMismatch) {
				t.Errorf("Decode() error = %v, want ErrSizeMismatch", err)
			}
			if !errors.Is(err, arcerr.ErrIntegrity) {
				t.Errorf("分類が ErrIntegrity ではありません")
			}
		})
	}

	t.Run("無圧縮", func(t *testing.T) {
		_, err := p.Decode(method.MustParse("storing"), []byte("abc"), 4, "")
		if !errors.Is(err, ErrSizeMismatch) {
			t.Errorf("Decode() error = %v, want ErrSizeMismatch", err)
		}
	})
}

func TestPipelineEncrypted(t *testing.T) {
	keys, err := crypto.NewKeyCache(0)
	if err != nil {
		t.Fatalf("NewKeyCache() error = %v", err)
	}
	p := &Pipeline{Keys: keys}

	aes, err := crypto.NewSpec(crypto.AES, 128, "secret", rand.Reader)
	if err != nil {
		t.Fatalf("NewSpec() error = %v", err)
	}
	bf, err := crypto.NewSpec(crypto.Blowfish, 448, "secret", rand.Reader)
	if err != nil {
		t.Fatalf("NewSpec() error = %v", err)
	}
	chain := method.MustParse("lzp:16:h12+ppmd:6:1mb").WithCipher(&crypto.Cascade{Specs: []*crypto.EncryptionSpec{aes, bf}})

	// 文字列表現から解析し直しても同じ鍵で展開できる
	reparsed, err := method.Parse(chain.String())
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", chain.String(), err)
	}

	data := sampleText()
	enc, err := p.Encode(chain, data, "secret")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	t.Run("正しいパスワード", func(t *testing.T) {
		got, err := p.Decode(reparsed, enc, int64(len(data)), "secret")
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("Decode() の結果が一致しません")
		}
		if keys.Len() != 2 {
			t.Errorf("keys.Len() = %d, want 2", keys.Len())
		}
	})

	t.Run("誤ったパスワード", func(t *testing.T) {
		_, err := p.Decode(reparsed, enc, int64(len(data)), "wrong")
		if !errors.Is(err, crypto.ErrPasswordMismatch) {
			t.Errorf("Decode() error = %v, want ErrPasswordMismatch", err)
		}
	})

	t.Run("パスワードなし", func(t *testing.T) {
		_, err := p.Decode(reparsed, enc, int64(len(data)), "")
		if !errors.Is(err, crypto.ErrPasswordRequired) {
			t.Errorf("Decode() error = %v, want ErrPasswordRequired", err)
		}
		if _, err := p.Encode(chain, data, ""); !errors.Is(err, crypto.ErrPasswordRequired) {
			t.Errorf("Encode() error = %v, want ErrPasswordRequired", err)
		}
	})
}
