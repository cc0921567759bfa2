package ppmd

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"testing"
)

// sampleText は単語をランダムに並べた英文風のテキストを返します
func sampleText(n int) []byte {
	words := strings.Fields("archive block solid footer directory stream model order context symbol escape " +
		"the a of and to in is for with data file name size time crc method password")
	r := rand.New(rand.NewPCG(1, 2))
	var b bytes.Buffer
	for b.Len() < n {
		b.WriteString(words[r.IntN(len(words))])
		if r.IntN(12) == 0 {
			b.WriteString(".\n")
		} else {
			b.WriteByte(' ')
		}
	}
	return b.Bytes()[:n]
}

func randomBytes(n int) []byte {
	r := rand.New(rand.NewPCG(3, 4))
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(r.Uint32())
	}
	return b
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		order int
		mem   int
	}{
		{"空のデータ", nil, 6, 1 << 16},
		{"1バイト", []byte("a"), 2, 1 << 16},
		{"英文テキスト", sampleText(50000), 6, 1 << 20},
		{"高次数", sampleText(20000), 16, 1 << 22},
		{"最大次数", sampleText(8000), MaxOrder, 1 << 22},
		{"最小次数", sampleText(8000), MinOrder, 1 << 16},
		{"最小メモリでの再構築", sampleText(20000), 16, MinMemSize},
		{"小さいメモリでの再構築", sampleText(60000), 8, 16 << 10},
		{"ランダムデータ", randomBytes(10000), 4, 1 << 16},
		{"ランダムデータで再構築", randomBytes(10000), 16, 4 << 10},
		{"同じバイトの連続", bytes.Repeat([]byte{0}, 5000), 16, 1 << 16},
		{"全バイト値", func() []byte {
			b := make([]byte, 256*8)
			for i := range b {
				b[i] = byte(i)
			}
			return b
		}(), 5, 1 << 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := Encode(tt.data, tt.order, tt.mem)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			got, err := Decode(enc, tt.order, tt.mem, -1)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !bytes.Equal(got, tt.data) {
				t.Fatalf("Decode() = %d バイト, want %d バイト", len(got), len(tt.data))
			}

			// 件数指定でも同じ結果になる
			got, err = Decode(enc, tt.order, tt.mem, len(tt.data))
			if err != nil {
				t.Fatalf("Decode(limit) error = %v", err)
			}
			if !bytes.Equal(got, tt.data) {
				t.Fatalf("Decode(limit) の結果が一致しません")
			}
		})
	}
}

func TestCompresses(t *testing.T) {
	data := sampleText(40000)
	enc, err := Encode(data, 6, 1<<20)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(enc) >= len(data)/2 {
		t.Errorf("圧縮後 %d バイト, 元 %d バイト", len(enc), len(data))
	}
}

func TestKnownStreams(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		order int
		mem   int
		want  string
	}{
		{"繰り返し文字列", []byte("abracadabra abracadabra abracadabra"), 6, 1 << 16, "61037c120ce594fdcb3bdf1a0b040000"},
		{"空のデータ", nil, 2, 1 << 11, "ff00ff0000"},
		{"ゼロ100バイト", make([]byte, 100), 4, 1 << 11, "00015a3e750f00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := Encode(tt.data, tt.order, tt.mem)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if got := hex.EncodeToString(enc); got != tt.want {
				t.Errorf("Encode() = %s, want %s", got, tt.want)
			}
			src, _ := hex.DecodeString(tt.want)
			got, err := Decode(src, tt.order, tt.mem, -1)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !bytes.Equal(got, tt.data) {
				t.Errorf("Decode() = %q, want %q", got, tt.data)
			}
		})
	}
}

func TestDecodeLimit(t *testing.T) {
	data := sampleText(1000)
	enc, err := Encode(data, 6, 1<<16)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	t.Run("途中で止める", func(t *testing.T) {
		got, err := Decode(enc, 6, 1<<16, 100)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if !bytes.Equal(got, data[:100]) {
			t.Errorf("先頭100バイトが一致しません")
		}
	})

	t.Run("終端記号が早すぎる", func(t *testing.T) {
		_, err := Decode(enc, 6, 1<<16, len(data)+1)
		if !errors.Is(err, ErrTruncatedStream) {
			t.Errorf("error = %v, want ErrTruncatedStream", err)
		}
	})
}

func TestDecodeErrors(t *testing.T) {
	enc, err := Encode(sampleText(2000), 6, 1<<16)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	tests := []struct {
		name    string
		src     []byte
		wantErr error
	}{
		{"入力なし", nil, ErrTruncatedStream},
		{"先頭4バイトに満たない", []byte{1, 2}, ErrTruncatedStream},
		{"最後の1バイトが欠けている", enc[:len(enc)-1], ErrTruncatedStream},
		{"途中で切れている", enc[:len(enc)/2], ErrTruncatedStream},
		{"算術符号の矛盾", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0, 0, 0, 0}, ErrDesync},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.src, 6, 1<<16, -1)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBadParameters(t *testing.T) {
	tests := []struct {
		name  string
		order int
		mem   int
	}{
		{"次数が小さすぎる", 1, 1 << 16},
		{"次数が大きすぎる", 65, 1 << 16},
		{"メモリが小さすぎる", 6, 1024},
		{"メモリが負", 6, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Encode([]byte("x"), tt.order, tt.mem); !errors.Is(err, ErrBadParameter) {
				t.Errorf("Encode() error = %v, want ErrBadParameter", err)
			}
			if _, err := NewDecoder(bytes.NewReader(make([]byte, 8)), tt.order, tt.mem); !errors.Is(err, ErrBadParameter) {
				t.Errorf("NewDecoder() error = %v, want ErrBadParameter", err)
			}
		})
	}
}

func TestStreaming(t *testing.T) {
	data := sampleText(30000)
	var buf bytes.Buffer
	e, err := NewEncoder(&buf, 8, 1<<20)
	if err != nil {
		t.Fatalf("NewEncoder() error = %v", err)
	}
	// 分割して書き込んでも一括と同じ結果になる
	for chunk := range slices.Chunk(data, 777) {
		if _, err := e.Write(chunk); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := e.Write([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("Close 後の Write() error = %v, want ErrClosed", err)
	}

	whole, err := Encode(data, 8, 1<<20)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !bytes.Equal(buf.Bytes(), whole) {
		t.Errorf("分割書き込みの結果が一括と異なります")
	}

	d, err := NewDecoder(bytes.NewReader(buf.Bytes()), 8, 1<<20)
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	got, err := io.ReadAll(d)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Read の結果が一致しません")
	}
	sym, err := d.DecodeSymbol()
	if err != nil || sym != EndMark {
		t.Errorf("終了後の DecodeSymbol() = %d, %v", sym, err)
	}
}

func TestHeapReuse(t *testing.T) {
	// プールから再利用したヒープには前の内容が残るが、結果は変わらない
	inputs := [][]byte{sampleText(40000), randomBytes(5000), sampleText(3000)}
	want := make([][]byte, len(inputs))
	for i, in := range inputs {
		enc, err := Encode(in, 8, 1<<16)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		want[i] = enc
	}

	var wg sync.WaitGroup
	errs := make(chan error, 4*len(inputs))
	for range 4 {
		for i, in := range inputs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				enc, err := Encode(in, 8, 1<<16)
				if err != nil {
					errs <- err
					return
				}
				if !bytes.Equal(enc, want[i]) {
					errs <- fmt.Errorf("入力%d: 符号化の結果が異なります", i)
					return
				}
				got, err := Decode(enc, 8, 1<<16, len(in))
				if err != nil {
					errs <- err
					return
				}
				if !bytes.Equal(got, in) {
					errs <- fmt.Errorf("入力%d: 復号の結果が一致しません", i)
				}
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestDecoderClose(t *testing.T) {
	enc, err := Encode([]byte("abcabcabc"), 6, 1<<16)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	d, err := NewDecoder(bytes.NewReader(enc), 6, 1<<16)
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := d.DecodeSymbol(); !errors.Is(err, ErrClosed) {
		t.Errorf("Close 後の DecodeSymbol() error = %v, want ErrClosed", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("2回目の Close() error = %v", err)
	}
}

func TestHeapWeight(t *testing.T) {
	tests := []struct {
		name string
		mem  int
		want int64
	}{
		{"予算内", 1 << 20, 1 << 20},
		{"予算と同じ", MaxHeapBudget, MaxHeapBudget},
		{"予算を超える", MaxMemSize, MaxHeapBudget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := heapWeight(tt.mem); got != tt.want {
				t.Errorf("heapWeight(%d) = %d, want %d", tt.mem, got, tt.want)
			}
		})
	}
}
