package codec

// deltaCodec は width バイト前との差分を取る前処理です。長さは変わりません。
type deltaCodec struct {
	width int
}

func (c deltaCodec) Decode(src []byte, dstSize int) ([]byte, error) {
	if err := checkLimit(len(src), dstSize); err != nil {
		return nil, err
	}
	out := make([]byte, len(src))
	for i, b := range src {
		if i >= c.width {
			b += out[i-c.width]
		}
		out[i] = b
	}
	return out, nil
}

func (c deltaCodec) Encode(src []byte) ([]byte, error) {
	out := make([]byte, len(src))
	for i, b := range src {
		if i >= c.width {
			b -= src[i-c.width]
		}
		out[i] = b
	}
	return out, nil
}
