package terminal

import "unicode/utf8"

// NewUTF8GuardFilter buffers incomplete UTF-8 runes across chunk boundaries
// so a 4-byte emoji split by the pty read size comes out whole.
func NewUTF8GuardFilter() Filter {
	return &utf8GuardFilter{}
}

type utf8GuardFilter struct {
	pending []byte
}

func (f *utf8GuardFilter) Write(data []byte) []byte {
	if len(data) == 0 && len(f.pending) == 0 {
		return nil
	}

	buf := append(f.pending, data...)
	f.pending = nil

	out := make([]byte, 0, len(buf))
	for i := 0; i < len(buf); {
		if !utf8.FullRune(buf[i:]) {
			f.pending = append(f.pending, buf[i:]...)
			break
		}
		r, size := utf8.DecodeRune(buf[i:])
		if r == utf8.RuneError && size == 1 {
			out = utf8.AppendRune(out, utf8.RuneError)
			i++
			continue
		}
		out = append(out, buf[i:i+size]...)
		i += size
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (f *utf8GuardFilter) Flush() []byte {
	if len(f.pending) == 0 {
		return nil
	}
	f.pending = nil
	return utf8.AppendRune(nil, utf8.RuneError)
}
