package terminal

// NewANSIStripFilter removes ESC-led escape sequences and control bytes,
// keeping tabs, newlines, and carriage returns. Bytes above 0x7f pass
// untouched: the stream is UTF-8 and the REPL output is full of emoji, so
// 8-bit C1 codes must not be interpreted.
func NewANSIStripFilter() Filter {
	return &ansiStripFilter{}
}

type ansiState int

const (
	ansiText ansiState = iota
	ansiEsc
	ansiCSI
	ansiString // OSC, DCS, PM, APC payloads
	ansiStringEsc
)

type ansiStripFilter struct {
	state ansiState
}

func (f *ansiStripFilter) Write(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	out := make([]byte, 0, len(data))
	for _, b := range data {
		switch f.state {
		case ansiText:
			switch {
			case b == 0x1b:
				f.state = ansiEsc
			case b == '\n' || b == '\r' || b == '\t':
				out = append(out, b)
			case b < 0x20 || b == 0x7f:
			default:
				out = append(out, b)
			}
		case ansiEsc:
			switch b {
			case '[':
				f.state = ansiCSI
			case ']', 'P', '^', '_':
				f.state = ansiString
			default:
				f.state = ansiText
			}
		case ansiCSI:
			if b >= 0x40 && b <= 0x7e {
				f.state = ansiText
			}
		case ansiString:
			if b == 0x07 {
				f.state = ansiText
			} else if b == 0x1b {
				f.state = ansiStringEsc
			}
		case ansiStringEsc:
			if b == '\\' {
				f.state = ansiText
			} else {
				f.state = ansiString
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (f *ansiStripFilter) Flush() []byte {
	return nil
}
