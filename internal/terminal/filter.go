package terminal

// Filter transforms a raw output stream chunk by chunk. Write may hold bytes
// back across calls; Flush releases anything still pending.
type Filter interface {
	Write(data []byte) []byte
	Flush() []byte
}

// Chain applies filters in order.
type Chain []Filter

func (c Chain) Write(data []byte) []byte {
	for _, f := range c {
		data = f.Write(data)
		if len(data) == 0 {
			return nil
		}
	}
	return data
}

func (c Chain) Flush() []byte {
	var out []byte
	for i, f := range c {
		chunk := f.Flush()
		for _, next := range c[i+1:] {
			chunk = next.Write(chunk)
		}
		out = append(out, chunk...)
	}
	return out
}
