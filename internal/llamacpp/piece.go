package llamacpp

// growPieceBuf returns the buffer size to retry with after a piece
// conversion reported result n. llama.cpp reports a short buffer as the
// negated size it needs.
func growPieceBuf(size, n int) int {
	if n < 0 && -n > size {
		return -n
	}
	return size
}
