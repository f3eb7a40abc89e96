package buffer

// RecycleSlice zeroes b in place so a pooled buffer doesn't leak the
// previous connection's bytes into the next one that borrows it.
func RecycleSlice(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
