package desktop

// bgraToRGBA swaps the B and R channels in place, converting the
// native BGRA byte order X11 and CoreGraphics both hand back into the
// RGBA order image.RGBA expects. Alpha is forced opaque since screen
// captures have no meaningful transparency.
func bgraToRGBA(src, dst []byte) {
	for i := 0; i+4 <= len(src) && i+4 <= len(dst); i += 4 {
		dst[i+0] = src[i+2]
		dst[i+1] = src[i+1]
		dst[i+2] = src[i+0]
		dst[i+3] = 0xff
	}
}
