package protocol

// SplitAccessUnits splits a buffer of concatenated H.264 Annex-B NAL units
// on start codes (00 00 01 or 00 00 00 01) and returns one slice per NAL
// unit, start code excluded. The input is not copied; returned slices
// alias buf.
func SplitAccessUnits(buf []byte) [][]byte {
	starts := findStartCodes(buf)
	if len(starts) == 0 {
		return nil
	}

	units := make([][]byte, 0, len(starts))
	for i, s := range starts {
		nalStart := s.offset + s.codeLen
		var nalEnd int
		if i+1 < len(starts) {
			nalEnd = starts[i+1].offset
		} else {
			nalEnd = len(buf)
		}
		if nalStart >= nalEnd {
			continue
		}
		units = append(units, buf[nalStart:nalEnd])
	}
	return units
}

type startCode struct {
	offset  int
	codeLen int
}

func findStartCodes(buf []byte) []startCode {
	var found []startCode
	for i := 0; i+2 < len(buf); i++ {
		if buf[i] != 0x00 || buf[i+1] != 0x00 {
			continue
		}
		if buf[i+2] == 0x01 {
			found = append(found, startCode{offset: i, codeLen: 3})
			i += 2
			continue
		}
		if i+3 < len(buf) && buf[i+2] == 0x00 && buf[i+3] == 0x01 {
			found = append(found, startCode{offset: i, codeLen: 4})
			i += 3
		}
	}
	return found
}

// NALType returns the NAL unit type (low 5 bits of the first byte) of a
// NAL unit as returned by SplitAccessUnits. It returns -1 for an empty unit.
func NALType(nal []byte) int {
	if len(nal) == 0 {
		return -1
	}
	return int(nal[0] & 0x1f)
}

const (
	nalTypeIDRSlice = 5
	nalTypeSPS      = 7
)

// IsKeyframe reports whether the given access unit (a set of NAL units
// belonging to one frame, as produced by SplitAccessUnits) contains an
// IDR slice or an SPS — either is sufficient to mark the frame decodable
// without reference to prior frames.
func IsKeyframe(nalUnits [][]byte) bool {
	for _, nal := range nalUnits {
		switch NALType(nal) {
		case nalTypeIDRSlice, nalTypeSPS:
			return true
		}
	}
	return false
}
