package protocol

import "testing"

func TestSplitAccessUnitsThreeAndFourByteStartCodes(t *testing.T) {
	buf := []byte{
		0x00, 0x00, 0x01, 0x67, 0xAA, 0xBB, // 3-byte start code, NAL type 7 (SPS)
		0x00, 0x00, 0x00, 0x01, 0x65, 0xCC, // 4-byte start code, NAL type 5 (IDR)
		0x00, 0x00, 0x01, 0x41, 0xDD, // 3-byte start code, NAL type 1
	}

	units := SplitAccessUnits(buf)
	if len(units) != 3 {
		t.Fatalf("expected 3 NAL units, got %d", len(units))
	}

	if NALType(units[0]) != nalTypeSPS {
		t.Fatalf("expected NAL type %d, got %d", nalTypeSPS, NALType(units[0]))
	}
	if NALType(units[1]) != nalTypeIDRSlice {
		t.Fatalf("expected NAL type %d, got %d", nalTypeIDRSlice, NALType(units[1]))
	}
	if NALType(units[2]) != 1 {
		t.Fatalf("expected NAL type 1, got %d", NALType(units[2]))
	}
}

func TestSplitAccessUnitsNoStartCode(t *testing.T) {
	buf := []byte{0xAA, 0xBB, 0xCC}
	if units := SplitAccessUnits(buf); units != nil {
		t.Fatalf("expected nil for buffer with no start code, got %v", units)
	}
}

func TestSplitAccessUnitsEmptyBuffer(t *testing.T) {
	if units := SplitAccessUnits(nil); units != nil {
		t.Fatalf("expected nil for empty buffer, got %v", units)
	}
}

func TestIsKeyframeDetectsIDR(t *testing.T) {
	units := [][]byte{{0x41, 0x01}, {0x65, 0x02}}
	if !IsKeyframe(units) {
		t.Fatal("expected keyframe due to IDR slice (type 5)")
	}
}

func TestIsKeyframeDetectsSPS(t *testing.T) {
	units := [][]byte{{0x67, 0x01}, {0x41, 0x02}}
	if !IsKeyframe(units) {
		t.Fatal("expected keyframe due to SPS (type 7)")
	}
}

func TestIsKeyframeFalseForNonReferenceSlices(t *testing.T) {
	units := [][]byte{{0x41, 0x01}, {0x01, 0x02}}
	if IsKeyframe(units) {
		t.Fatal("expected non-keyframe for plain slice NAL types")
	}
}

func TestNALTypeEmptyUnit(t *testing.T) {
	if got := NALType(nil); got != -1 {
		t.Fatalf("expected -1 for empty NAL unit, got %d", got)
	}
}
