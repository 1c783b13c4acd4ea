package desktop

import "testing"

func TestFrameDifferReportsChangeOnFirstFrame(t *testing.T) {
	d := newFrameDiffer()
	if !d.HasChanged([]byte{1, 2, 3}) {
		t.Fatal("expected first frame to report changed")
	}
}

func TestFrameDifferSkipsIdenticalFrame(t *testing.T) {
	d := newFrameDiffer()
	pix := []byte{1, 2, 3, 4}

	if !d.HasChanged(pix) {
		t.Fatal("expected first frame to report changed")
	}
	if d.HasChanged(append([]byte(nil), pix...)) {
		t.Fatal("expected identical second frame to report unchanged")
	}

	total, skipped := d.Stats()
	if total != 2 || skipped != 1 {
		t.Fatalf("Stats() = %d, %d; want 2, 1", total, skipped)
	}
}

func TestFrameDifferReportsChangeOnDifferentFrame(t *testing.T) {
	d := newFrameDiffer()
	d.HasChanged([]byte{1, 2, 3})
	if !d.HasChanged([]byte{9, 9, 9}) {
		t.Fatal("expected differing frame to report changed")
	}
}

func TestFrameDifferResetForcesChange(t *testing.T) {
	d := newFrameDiffer()
	pix := []byte{5, 5, 5}
	d.HasChanged(pix)
	d.Reset()
	if !d.HasChanged(append([]byte(nil), pix...)) {
		t.Fatal("expected a change report immediately after Reset")
	}
}
