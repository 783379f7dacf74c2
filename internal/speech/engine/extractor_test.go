package engine

import "testing"

func TestPadExtractor(t *testing.T) {
	p := PadExtractor{MaxSamples: 8, SampleRate: 16000}

	f, err := p.Extract([]float32{1, 2, 3}, 16000)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Values) != 8 || len(f.Mask) != 8 {
		t.Fatalf("width = %d/%d, want 8", len(f.Values), len(f.Mask))
	}
	wantMask := []int8{1, 1, 1, 0, 0, 0, 0, 0}
	for i := range wantMask {
		if f.Mask[i] != wantMask[i] {
			t.Fatalf("mask = %v, want %v", f.Mask, wantMask)
		}
	}
	if f.Values[2] != 3 || f.Values[3] != 0 {
		t.Errorf("values = %v", f.Values)
	}

	long := make([]float32, 20)
	f, err = p.Extract(long, 16000)
	if err != nil || len(f.Values) != 8 || f.Mask[7] != 1 {
		t.Fatalf("truncate: len=%d err=%v", len(f.Values), err)
	}
	if f.Truncated != 12 {
		t.Errorf("Truncated = %d, want 12", f.Truncated)
	}

	if _, err := p.Extract(long, 8000); err == nil {
		t.Error("expected sample rate mismatch error")
	}
}

func TestNewPadExtractorDefaults(t *testing.T) {
	f, err := NewPadExtractor().Extract(make([]float32, 100), 16000)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Values) != MaxInputSamples {
		t.Errorf("width = %d, want %d", len(f.Values), MaxInputSamples)
	}
}
