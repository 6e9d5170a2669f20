package analysis

import "testing"

func TestPartitionCoversSpectrum(t *testing.T) {
	t.Parallel()

	for n := 0; n <= 2048; n++ {
		bands := Partition(n, DefaultCutoffs)
		next := 0
		total := 0
		for i, r := range bands {
			if r.Start != next {
				t.Fatalf("n=%d band %d starts at %d, want %d", n, i, r.Start, next)
			}
			if r.Len() < 0 {
				t.Fatalf("n=%d band %d has negative length", n, i)
			}
			next = r.End
			total += r.Len()
		}
		if next != n || total != n {
			t.Fatalf("n=%d bands end at %d covering %d bins", n, next, total)
		}
	}
}

func TestPartitionDefaultBoundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n    int
		want [3]Range
	}{
		{256, [3]Range{{0, 25}, {25, 102}, {102, 256}}},
		{10, [3]Range{{0, 1}, {1, 4}, {4, 10}}},
		{5, [3]Range{{0, 0}, {0, 2}, {2, 5}}},
	}
	for _, tt := range tests {
		if got := Partition(tt.n, DefaultCutoffs); got != tt.want {
			t.Errorf("Partition(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestBandMeanEmpty(t *testing.T) {
	t.Parallel()

	if got := bandMean(nil); got != 0 {
		t.Errorf("bandMean(nil) = %v, want 0", got)
	}
	if got := bandMean([]byte{255, 255}); got != 1 {
		t.Errorf("bandMean(full) = %v, want 1", got)
	}
}
