package db

import "testing"

func TestPageBounds(t *testing.T) {
	cases := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{0, 0, DefaultPageLimit, 0},
		{-5, -1, DefaultPageLimit, 0},
		{1000, 20, DefaultPageLimit, 20},
		{MaxPageLimit, 0, MaxPageLimit, 0},
		{10, 5, 10, 5},
	}
	for _, tc := range cases {
		l, o := PageBounds(tc.limit, tc.offset)
		if l != tc.wantLimit || o != tc.wantOffset {
			t.Fatalf("PageBounds(%d, %d) = %d, %d; want %d, %d", tc.limit, tc.offset, l, o, tc.wantLimit, tc.wantOffset)
		}
	}
}
