package messaging

import (
	"testing"

	"github.com/Abraxas-365/craftable/storex"
)

func TestListTenantsRequestGetOffset(t *testing.T) {
	cases := []struct {
		page, size, want int
	}{
		{1, 20, 0},
		{2, 20, 20},
		{3, 10, 20},
	}

	for _, tc := range cases {
		req := ListTenantsRequest{
			PaginationOptions: storex.PaginationOptions{Page: tc.page, PageSize: tc.size},
		}
		if got := req.GetOffset(); got != tc.want {
			t.Errorf("page %d size %d: expected offset %d, got %d", tc.page, tc.size, tc.want, got)
		}
	}
}
