package repository_test

import (
	"context"
	"errors"
	"math"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/goliatone/go-repository-kit/pkg/testsupport"
	"github.com/goliatone/go-repository-kit/repository"
)

func names(items []item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}

func ids(items []item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

// pageShape is the metadata of a Page without its items.
type pageShape struct {
	Items, Total, Page, Limit, TotalPages int
	HasNext, HasPrevious                  bool
}

func shapeOf(p repository.Page[item]) pageShape {
	return pageShape{len(p.Items), p.Total, p.Page, p.Limit, p.TotalPages, p.HasNextPage, p.HasPreviousPage}
}

func TestFindWithPagination_Pages(t *testing.T) {
	_, base, _ := seedItems(t, 25)
	ctx := context.Background()
	farPage := math.MaxInt/10 + 2

	tests := []struct {
		name string
		req  repository.PageRequest
		want pageShape
	}{
		{"defaults", repository.PageRequest{}, pageShape{10, 25, 1, 10, 3, true, false}},
		{"middle", repository.PageRequest{Page: 2, Limit: 10}, pageShape{10, 25, 2, 10, 3, true, true}},
		{"last", repository.PageRequest{Page: 3, Limit: 10}, pageShape{5, 25, 3, 10, 3, false, true}},
		{"past last", repository.PageRequest{Page: 7, Limit: 10}, pageShape{0, 25, 7, 10, 3, false, true}},
		{"offset beyond int range", repository.PageRequest{Page: farPage, Limit: 10}, pageShape{0, 25, farPage, 10, 3, false, true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := base.FindWithPagination(ctx, nil, tt.req)
			if err != nil {
				t.Fatalf("FindWithPagination: %v", err)
			}
			if page.Items == nil {
				t.Error("Items must be non-nil")
			}
			if got := shapeOf(page); got != tt.want {
				t.Errorf("page = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFindWithPagination_SortsNewestFirstByDefault(t *testing.T) {
	_, base, _ := seedItems(t, 25)

	page, err := base.FindWithPagination(context.Background(), nil, repository.PageRequest{Page: 2, Limit: 10})
	if err != nil {
		t.Fatalf("FindWithPagination: %v", err)
	}
	if first, last := page.Items[0].Name, page.Items[9].Name; first != "Item 15" || last != "Item 06" {
		t.Errorf("expected Item 15..Item 06, got %s..%s", first, last)
	}
}

func TestFindWithPagination_OffsetBeyondIntRangeOnlyCounts(t *testing.T) {
	adapter, base, _ := seedItems(t, 5)

	_, err := base.FindWithPagination(context.Background(), nil, repository.PageRequest{Page: math.MaxInt, Limit: 3})
	if err != nil {
		t.Fatalf("FindWithPagination: %v", err)
	}
	if n := adapter.Calls("Query"); n != 0 {
		t.Errorf("expected no slice query, got %d", n)
	}
	if n := adapter.Calls("Count"); n != 1 {
		t.Errorf("expected one count query, got %d", n)
	}
}

func TestFindWithPagination_FilterAndSort(t *testing.T) {
	_, base, _ := seedItems(t, 10)

	page, err := base.FindWithPagination(context.Background(),
		repository.Filter{"category": "tools"},
		repository.PageRequest{Limit: 2, Sort: repository.Sort{repository.Ascending("price")}},
	)
	if err != nil {
		t.Fatalf("FindWithPagination: %v", err)
	}
	if page.Total != 5 || page.TotalPages != 3 {
		t.Errorf("expected total 5 over 3 pages, got %d over %d", page.Total, page.TotalPages)
	}
	if got := names(page.Items); !slices.Equal(got, []string{"Item 01", "Item 03"}) {
		t.Errorf("unexpected items %v", got)
	}
}

func TestFindWithPagination_MaxLimitClamps(t *testing.T) {
	adapter, _, _ := seedItems(t, 30)
	cfg := repository.DefaultConfig()
	cfg.MaxLimit = 20
	base, err := repository.New[item](adapter, repository.WithConfig[item](cfg))
	if err != nil {
		t.Fatalf("repository.New: %v", err)
	}

	page, err := base.FindWithPagination(context.Background(), nil, repository.PageRequest{Limit: 500})
	if err != nil {
		t.Fatalf("FindWithPagination: %v", err)
	}
	if page.Limit != 20 || len(page.Items) != 20 || page.TotalPages != 2 {
		t.Errorf("expected 20 items per page over 2 pages, got %+v", shapeOf(page))
	}
}

func TestFindWithPagination_RejectsInvalidInput(t *testing.T) {
	adapter, base, _ := seedItems(t, 3)
	ctx := context.Background()

	tests := []struct {
		name string
		req  repository.PageRequest
	}{
		{"negative page", repository.PageRequest{Page: -1}},
		{"negative limit", repository.PageRequest{Limit: -5}},
		{"bad direction", repository.PageRequest{Sort: repository.Sort{{Field: "name", Direction: "up"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := base.FindWithPagination(ctx, nil, tt.req)
			if !errors.Is(err, repository.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			var vErr *repository.ValidationError
			if !errors.As(err, &vErr) {
				t.Errorf("expected *ValidationError, got %T", err)
			}
		})
	}
	if n := adapter.Calls("Query"); n != 0 {
		t.Errorf("invalid requests reached the adapter %d times", n)
	}
}

func TestFindWithPagination_FailsWhenEitherQueryFails(t *testing.T) {
	boom := errors.New("count failed")
	adapter, base, _ := seedItems(t, 3)
	ctx := context.Background()

	for _, method := range []string{"Count", "Query"} {
		adapter.SetError("Count", nil)
		adapter.SetError("Query", nil)
		adapter.SetError(method, boom)

		page, err := base.FindWithPagination(ctx, nil, repository.PageRequest{})
		if !errors.Is(err, boom) {
			t.Errorf("%s failure: expected adapter error, got %v", method, err)
		}
		if len(page.Items) != 0 {
			t.Errorf("%s failure: expected no items, got %d", method, len(page.Items))
		}
	}
}

func TestFindWithPagination_Idempotent(t *testing.T) {
	_, base, _ := seedItems(t, 17)
	ctx := context.Background()
	req := repository.PageRequest{Page: 2, Limit: 4}

	first, err := base.FindWithPagination(ctx, repository.Filter{"category": "garden"}, req)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := base.FindWithPagination(ctx, repository.Filter{"category": "garden"}, req)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("pages differ:\n%+v\n%+v", first, second)
	}
}

func TestNewPage_Metadata(t *testing.T) {
	for total := 0; total <= 35; total++ {
		for limit := 1; limit <= 12; limit++ {
			totalPages := total / limit
			if total%limit != 0 {
				totalPages++
			}
			for page := 1; page <= totalPages+2; page++ {
				p := repository.NewPage[int](nil, total, page, limit)
				if p.TotalPages != totalPages {
					t.Fatalf("total=%d limit=%d: TotalPages = %d, want %d", total, limit, p.TotalPages, totalPages)
				}
				if p.HasNextPage != (page < totalPages) {
					t.Fatalf("total=%d limit=%d page=%d: HasNextPage = %v", total, limit, page, p.HasNextPage)
				}
				if p.HasPreviousPage != (page > 1) {
					t.Fatalf("total=%d limit=%d page=%d: HasPreviousPage = %v", total, limit, page, p.HasPreviousPage)
				}
			}
		}
	}
}

func TestFindWithCursor(t *testing.T) {
	_, base, seeded := seedItems(t, 5)
	all := ids(seeded)

	tests := []struct {
		name    string
		req     repository.CursorRequest
		want    []string
		hasMore bool
		lastID  string
	}{
		{"fewer than limit", repository.CursorRequest{Limit: 10}, all, false, all[4]},
		{"after last id", repository.CursorRequest{Limit: 2, Sort: repository.Sort{repository.Ascending("id")}, LastID: all[1]}, all[2:4], true, all[3]},
		{"exactly limit remaining", repository.CursorRequest{Limit: 2, LastID: all[2]}, all[3:], false, all[4]},
		{"descending ids", repository.CursorRequest{Limit: 2, Sort: repository.Sort{repository.Descending("id")}, LastID: all[3]}, []string{all[2], all[1]}, true, all[1]},
		{"nothing after", repository.CursorRequest{LastID: all[4]}, []string{}, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := base.FindWithCursor(context.Background(), nil, tt.req)
			if err != nil {
				t.Fatalf("FindWithCursor: %v", err)
			}
			if page.Items == nil {
				t.Error("Items must be non-nil")
			}
			if got := ids(page.Items); !slices.Equal(got, tt.want) {
				t.Errorf("ids = %v, want %v", got, tt.want)
			}
			if page.HasMore != tt.hasMore {
				t.Errorf("HasMore = %v, want %v", page.HasMore, tt.hasMore)
			}
			if page.LastID != tt.lastID {
				t.Errorf("LastID = %q, want %q", page.LastID, tt.lastID)
			}
		})
	}
}

func TestFindWithCursor_WalksEveryRecordOnce(t *testing.T) {
	adapter, base, seeded := seedItems(t, 11)
	ctx := context.Background()

	var (
		seen   []string
		lastID string
		calls  int
	)
	for {
		page, err := base.FindWithCursor(ctx, nil, repository.CursorRequest{Limit: 3, LastID: lastID})
		if err != nil {
			t.Fatalf("FindWithCursor: %v", err)
		}
		if len(page.Items) > 3 {
			t.Fatalf("page exceeds limit: %d", len(page.Items))
		}
		seen = append(seen, ids(page.Items)...)
		calls++
		if !page.HasMore {
			break
		}
		lastID = page.LastID
	}

	if !slices.Equal(seen, ids(seeded)) {
		t.Errorf("walked %v, want %v", seen, ids(seeded))
	}
	if calls != 4 {
		t.Errorf("expected 4 pages, got %d", calls)
	}
	if n := adapter.Calls("Count"); n != 0 {
		t.Errorf("cursor pagination must not count, got %d", n)
	}
}

func TestFindWithCursor_Validation(t *testing.T) {
	_, base, _ := seedItems(t, 2)

	_, err := base.FindWithCursor(context.Background(), nil, repository.CursorRequest{Limit: -1})
	if !errors.Is(err, repository.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestFindWithCursor_CustomIDFunc(t *testing.T) {
	adapter, _, _ := seedItems(t, 3)
	base, err := repository.New[item](adapter, repository.WithIDFunc(func(i item) string { return "custom-" + i.ID }))
	if err != nil {
		t.Fatalf("repository.New: %v", err)
	}

	page, err := base.FindWithCursor(context.Background(), nil, repository.CursorRequest{Limit: 1})
	if err != nil {
		t.Fatalf("FindWithCursor: %v", err)
	}
	if page.LastID != "custom-0001" {
		t.Errorf("LastID = %q, want custom-0001", page.LastID)
	}
}

func TestFindWithSearch(t *testing.T) {
	adapter := testsupport.NewMemoryAdapter[item]()
	adapter.Seed(
		item{Name: "Garden Hose", Category: "garden", CreatedAt: epoch},
		item{Name: "Hammer", Category: "tools", CreatedAt: epoch.Add(time.Minute)},
		item{Name: "Rake", Category: "GARDEN supplies", CreatedAt: epoch.Add(2 * time.Minute)},
		item{Name: "Saw", Category: "tools", CreatedAt: epoch.Add(3 * time.Minute)},
	)
	base, err := repository.New[item](adapter)
	if err != nil {
		t.Fatalf("repository.New: %v", err)
	}
	ctx := context.Background()

	page, err := base.FindWithSearch(ctx, "garden", []string{"name", "category"}, repository.PageRequest{Limit: 1})
	if err != nil {
		t.Fatalf("FindWithSearch: %v", err)
	}
	if page.Total != 2 || page.TotalPages != 2 || !page.HasNextPage {
		t.Errorf("unexpected page metadata %+v", shapeOf(page))
	}
	if got := names(page.Items); !slices.Equal(got, []string{"Rake"}) {
		t.Errorf("items = %v, want [Rake]", got)
	}

	all, err := base.FindWithSearch(ctx, "", []string{"name"}, repository.PageRequest{})
	if err != nil {
		t.Fatalf("FindWithSearch(empty query): %v", err)
	}
	if all.Total != 4 {
		t.Errorf("empty query should match all 4 records, got %d", all.Total)
	}
}

func TestFindWithSearch_RejectsInvalidInput(t *testing.T) {
	_, base, _ := seedItems(t, 2)
	ctx := context.Background()

	tests := []struct {
		name   string
		fields []string
		req    repository.PageRequest
	}{
		{"no fields", nil, repository.PageRequest{}},
		{"empty field name", []string{""}, repository.PageRequest{}},
		{"negative page", []string{"name"}, repository.PageRequest{Page: -2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := base.FindWithSearch(ctx, "x", tt.fields, tt.req)
			if !errors.Is(err, repository.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}
