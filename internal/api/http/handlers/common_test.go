package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/car-marketplace/internal/config"
	apperrors "github.com/spec-kit/car-marketplace/pkg/util/errorutil"
)

var testPagination = config.PaginationConfig{DefaultPageSize: 12, MaxPageSize: 100}

// runWithCtx executes fn against a request built for target.
func runWithCtx(t *testing.T, target string, fn func(c *fiber.Ctx) error) {
	t.Helper()
	app := fiber.New()
	app.Get("/*", fn)
	if _, err := app.Test(httptest.NewRequest(fiber.MethodGet, target, nil)); err != nil {
		t.Fatalf("app.Test(%s): %v", target, err)
	}
}

func TestParsePage(t *testing.T) {
	cases := []struct {
		query    string
		page     int
		size     int
		notFound bool
	}{
		{"", 1, 12, false},
		{"?page=3", 3, 12, false},
		{"?page=2&page_size=5", 2, 5, false},
		{"?page_size=500", 1, 100, false},
		{"?page_size=abc", 1, 12, false},
		{"?page_size=-4", 1, 12, false},
		{"?page=0", 0, 0, true},
		{"?page=last", 0, 0, true},
		{"?page=1000000&page_size=100", 1_000_000, 100, false},
		{"?page=1000001", 0, 0, true},
		{"?page=9223372036854775807&page_size=100", 0, 0, true},
	}
	for _, tc := range cases {
		runWithCtx(t, "/items"+tc.query, func(c *fiber.Ctx) error {
			got, err := parsePage(c, testPagination)
			if tc.notFound {
				if !apperrors.HasCode(err, "NOT_FOUND") {
					t.Errorf("%q: err = %v, want NOT_FOUND", tc.query, err)
				}
				return nil
			}
			if err != nil {
				t.Errorf("%q: unexpected error %v", tc.query, err)
				return nil
			}
			if got.Page != tc.page || got.PageSize != tc.size {
				t.Errorf("%q: got %+v, want page=%d size=%d", tc.query, got, tc.page, tc.size)
			}
			return nil
		})
	}
}

func TestParsePageBoundsSizeWithoutConfig(t *testing.T) {
	runWithCtx(t, "/items?page=1000000&page_size=999999999", func(c *fiber.Ctx) error {
		got, err := parsePage(c, config.PaginationConfig{})
		if err != nil {
			t.Errorf("unexpected error %v", err)
			return nil
		}
		if got.PageSize != fallbackMaxSize {
			t.Errorf("PageSize = %d, want %d", got.PageSize, fallbackMaxSize)
		}
		if off := got.repo().Offset; off <= 0 {
			t.Errorf("Offset = %d, want positive", off)
		}
		return nil
	})
}

func TestPageRequestOffset(t *testing.T) {
	p := pageRequest{Page: 3, PageSize: 12}.repo()
	if p.Limit != 12 || p.Offset != 24 {
		t.Fatalf("repo() = %+v, want limit 12 offset 24", p)
	}
}

func TestPaginate(t *testing.T) {
	page, err := paginate[int](pageRequest{Page: 1, PageSize: 12}, 0, nil)
	if err != nil {
		t.Fatalf("empty first page: %v", err)
	}
	if page.Results == nil || len(page.Results) != 0 || page.Count != 0 {
		t.Fatalf("empty page = %+v", page)
	}

	page, err = paginate(pageRequest{Page: 2, PageSize: 2}, 3, []int{3})
	if err != nil {
		t.Fatalf("last page: %v", err)
	}
	if page.Count != 3 || page.Page != 2 || page.PageSize != 2 || len(page.Results) != 1 {
		t.Fatalf("page = %+v", page)
	}

	if _, err := paginate(pageRequest{Page: 3, PageSize: 2}, 4, []int{}); !apperrors.HasCode(err, "NOT_FOUND") {
		t.Fatalf("past the end: err = %v, want NOT_FOUND", err)
	}
}

func TestParamID(t *testing.T) {
	app := fiber.New()
	var got int64
	var gotErr error
	app.Get("/things/:id", func(c *fiber.Ctx) error {
		got, gotErr = paramID(c, "id")
		return nil
	})

	for _, tc := range []struct {
		path string
		want int64
		ok   bool
	}{
		{"/things/42", 42, true},
		{"/things/0", 0, false},
		{"/things/-1", 0, false},
		{"/things/abc", 0, false},
	} {
		if _, err := app.Test(httptest.NewRequest(fiber.MethodGet, tc.path, nil)); err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if tc.ok && (gotErr != nil || got != tc.want) {
			t.Errorf("%s: got %d, %v", tc.path, got, gotErr)
		}
		if !tc.ok && !apperrors.HasCode(gotErr, "NOT_FOUND") {
			t.Errorf("%s: err = %v, want NOT_FOUND", tc.path, gotErr)
		}
	}
}

func TestCurrentUserWithoutPrincipal(t *testing.T) {
	runWithCtx(t, "/me", func(c *fiber.Ctx) error {
		if _, err := currentUser(c); !apperrors.HasCode(err, "UNAUTHORIZED") {
			t.Errorf("currentUser err = %v, want UNAUTHORIZED", err)
		}
		if optionalUser(c) != nil {
			t.Error("optionalUser returned a user for an anonymous request")
		}
		return nil
	})
}
