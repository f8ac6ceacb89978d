package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/car-marketplace/internal/api/dto"
	"github.com/spec-kit/car-marketplace/internal/auth"
	"github.com/spec-kit/car-marketplace/internal/config"
	"github.com/spec-kit/car-marketplace/internal/domain"
	"github.com/spec-kit/car-marketplace/internal/repository"
	apperrors "github.com/spec-kit/car-marketplace/pkg/util/errorutil"
)

// URLFunc turns a media storage key into a public URL.
type URLFunc func(key string) string

// currentUser returns the authenticated caller; routes using it sit behind
// AuthGate.Handle.
func currentUser(c *fiber.Ctx) (*domain.User, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return nil, apperrors.NewUnauthorized("authentication credentials were not provided or are invalid")
	}
	return principal.User, nil
}

// optionalUser returns the caller resolved by AuthGate.Optional, or nil.
func optionalUser(c *fiber.Ctx) *domain.User {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil
	}
	return principal.User
}

func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewNotFound("resource", nil)
	}
	return id, nil
}

const (
	fallbackPageSize = 12
	fallbackMaxSize  = 100
	// maxPageNumber keeps (page-1)*page_size well inside int range.
	maxPageNumber = 1_000_000
)

// pageRequest is a parsed page/page_size pair.
type pageRequest struct {
	Page     int
	PageSize int
}

func (p pageRequest) repo() repository.Page {
	return repository.Page{Limit: p.PageSize, Offset: (p.Page - 1) * p.PageSize}
}

// parsePage reads page and page_size. page_size falls back to the default
// when invalid and is capped at the maximum; an invalid or absurdly large
// page is a 404.
func parsePage(c *fiber.Ctx, cfg config.PaginationConfig) (pageRequest, error) {
	req := pageRequest{Page: 1, PageSize: cfg.DefaultPageSize}
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 || page > maxPageNumber {
			return req, apperrors.NewNotFound("page", map[string]any{"page": raw})
		}
		req.Page = page
	}
	if raw := c.Query("page_size"); raw != "" {
		if size, err := strconv.Atoi(raw); err == nil && size > 0 {
			req.PageSize = size
		}
	}
	if req.PageSize <= 0 {
		req.PageSize = fallbackPageSize
	}
	maxSize := cfg.MaxPageSize
	if maxSize <= 0 {
		maxSize = fallbackMaxSize
	}
	if req.PageSize > maxSize {
		req.PageSize = maxSize
	}
	return req, nil
}

// paginate wraps results in the page envelope. Asking for a page past the
// end is a 404.
func paginate[T any](req pageRequest, total int, results []T) (dto.Page[T], error) {
	if req.Page > 1 && (req.Page-1)*req.PageSize >= total {
		return dto.Page[T]{}, apperrors.NewNotFound("page", map[string]any{"page": req.Page})
	}
	if results == nil {
		results = []T{}
	}
	return dto.Page[T]{Count: total, Page: req.Page, PageSize: req.PageSize, Results: results}, nil
}

func userRef(ref domain.UserRef) dto.UserRef {
	return dto.UserRef{ID: ref.ID, Username: ref.Username}
}
