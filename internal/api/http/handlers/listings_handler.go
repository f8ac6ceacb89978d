package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/car-marketplace/internal/api/dto"
	"github.com/spec-kit/car-marketplace/internal/config"
	"github.com/spec-kit/car-marketplace/internal/domain"
	"github.com/spec-kit/car-marketplace/internal/repository"
	"github.com/spec-kit/car-marketplace/internal/service"
	apperrors "github.com/spec-kit/car-marketplace/pkg/util/errorutil"
)

// ListingsHandler serves the catalog: listings, their images and favorites.
type ListingsHandler struct {
	listings   *service.ListingService
	favorites  *service.FavoriteService
	pagination config.PaginationConfig
	mediaURL   URLFunc
}

// NewListingsHandler constructs handler.
func NewListingsHandler(listings *service.ListingService, favorites *service.FavoriteService, pagination config.PaginationConfig, mediaURL URLFunc) *ListingsHandler {
	return &ListingsHandler{listings: listings, favorites: favorites, pagination: pagination, mediaURL: mediaURL}
}

// List GET /api/catalog/listings.
func (h *ListingsHandler) List(c *fiber.Ctx) error {
	pageReq, err := parsePage(c, h.pagination)
	if err != nil {
		return err
	}
	filter, err := parseListingFilter(c)
	if err != nil {
		return err
	}
	filter.Page = pageReq.repo()

	listings, total, err := h.listings.List(c.UserContext(), optionalUser(c), filter)
	if err != nil {
		return err
	}
	items := make([]dto.ListingSummary, 0, len(listings))
	for i := range listings {
		items = append(items, listingSummary(&listings[i], h.mediaURL))
	}
	page, err := paginate(pageReq, total, items)
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// Create POST /api/catalog/listings.
func (h *ListingsHandler) Create(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.ListingRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	listing, err := h.listings.Create(c.UserContext(), user, listingInput(req))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(listingDetail(listing, h.mediaURL))
}

// Get GET /api/catalog/listings/:id.
func (h *ListingsHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	listing, err := h.listings.Get(c.UserContext(), optionalUser(c), id)
	if err != nil {
		return err
	}
	return c.JSON(listingDetail(listing, h.mediaURL))
}

// Update PATCH /api/catalog/listings/:id.
func (h *ListingsHandler) Update(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.ListingRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	listing, err := h.listings.Update(c.UserContext(), user, id, listingInput(req))
	if err != nil {
		return err
	}
	return c.JSON(listingDetail(listing, h.mediaURL))
}

// Delete DELETE /api/catalog/listings/:id.
func (h *ListingsHandler) Delete(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.listings.Delete(c.UserContext(), user, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UploadImage POST /api/catalog/listings/:id/images (multipart "image", optional "order").
func (h *ListingsHandler) UploadImage(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	order := 0
	if raw := strings.TrimSpace(c.FormValue("order")); raw != "" {
		order, err = strconv.Atoi(raw)
		if err != nil {
			return apperrors.NewValidationError("'order' must be integer", nil)
		}
	}

	upload := service.ImageUpload{Order: order}
	if header, err := c.FormFile("image"); err == nil {
		file, err := header.Open()
		if err != nil {
			return apperrors.NewValidationError("'image' file is unreadable", nil)
		}
		defer file.Close()
		upload.FileName = header.Filename
		upload.Content = file
	}

	img, err := h.listings.AddImage(c.UserContext(), user, id, upload)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(imageResponse(img, h.mediaURL))
}

// DeleteImage DELETE /api/catalog/images/:id.
func (h *ListingsHandler) DeleteImage(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.listings.DeleteImage(c.UserContext(), user, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AddFavorite POST /api/catalog/listings/:id/favorite.
func (h *ListingsHandler) AddFavorite(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	added, err := h.favorites.Add(c.UserContext(), user, id)
	if err != nil {
		return err
	}
	status := "exists"
	if added {
		status = "added"
	}
	return c.JSON(dto.FavoriteStatusResponse{Status: status})
}

// RemoveFavorite DELETE /api/catalog/listings/:id/favorite.
func (h *ListingsHandler) RemoveFavorite(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.favorites.Remove(c.UserContext(), user, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListFavorites GET /api/catalog/favorites.
func (h *ListingsHandler) ListFavorites(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	pageReq, err := parsePage(c, h.pagination)
	if err != nil {
		return err
	}
	favs, total, err := h.favorites.List(c.UserContext(), user, pageReq.repo())
	if err != nil {
		return err
	}
	items := make([]dto.FavoriteResponse, 0, len(favs))
	for i := range favs {
		item := dto.FavoriteResponse{ID: favs[i].ID, CreatedAt: favs[i].CreatedAt}
		if favs[i].Listing != nil {
			item.Listing = listingSummary(favs[i].Listing, h.mediaURL)
		}
		items = append(items, item)
	}
	page, err := paginate(pageReq, total, items)
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// parseListingFilter reads the catalog query parameters. Malformed numbers
// are reported per field.
func parseListingFilter(c *fiber.Ctx) (repository.ListingFilter, error) {
	filter := repository.ListingFilter{
		Make:         strings.TrimSpace(c.Query("make")),
		Model:        strings.TrimSpace(c.Query("model")),
		Transmission: strings.TrimSpace(c.Query("transmission")),
		Fuel:         strings.TrimSpace(c.Query("fuel")),
		Body:         strings.TrimSpace(c.Query("body")),
		Drive:        strings.TrimSpace(c.Query("drive")),
		Color:        strings.TrimSpace(c.Query("color")),
		Location:     strings.TrimSpace(c.Query("location")),
		Query:        strings.TrimSpace(c.Query("q")),
		Sort:         repository.ListingSort(strings.TrimSpace(c.Query("sort"))),
	}
	problems := map[string]any{}
	intParam := func(name string) *int {
		raw := strings.TrimSpace(c.Query(name))
		if raw == "" {
			return nil
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			problems[name] = "enter a whole number"
			return nil
		}
		return &v
	}
	floatParam := func(name string) *float64 {
		raw := strings.TrimSpace(c.Query(name))
		if raw == "" {
			return nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			problems[name] = "enter a number"
			return nil
		}
		return &v
	}

	filter.YearMin = intParam("year_min")
	filter.YearMax = intParam("year_max")
	filter.PriceMin = floatParam("price_min")
	filter.PriceMax = floatParam("price_max")
	filter.MileageMax = intParam("mileage_max")
	filter.OwnersCountMax = intParam("owners_count_max")

	if len(problems) > 0 {
		return filter, apperrors.NewValidationError("invalid filter", problems)
	}
	return filter, nil
}

func listingInput(req dto.ListingRequest) service.ListingInput {
	return service.ListingInput{
		MakeID:       req.MakeID,
		CarModelID:   req.CarModelID,
		Year:         req.Year,
		Price:        req.Price,
		Mileage:      req.Mileage,
		Transmission: req.Transmission,
		Fuel:         req.Fuel,
		Body:         req.Body,
		Drive:        req.Drive,
		Condition:    req.Condition,
		Color:        req.Color,
		LocationID:   req.LocationID,
		OwnersCount:  req.OwnersCount,
		VIN:          req.VIN,
		Title:        req.Title,
		Description:  req.Description,
	}
}

func listingSummary(l *domain.Listing, mediaURL URLFunc) dto.ListingSummary {
	summary := dto.ListingSummary{
		ID:        l.ID,
		Title:     l.Title,
		Price:     l.Price,
		Year:      l.Year,
		Mileage:   l.Mileage,
		Make:      l.Make.Name,
		CarModel:  l.CarModel.Name,
		Location:  l.Location.Name,
		Status:    l.Status,
		CreatedAt: l.CreatedAt,
	}
	if l.MainImage != nil {
		url := mediaURL(*l.MainImage)
		summary.MainImage = &url
	}
	return summary
}

func listingDetail(l *domain.Listing, mediaURL URLFunc) dto.ListingDetail {
	images := make([]dto.ListingImageResponse, 0, len(l.Images))
	for i := range l.Images {
		images = append(images, imageResponse(&l.Images[i], mediaURL))
	}
	mk := dto.MakeResponse{ID: l.Make.ID, Name: l.Make.Name}
	return dto.ListingDetail{
		ID:              l.ID,
		Seller:          userRef(l.Seller),
		Make:            mk,
		CarModel:        dto.CarModelResponse{ID: l.CarModel.ID, Name: l.CarModel.Name, Make: mk},
		Year:            l.Year,
		Price:           l.Price,
		Mileage:         l.Mileage,
		Transmission:    l.Transmission,
		Fuel:            l.Fuel,
		Body:            l.Body,
		Drive:           l.Drive,
		Condition:       l.Condition,
		Color:           l.Color,
		Location:        dto.LocationResponse{ID: l.Location.ID, Name: l.Location.Name, Region: l.Location.Region},
		OwnersCount:     l.OwnersCount,
		VIN:             l.VIN,
		Title:           l.Title,
		Description:     l.Description,
		Status:          l.Status,
		RejectionReason: l.RejectionReason,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
		Images:          images,
	}
}

func imageResponse(img *domain.ListingImage, mediaURL URLFunc) dto.ListingImageResponse {
	return dto.ListingImageResponse{
		ID:        img.ID,
		Image:     mediaURL(img.StorageKey),
		Order:     img.Order,
		CreatedAt: img.CreatedAt,
	}
}
