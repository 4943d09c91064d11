package services

import (
	"context"
	"encoding/json"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	apperrors "github.com/yashrajoria/shopnow-backend/services/common/errors"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/models"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/query"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/repository"
)

const imageUploadExpiry = 15 * time.Minute

type CreateProductRequest struct {
	Brand         string         `json:"brand" validate:"required"`
	Title         string         `json:"title" validate:"required,max=50"`
	Image         string         `json:"image" validate:"required"`
	Images        []string       `json:"images"`
	Selection     map[string]any `json:"selection" validate:"required"`
	Discription   string         `json:"discription"`
	Price         float64        `json:"price" validate:"required,gt=0"`
	DiscountPrice float64        `json:"discountPrice" validate:"gte=0"`
	LaunchDate    *time.Time     `json:"launchDate"`
	Gender        []string       `json:"gender"`
	Seller        string         `json:"seller" validate:"required"`
	Category      string         `json:"category" validate:"required"`
}

// UpdateProductRequest is a partial update; nil fields are left alone. Rating
// aggregates are not settable.
type UpdateProductRequest struct {
	Brand         *string         `json:"brand" validate:"omitempty,min=1"`
	Title         *string         `json:"title" validate:"omitempty,min=1,max=50"`
	Image         *string         `json:"image"`
	Images        *[]string       `json:"images"`
	Selection     *map[string]any `json:"selection"`
	Discription   *string         `json:"discription"`
	Price         *float64        `json:"price" validate:"omitempty,gt=0"`
	DiscountPrice *float64        `json:"discountPrice" validate:"omitempty,gte=0"`
	LaunchDate    *time.Time      `json:"launchDate"`
	Gender        *[]string       `json:"gender"`
	Seller        *string         `json:"seller"`
	Category      *string         `json:"category"`
}

type ImageUploadRequest struct {
	Filename    string `json:"filename" validate:"required"`
	ContentType string `json:"contentType" validate:"required"`
}

// ImageUpload tells the client where to PUT the file.
type ImageUpload struct {
	URL     string            `json:"url"`
	Key     string            `json:"key"`
	Headers map[string]string `json:"headers,omitempty"`
}

// ImagePresigner issues upload URLs for product images.
type ImagePresigner interface {
	PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, map[string]string, error)
}

// ListPage is a cached list response.
type ListPage struct {
	Result int             `json:"result"`
	Data   json.RawMessage `json:"data"`
}

type ProductService struct {
	products  repository.ProductRepository
	reviews   repository.ReviewRepository
	users     repository.UserRepository
	cache     *CacheManager
	presigner ImagePresigner
	log       *zap.Logger
}

func NewProductService(products repository.ProductRepository, reviews repository.ReviewRepository, users repository.UserRepository, cache *CacheManager, presigner ImagePresigner, log *zap.Logger) *ProductService {
	if log == nil {
		log = zap.L()
	}
	if cache == nil {
		cache = NewCacheManager(nil, 0, nil)
	}
	return &ProductService{products: products, reviews: reviews, users: users, cache: cache, presigner: presigner, log: log}
}

// List serves the catalog listing, from cache when possible.
func (s *ProductService) List(ctx context.Context, values url.Values) (*ListPage, error) {
	spec, err := query.Parse(values)
	if err != nil {
		return nil, err
	}

	if body, ok := s.cache.GetProductList(ctx, values); ok {
		var page ListPage
		if err := json.Unmarshal(body, &page); err == nil {
			return &page, nil
		}
	}

	docs, err := s.products.List(ctx, spec)
	if err != nil {
		return nil, storeError(err, "No products found")
	}
	data, err := json.Marshal(docs)
	if err != nil {
		return nil, apperrors.Internal("Failed to encode products", err)
	}

	page := &ListPage{Result: len(docs), Data: data}
	if body, err := json.Marshal(page); err == nil {
		s.cache.SetProductListAsync(values, body)
	}
	return page, nil
}

// Get returns one product with its reviews expanded, encoded as JSON.
func (s *ProductService) Get(ctx context.Context, id primitive.ObjectID) (json.RawMessage, error) {
	if body, ok := s.cache.GetProduct(ctx, id.Hex()); ok {
		return body, nil
	}

	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "No product found with that ID")
	}

	reviews, err := s.reviews.FindByProduct(ctx, &id)
	if err != nil {
		return nil, storeError(err, "")
	}
	views, err := expandReviews(ctx, s.products, s.users, reviews)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(models.ProductDetail{Product: *product, Reviews: views})
	if err != nil {
		return nil, apperrors.Internal("Failed to encode product", err)
	}
	s.cache.SetProductAsync(id.Hex(), body)
	return body, nil
}

func (s *ProductService) Create(ctx context.Context, req CreateProductRequest) (*models.Product, error) {
	launch := time.Now().UTC()
	if req.LaunchDate != nil {
		launch = req.LaunchDate.UTC()
	}

	product := &models.Product{
		ID:            primitive.NewObjectID(),
		Brand:         normalizeBrand(req.Brand),
		Title:         strings.TrimSpace(req.Title),
		Image:         req.Image,
		Images:        req.Images,
		Selection:     req.Selection,
		Discription:   req.Discription,
		Price:         req.Price,
		DiscountPrice: req.DiscountPrice,
		AvgRating:     models.DefaultAvgRating,
		LaunchDate:    launch,
		Gender:        req.Gender,
		Seller:        req.Seller,
		Category:      req.Category,
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, storeError(err, "")
	}

	s.cache.InvalidateProduct(ctx, product.ID.Hex())
	s.log.Info("Product created", zap.String("product_id", product.ID.Hex()))
	return product, nil
}

func (s *ProductService) Update(ctx context.Context, id primitive.ObjectID, req UpdateProductRequest) (*models.Product, error) {
	set := bson.M{}
	if req.Brand != nil {
		set["brand"] = normalizeBrand(*req.Brand)
	}
	if req.Title != nil {
		set["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Image != nil {
		set["image"] = *req.Image
	}
	if req.Images != nil {
		set["images"] = *req.Images
	}
	if req.Selection != nil {
		set["selection"] = *req.Selection
	}
	if req.Discription != nil {
		set["discription"] = *req.Discription
	}
	if req.Price != nil {
		set["price"] = *req.Price
	}
	if req.DiscountPrice != nil {
		set["discountPrice"] = *req.DiscountPrice
	}
	if req.LaunchDate != nil {
		set["launchDate"] = req.LaunchDate.UTC()
	}
	if req.Gender != nil {
		set["gender"] = *req.Gender
	}
	if req.Seller != nil {
		set["seller"] = *req.Seller
	}
	if req.Category != nil {
		set["category"] = *req.Category
	}
	if len(set) == 0 {
		return nil, apperrors.Validation("No updatable fields provided", nil)
	}

	product, err := s.products.Update(ctx, id, set)
	if err != nil {
		return nil, storeError(err, "No product found with that ID")
	}
	s.cache.InvalidateProduct(ctx, id.Hex())
	return product, nil
}

func (s *ProductService) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, err := s.products.Delete(ctx, id); err != nil {
		return storeError(err, "No product found with that ID")
	}
	s.cache.InvalidateProduct(ctx, id.Hex())
	s.log.Info("Product deleted", zap.String("product_id", id.Hex()))
	return nil
}

func (s *ProductService) MostPopular(ctx context.Context) ([]models.CategoryHighlight, error) {
	highlights, err := s.products.MostPopular(ctx)
	if err != nil {
		return nil, storeError(err, "")
	}
	return highlights, nil
}

// PresignImageUpload returns an upload URL for a new image of the product.
func (s *ProductService) PresignImageUpload(ctx context.Context, id primitive.ObjectID, req ImageUploadRequest) (*ImageUpload, error) {
	if s.presigner == nil {
		return nil, apperrors.Internal("Image uploads are not configured", nil)
	}
	if !strings.HasPrefix(req.ContentType, "image/") {
		return nil, apperrors.Validation("Only image uploads are allowed", nil)
	}
	if _, err := s.products.FindByID(ctx, id); err != nil {
		return nil, storeError(err, "No product found with that ID")
	}

	key := "products/" + id.Hex() + "/" + uuid.NewString() + strings.ToLower(path.Ext(req.Filename))
	uploadURL, headers, err := s.presigner.PresignPut(ctx, key, req.ContentType, imageUploadExpiry)
	if err != nil {
		return nil, apperrors.Upstream("Failed to create upload URL", err)
	}
	return &ImageUpload{URL: uploadURL, Key: key, Headers: headers}, nil
}

func normalizeBrand(brand string) string {
	return strings.ToUpper(strings.TrimSpace(brand))
}
