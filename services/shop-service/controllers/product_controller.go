package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/yashrajoria/shopnow-backend/services/common/errors"
	"github.com/yashrajoria/shopnow-backend/services/common/logger"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/services"
)

type ProductController struct {
	products  *services.ProductService
	validator *RequestValidator
}

func NewProductController(products *services.ProductService, validator *RequestValidator) *ProductController {
	return &ProductController{products: products, validator: validator}
}

// List serves GET /products with the flt, sort, fields and limit query parameters.
func (pc *ProductController) List(c *gin.Context) {
	page, err := pc.products.List(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.List(c, page.Result, gin.H{"doc": page.Data})
}

func (pc *ProductController) Get(c *gin.Context) {
	id, err := ObjectIDParam(c, "Id")
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	body, err := pc.products.Get(c.Request.Context(), id)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.OK(c, http.StatusOK, gin.H{"doc": body})
}

func (pc *ProductController) Create(c *gin.Context) {
	var req services.CreateProductRequest
	if err := pc.validator.BindJSON(c, &req); err != nil {
		apperrors.Abort(c, err)
		return
	}
	product, err := pc.products.Create(c.Request.Context(), req)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	logger.Info(c, "Product created", zap.String("product_id", product.ID.Hex()))
	apperrors.OK(c, http.StatusCreated, gin.H{"doc": product})
}

func (pc *ProductController) Update(c *gin.Context) {
	id, err := ObjectIDParam(c, "Id")
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	var req services.UpdateProductRequest
	if err := pc.validator.BindJSON(c, &req); err != nil {
		apperrors.Abort(c, err)
		return
	}
	product, err := pc.products.Update(c.Request.Context(), id, req)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.OK(c, http.StatusOK, gin.H{"doc": product})
}

func (pc *ProductController) Delete(c *gin.Context) {
	id, err := ObjectIDParam(c, "Id")
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	if err := pc.products.Delete(c.Request.Context(), id); err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MostPopular returns one image per category for the storefront landing page.
func (pc *ProductController) MostPopular(c *gin.Context) {
	highlights, err := pc.products.MostPopular(c.Request.Context())
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.OK(c, http.StatusOK, gin.H{"products": highlights})
}

// PresignImage hands out an S3 upload URL for a new product image.
func (pc *ProductController) PresignImage(c *gin.Context) {
	id, err := ObjectIDParam(c, "Id")
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	var req services.ImageUploadRequest
	if err := pc.validator.BindJSON(c, &req); err != nil {
		apperrors.Abort(c, err)
		return
	}
	upload, err := pc.products.PresignImageUpload(c.Request.Context(), id, req)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.OK(c, http.StatusOK, gin.H{"upload": upload})
}
