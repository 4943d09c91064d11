package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultAvgRating is the rating a product carries until it receives reviews.
const DefaultAvgRating = 4.5

type Product struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Brand           string             `bson:"brand" json:"brand"`
	Title           string             `bson:"title" json:"title"`
	Image           string             `bson:"image" json:"image"`
	Images          []string           `bson:"images,omitempty" json:"images,omitempty"`
	Selection       map[string]any     `bson:"selection" json:"selection"`
	Discription     string             `bson:"discription,omitempty" json:"discription,omitempty"`
	Price           float64            `bson:"price" json:"price"`
	DiscountPrice   float64            `bson:"discountPrice" json:"discountPrice"`
	AvgRating       float64            `bson:"avgRating" json:"avgRating"`
	RatingsQuantity int                `bson:"ratingsQuantity" json:"ratingsQuantity"`
	ReviewsQuantity int                `bson:"reviewsQuantity" json:"reviewsQuantity"`
	LaunchDate      time.Time          `bson:"launchDate" json:"launchDate"`
	Gender          []string           `bson:"gender,omitempty" json:"gender,omitempty"`
	Seller          string             `bson:"seller" json:"seller"`
	Category        string             `bson:"category" json:"category"`
}

// ProductSummary is the slice of a product embedded in cart, order and review responses.
type ProductSummary struct {
	ID            primitive.ObjectID `bson:"_id" json:"_id"`
	Brand         string             `bson:"brand,omitempty" json:"brand,omitempty"`
	Title         string             `bson:"title,omitempty" json:"title,omitempty"`
	Image         string             `bson:"image,omitempty" json:"image,omitempty"`
	Price         float64            `bson:"price,omitempty" json:"price,omitempty"`
	DiscountPrice float64            `bson:"discountPrice,omitempty" json:"discountPrice,omitempty"`
}

// Summary projects p onto the fields shown next to carts and orders.
func (p *Product) Summary() ProductSummary {
	return ProductSummary{
		ID:            p.ID,
		Brand:         p.Brand,
		Title:         p.Title,
		Image:         p.Image,
		Price:         p.Price,
		DiscountPrice: p.DiscountPrice,
	}
}

// RatingStats are the derived review aggregates stored on a product.
type RatingStats struct {
	AvgRating       float64 `bson:"avgRating"`
	RatingsQuantity int     `bson:"ratingsQuantity"`
	ReviewsQuantity int     `bson:"reviewsQuantity"`
}

// DefaultRatingStats is what a product without reviews reports.
func DefaultRatingStats() RatingStats {
	return RatingStats{AvgRating: DefaultAvgRating}
}

// CategoryHighlight is one entry of the most-popular listing.
type CategoryHighlight struct {
	Category string `bson:"category" json:"category"`
	Image    string `bson:"image" json:"image"`
}

// ProductDetail is a product with its reviews expanded.
type ProductDetail struct {
	Product `bson:",inline"`
	Reviews []ReviewView `bson:"-" json:"reviews"`
}
