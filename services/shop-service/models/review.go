package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MinReviewBodyLength is the body length a review must exceed to count as written.
const MinReviewBodyLength = 1

type Review struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Rating    float64            `bson:"rating" json:"rating"`
	Review    string             `bson:"review" json:"review"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	Product   primitive.ObjectID `bson:"product" json:"product"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	Modified  bool               `bson:"modified" json:"modified"`
}

type ReviewView struct {
	ID        primitive.ObjectID `json:"_id"`
	Rating    float64            `json:"rating"`
	Review    string             `json:"review"`
	CreatedAt time.Time          `json:"createdAt"`
	Product   *ProductSummary    `json:"product"`
	User      *UserSummary       `json:"user,omitempty"`
	Modified  bool               `json:"modified"`
}

// View expands the review; a nil user omits the author.
func (r *Review) View(product *ProductSummary, user *UserSummary) ReviewView {
	if product == nil {
		product = &ProductSummary{ID: r.Product}
	}
	return ReviewView{
		ID:        r.ID,
		Rating:    r.Rating,
		Review:    r.Review,
		CreatedAt: r.CreatedAt,
		Product:   product,
		User:      user,
		Modified:  r.Modified,
	}
}
