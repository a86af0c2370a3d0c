package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	Price       float64            `bson:"price" json:"price"`
	// Stylist owns the product and receives order notifications for it.
	Stylist   primitive.ObjectID `bson:"stylist" json:"stylist"`
	Images    []string           `bson:"images" json:"images"`
	Stock     int                `bson:"stock" json:"stock"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
