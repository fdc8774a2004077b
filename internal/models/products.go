package models

import (
	"github.com/bitumen-hub/catalog-assistant/internal/datatypes"
)

// Product is a catalog product as read by the assistant. The catalog owns the row.
type Product struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	CategoryID   *int64        `json:"category_id,omitempty"`
	CategoryName string        `json:"category_name,omitempty"`
	Description  string        `json:"description,omitempty"`
	IsDeleted    bool          `json:"is_deleted"`
	Files        []ProductFile `json:"files,omitempty"`
}

// ProductFile is an uploaded document attached to a product. FilePath is a local path from the blob store.
type ProductFile struct {
	ID           int64  `json:"id"`
	ProductID    int64  `json:"product_id"`
	FilePath     string `json:"file_path"`
	OriginalName string `json:"original_name,omitempty"`
}

// CatalogEvent is a catalog mutation notification, delivered after commit.
// Delivery is at-least-once with no ordering guarantee across products.
type CatalogEvent struct {
	Event     datatypes.EventType `json:"event"      validate:"required"`
	ProductID int64               `json:"product_id" validate:"required,gt=0"`
	Name      string              `json:"name,omitempty"`
	IsDeleted bool                `json:"is_deleted,omitempty"`
	FilePath  string              `json:"file_path,omitempty"`
}

// Removes reports whether the event means the product's chunks must be dropped.
func (e CatalogEvent) Removes() bool {
	return e.Event == datatypes.ProductDeleted || e.IsDeleted
}
