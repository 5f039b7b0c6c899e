package models

import (
	"time"

	"tally/pkg/guard"
)

// Category groups products; it carries no derived state. The name doubles as
// the identifier, matching the product id slugs built from it.
type Category struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"-"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Version     int64     `json:"-"`
}

func NewCategory(ownerID, name, description string, now time.Time) (*Category, error) {
	if err := guard.RequireNotBlank("category name", name); err != nil {
		return nil, err
	}
	return &Category{
		ID:          name,
		OwnerID:     ownerID,
		Name:        name,
		Description: description,
		CreatedAt:   now,
	}, nil
}

// Update replaces the mutable fields. The id stays fixed even when the name
// changes so existing product references hold.
func (c *Category) Update(name, description string) error {
	if err := guard.RequireNotBlank("category name", name); err != nil {
		return err
	}
	c.Name = name
	c.Description = description
	return nil
}
