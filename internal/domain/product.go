package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ProductType enumerates the guides that can be purchased.
type ProductType string

const (
	ProductItinerary ProductType = "premium_itinerary"
	ProductToolkit   ProductType = "snowbird_toolkit"
	ProductPetGuide  ProductType = "pet_guide"
	ProductNomad     ProductType = "nomad_package"
)

// Static asset file names under the static assets directory.
const (
	ToolkitAsset    = "snowbird-toolkit.pdf"
	NomadBonusAsset = "nomad-visa-checklist.pdf"
)

// Default itinerary length bounds.
const (
	DefaultItineraryDays = 5
	MaxItineraryDays     = 14
)

// ErrInvalidProduct is returned when an order does not describe a sellable product.
var ErrInvalidProduct = errors.New("invalid product")

// Product is a purchasable item. Each variant carries exactly the fields it
// needs; construct one with ParseProduct so it is validated once.
type Product interface {
	Type() ProductType
	Title() string
	PriceCents() int64
	// DestinationID returns the catalog reference, or "" when the product
	// is not tied to a destination.
	DestinationID() string
	// StaticAsset returns the pre-built file that fulfils the product, or ""
	// when the product is generated.
	StaticAsset() string
}

// ItineraryGuide is a day-by-day generated guide for one destination.
type ItineraryGuide struct {
	Destination string
	Days        int
}

func (ItineraryGuide) Type() ProductType       { return ProductItinerary }
func (ItineraryGuide) Title() string           { return "Premium Itinerary" }
func (ItineraryGuide) PriceCents() int64       { return 2999 }
func (g ItineraryGuide) DestinationID() string { return g.Destination }
func (ItineraryGuide) StaticAsset() string     { return "" }

// ChecklistToolkit is the pre-built snowbird toolkit.
type ChecklistToolkit struct{}

func (ChecklistToolkit) Type() ProductType     { return ProductToolkit }
func (ChecklistToolkit) Title() string         { return "Snowbird Toolkit" }
func (ChecklistToolkit) PriceCents() int64     { return 1999 }
func (ChecklistToolkit) DestinationID() string { return "" }
func (ChecklistToolkit) StaticAsset() string   { return ToolkitAsset }

// PetGuide is a generated pet-travel guide for one destination.
type PetGuide struct {
	Destination string
}

func (PetGuide) Type() ProductType       { return ProductPetGuide }
func (PetGuide) Title() string           { return "Pet Travel Guide" }
func (PetGuide) PriceCents() int64       { return 2499 }
func (g PetGuide) DestinationID() string { return g.Destination }
func (PetGuide) StaticAsset() string     { return "" }

// NomadPackage is a generated remote-work guide plus a static bonus checklist.
type NomadPackage struct {
	Destination string
}

func (NomadPackage) Type() ProductType       { return ProductNomad }
func (NomadPackage) Title() string           { return "Digital Nomad Package" }
func (NomadPackage) PriceCents() int64       { return 3499 }
func (g NomadPackage) DestinationID() string { return g.Destination }
func (NomadPackage) StaticAsset() string     { return "" }

// BonusAsset is the static checklist delivered alongside the generated guide.
func (NomadPackage) BonusAsset() string { return NomadBonusAsset }

// ProductOrder is the loosely typed boundary form of a product selection as
// it arrives from a client or is read back from a Purchase row.
type ProductOrder struct {
	Type          string `json:"product_type"   validate:"required,oneof=premium_itinerary snowbird_toolkit pet_guide nomad_package"`
	DestinationID string `json:"destination_id" validate:"omitempty,slug,max=64"`
	Days          int    `json:"days"           validate:"gte=0,lte=14"`
}

var (
	productValidate *validator.Validate
	slugRE          = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

func init() {
	productValidate = validator.New()
	_ = productValidate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return IsSlug(fl.Field().String())
	})
}

// IsSlug reports whether s is a lower-case, hyphen-separated identifier.
func IsSlug(s string) bool { return slugRE.MatchString(s) }

// ParseProduct validates an order and returns the matching Product variant.
func ParseProduct(o ProductOrder) (Product, error) {
	o.Type = strings.TrimSpace(o.Type)
	o.DestinationID = strings.ToLower(strings.TrimSpace(o.DestinationID))
	if err := productValidate.Struct(o); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProduct, err)
	}

	needDest := func() error {
		if o.DestinationID == "" {
			return fmt.Errorf("%w: %s requires a destination", ErrInvalidProduct, o.Type)
		}
		return nil
	}

	switch ProductType(o.Type) {
	case ProductItinerary:
		if err := needDest(); err != nil {
			return nil, err
		}
		days := o.Days
		if days == 0 {
			days = DefaultItineraryDays
		}
		return ItineraryGuide{Destination: o.DestinationID, Days: days}, nil
	case ProductToolkit:
		return ChecklistToolkit{}, nil
	case ProductPetGuide:
		if err := needDest(); err != nil {
			return nil, err
		}
		return PetGuide{Destination: o.DestinationID}, nil
	case ProductNomad:
		if err := needDest(); err != nil {
			return nil, err
		}
		return NomadPackage{Destination: o.DestinationID}, nil
	}
	return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidProduct, o.Type)
}

// ProductOf rebuilds the Product a stored purchase was sold as.
func ProductOf(p *Purchase) (Product, error) {
	o := ProductOrder{Type: string(p.ProductType), Days: p.Days}
	if p.DestinationID != nil {
		o.DestinationID = *p.DestinationID
	}
	return ParseProduct(o)
}
