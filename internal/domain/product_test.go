package domain

import (
	"errors"
	"testing"
)

func TestParseProduct_Variants(t *testing.T) {
	p, err := ParseProduct(ProductOrder{Type: "premium_itinerary", DestinationID: " Lisbon-Portugal "})
	if err != nil {
		t.Fatalf("itinerary: %v", err)
	}
	g, ok := p.(ItineraryGuide)
	if !ok {
		t.Fatalf("want ItineraryGuide, got %T", p)
	}
	if g.Destination != "lisbon-portugal" || g.Days != DefaultItineraryDays {
		t.Fatalf("unexpected itinerary: %+v", g)
	}

	p, err = ParseProduct(ProductOrder{Type: "snowbird_toolkit"})
	if err != nil {
		t.Fatalf("toolkit: %v", err)
	}
	if p.StaticAsset() != ToolkitAsset || p.DestinationID() != "" {
		t.Fatalf("toolkit should be a static product without destination")
	}

	p, err = ParseProduct(ProductOrder{Type: "nomad_package", DestinationID: "chiang-mai"})
	if err != nil {
		t.Fatalf("nomad: %v", err)
	}
	if n, ok := p.(NomadPackage); !ok || n.BonusAsset() == "" {
		t.Fatalf("want NomadPackage with bonus asset, got %#v", p)
	}
	if p.StaticAsset() != "" {
		t.Fatalf("nomad package is generated")
	}

	p, err = ParseProduct(ProductOrder{Type: "pet_guide", DestinationID: "austin"})
	if err != nil || p.Type() != ProductPetGuide {
		t.Fatalf("pet guide: %v %v", p, err)
	}
}

func TestParseProduct_Rejects(t *testing.T) {
	bad := []ProductOrder{
		{},
		{Type: "gift_card"},
		{Type: "premium_itinerary"},
		{Type: "pet_guide", DestinationID: "Not A Slug!"},
		{Type: "premium_itinerary", DestinationID: "paris", Days: 30},
		{Type: "nomad_package"},
	}
	for _, o := range bad {
		if _, err := ParseProduct(o); !errors.Is(err, ErrInvalidProduct) {
			t.Fatalf("ParseProduct(%+v) err=%v; want ErrInvalidProduct", o, err)
		}
	}
}

func TestProductOf_RoundTrip(t *testing.T) {
	dest := "kyoto"
	p := &Purchase{ProductType: ProductItinerary, DestinationID: &dest, Days: 3}
	prod, err := ProductOf(p)
	if err != nil {
		t.Fatalf("ProductOf: %v", err)
	}
	if prod.DestinationID() != "kyoto" || prod.(ItineraryGuide).Days != 3 {
		t.Fatalf("unexpected product %#v", prod)
	}
	if prod.PriceCents() <= 0 || prod.Title() == "" {
		t.Fatalf("product must carry price and title")
	}
}
