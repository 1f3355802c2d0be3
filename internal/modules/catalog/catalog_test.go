package catalog

import (
	"context"
	"errors"
	"testing"

	"mechanico/internal/types"
)

func newTestService() (*Service, *MemoryStore) {
	m := NewMemoryStore()
	m.PutOffering(Offering{ID: "o-battery", Category: "battery", Name: "Jump start", BasePrice: types.NewMoney(500000), DurationMin: 30, Active: true})
	m.PutOffering(Offering{ID: "o-tire", Category: "tire", Name: "Flat tire", BasePrice: types.NewMoney(300000), DurationMin: 45, Active: true})
	m.PutOffering(Offering{ID: "o-old", Category: "tire", Name: "Balancing", BasePrice: types.NewMoney(200000), DurationMin: 20, Active: false})
	m.Link("p1", "o-battery")
	m.PutVehicle(Vehicle{ID: "v1", OwnerID: "c1"})
	return NewService(m), m
}

func TestList_Filters(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	all, err := svc.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 offerings, got %d", len(all))
	}

	active := true
	tires, err := svc.List(ctx, Filter{Category: "tire", Active: &active})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tires) != 1 || tires[0].ID != "o-tire" {
		t.Fatalf("unexpected filter result: %+v", tires)
	}
}

func TestGetOffering_NotFound(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.GetOffering(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProviderOffers(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	ok, _ := svc.ProviderOffers(ctx, "p1", "o-battery")
	if !ok {
		t.Fatalf("p1 should offer o-battery")
	}
	ok, _ = svc.ProviderOffers(ctx, "p1", "o-tire")
	if ok {
		t.Fatalf("p1 should not offer o-tire")
	}
}

func TestVehicleOwnedBy(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if err := svc.VehicleOwnedBy(ctx, "v1", "c1"); err != nil {
		t.Fatalf("owner check: %v", err)
	}
	if err := svc.VehicleOwnedBy(ctx, "v1", "c2"); !errors.Is(err, ErrVehicleNotFound) {
		t.Fatalf("expected ErrVehicleNotFound for foreign vehicle, got %v", err)
	}
	if err := svc.VehicleOwnedBy(ctx, "v9", "c1"); !errors.Is(err, ErrVehicleNotFound) {
		t.Fatalf("expected ErrVehicleNotFound for unknown vehicle, got %v", err)
	}
}
