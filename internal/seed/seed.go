// README: Demo data for running against the memory store.
package seed

import (
	"mechanico/internal/modules/catalog"
	"mechanico/internal/modules/provider"
	"mechanico/internal/types"
)

// Offerings, providers and vehicles around central Tehran.
var (
	Offerings = []catalog.Offering{
		{ID: "O1", Category: "roadside", Name: "Battery jump start", Description: "On-site jump start or battery swap", BasePrice: types.NewMoney(850000), DurationMin: 60, Active: true},
		{ID: "O2", Category: "roadside", Name: "Flat tire repair", BasePrice: types.NewMoney(450000), DurationMin: 45, Active: true},
		{ID: "O3", Category: "diagnostics", Name: "Engine diagnostics", Description: "OBD scan and report", BasePrice: types.NewMoney(1200000), DurationMin: 90, Active: true},
		{ID: "O4", ProviderID: "P3", Category: "towing", Name: "City towing", BasePrice: types.NewMoney(2500000), DurationMin: 120, Active: true},
		{ID: "O5", Category: "roadside", Name: "Fuel delivery", BasePrice: types.NewMoney(300000), DurationMin: 30, Active: false},
	}

	Providers = []provider.Profile{
		{ID: "P1", DisplayName: "Ali Rezaei", BusinessName: "Rezaei Auto", Specializations: []string{"electrical", "tires"}, TrustScore: 92, Available: true, Position: &types.Point{Lat: 35.6892, Lng: 51.3890}},
		{ID: "P2", DisplayName: "Sara Ahmadi", Specializations: []string{"diagnostics"}, TrustScore: 88, Available: true, Position: &types.Point{Lat: 35.7000, Lng: 51.4100}},
		{ID: "P3", DisplayName: "Reza Karimi", BusinessName: "Karimi Towing", Specializations: []string{"towing"}, TrustScore: 75, Available: true, Position: &types.Point{Lat: 35.7200, Lng: 51.3500}},
		{ID: "P4", DisplayName: "Mina Hosseini", Specializations: []string{"tires"}, TrustScore: 60, Available: false, Position: &types.Point{Lat: 35.6950, Lng: 51.3450}},
	}

	links = [][2]types.ID{
		{"P1", "O1"}, {"P1", "O2"},
		{"P2", "O1"}, {"P2", "O3"},
		{"P4", "O2"},
	}

	ratings = map[types.ID][]int{
		"P1": {5, 4},
		"P2": {5},
		"P3": {3, 4, 4},
	}

	Vehicles = []catalog.Vehicle{
		{ID: "V1", OwnerID: "C1"},
		{ID: "V2", OwnerID: "C2"},
		{ID: "V3", OwnerID: "C1"},
	}
)

// Memory loads the demo data into the memory stores.
func Memory(cat *catalog.MemoryStore, prov *provider.MemoryStore) {
	for _, o := range Offerings {
		cat.PutOffering(o)
	}
	for _, l := range links {
		cat.Link(l[0], l[1])
	}
	for _, v := range Vehicles {
		cat.PutVehicle(v)
	}
	for _, p := range Providers {
		prov.Put(p)
	}
	for id, scores := range ratings {
		for _, s := range scores {
			prov.AddRating(id, s)
		}
	}
}
