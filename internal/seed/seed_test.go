package seed

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mechanico/internal/config"
	"mechanico/internal/modules/catalog"
	"mechanico/internal/modules/matching"
	"mechanico/internal/modules/provider"
	"mechanico/internal/types"
)

func TestMemory_NearbyJumpStart(t *testing.T) {
	cat := catalog.NewMemoryStore()
	prov := provider.NewMemoryStore(cat)
	Memory(cat, prov)

	log, _ := test.NewNullLogger()
	svc := matching.NewService(provider.NewService(prov), config.MatchingConfig{DefaultRadiusKm: 10, MaxRadiusKm: 50}, log)

	got, err := svc.FindNearby(context.Background(), matching.NearbyQuery{
		OfferingID: "O1",
		Origin:     types.Point{Lat: 35.6900, Lng: 51.3400},
		RadiusKm:   10,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, types.ID("P1"), got[0].Provider.ID)
	assert.Equal(t, 4.43, got[0].DistanceKm)
	assert.Equal(t, 4.5, got[0].AverageRating)
	assert.Equal(t, types.ID("P2"), got[1].Provider.ID)
}

func TestMemory_OwnedAndInactiveOfferings(t *testing.T) {
	cat := catalog.NewMemoryStore()
	prov := provider.NewMemoryStore(cat)
	Memory(cat, prov)
	ctx := context.Background()

	offers, err := cat.ProviderOffers(ctx, "P3", "O4")
	require.NoError(t, err)
	assert.True(t, offers, "owner offers its own offering")

	active := true
	list, err := cat.ListOfferings(ctx, catalog.Filter{Active: &active})
	require.NoError(t, err)
	assert.Len(t, list, len(Offerings)-1)

	// P4 offers O2 but is unavailable.
	cands, err := prov.Candidates(ctx, "O2")
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, types.ID("P1"), cands[0].Profile.ID)
}
