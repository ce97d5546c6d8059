package generate

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mobility-cli/internal/config"
	"github.com/sells-group/mobility-cli/internal/geo"
	"github.com/sells-group/mobility-cli/internal/model"
	"github.com/sells-group/mobility-cli/internal/spatial"
)

func testConfig(t *testing.T, users, days int) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Generation.NUsers = users
	cfg.Generation.Days = days
	cfg.Generation.RandomSeed = 42
	cfg.Privacy.Salt = "test-salt"
	return cfg
}

func newTestGenerator(t *testing.T, cfg *config.Config) *Generator {
	t.Helper()
	sampler, err := geo.NewSampler(cfg)
	require.NoError(t, err)
	indexer, err := spatial.Select(cfg.Indexer.Strategy, cfg.Indexer.Resolution)
	require.NoError(t, err)
	g, err := New(cfg, sampler, indexer)
	require.NoError(t, err)
	return g
}

func newIDHasher(t *testing.T, salt string, start time.Time) *IDHasher {
	t.Helper()
	h, err := NewIDHasher(salt, start, 15)
	require.NoError(t, err)
	return h
}

func TestIDHasher(t *testing.T) {
	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	jan2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	feb1 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	h := newIDHasher(t, "salt", jan1)
	id := h.ID(7)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{12}$`), id)
	assert.Equal(t, id, newIDHasher(t, "salt", jan1).ID(7))
	assert.NotEqual(t, id, h.ID(8))

	assert.Equal(t, id, newIDHasher(t, "salt", jan2).ID(7), "same rotation period")
	assert.NotEqual(t, id, newIDHasher(t, "salt", feb1).ID(7), "next rotation period")
	assert.NotEqual(t, id, newIDHasher(t, "pepper", jan1).ID(7))
}

func TestIDHasher_RequiresSalt(t *testing.T) {
	_, err := NewIDHasher("", time.Now(), 15)
	assert.Error(t, err)
}

func TestRunSalt(t *testing.T) {
	a, err := RunSalt()
	require.NoError(t, err)
	b, err := RunSalt()
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestNew_UnsaltedIDsIgnoreSeed(t *testing.T) {
	cfg := testConfig(t, 5, 7)
	cfg.Privacy.Salt = ""

	start, err := cfg.Generation.Start()
	require.NoError(t, err)
	seedKeyed := newIDHasher(t, strconv.FormatInt(cfg.Generation.RandomSeed, 10), start)

	a := newTestGenerator(t, cfg).Profiles.ids.ID(0)
	b := newTestGenerator(t, cfg).Profiles.ids.ID(0)
	assert.NotEqual(t, a, b, "one-off salts differ between runs")
	assert.NotEqual(t, seedKeyed.ID(0), a)
}

func TestRun_Deterministic(t *testing.T) {
	cfg := testConfig(t, 150, 14)

	a, err := newTestGenerator(t, cfg).Run(context.Background())
	require.NoError(t, err)
	b, err := newTestGenerator(t, cfg).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, a, b)

	cfg2 := testConfig(t, 150, 14)
	cfg2.Generation.RandomSeed = 43
	c, err := newTestGenerator(t, cfg2).Run(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, a.Users, c.Users)
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestGenerator(t, testConfig(t, 10, 7)).Run(ctx)
	assert.Error(t, err)
}

func TestNew_InvalidStart(t *testing.T) {
	cfg := testConfig(t, 10, 7)
	cfg.Generation.StartDate = "not-a-date"
	_, err := New(cfg, nil, spatial.CoordIndexer{})
	assert.Error(t, err)

	cfg.Generation.StartDate = "2024-01-01"
	_, err = New(cfg, nil, spatial.CoordIndexer{})
	assert.Error(t, err)
}

func TestProfiles(t *testing.T) {
	cfg := testConfig(t, 500, 7)
	users := newTestGenerator(t, cfg).Profiles.Generate(500)
	require.Len(t, users, 500)

	ids := map[string]struct{}{}
	for _, u := range users {
		ids[u.UserID] = struct{}{}
		assert.GreaterOrEqual(t, u.InitialWealthScore, 0.0)
		assert.LessOrEqual(t, u.InitialWealthScore, 1.0)
		assert.GreaterOrEqual(t, u.HouseholdSize, 1)
		assert.LessOrEqual(t, u.HouseholdSize, 8)
		assert.Contains(t, cfg.Demographics.PhoneType.Values, u.PhoneType)
		assert.Contains(t, cfg.Demographics.Occupation.Values, u.Occupation)
		assert.NotEmpty(t, u.HomeCell)
		assert.NotEmpty(t, u.Region)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), u.CreatedAt)
		if u.Locality == "Bouake" {
			assert.Equal(t, model.Urban, u.UrbanRural)
		}
	}
	assert.Len(t, ids, 500)
}

func TestInitialWealthOffsets(t *testing.T) {
	cfg := testConfig(t, 2000, 7)
	users := newTestGenerator(t, cfg).Profiles.Generate(2000)

	mean := func(filter func(model.UserProfile) bool) float64 {
		var sum float64
		var n int
		for _, u := range users {
			if filter(u) {
				sum += u.InitialWealthScore
				n++
			}
		}
		require.Positive(t, n)
		return sum / float64(n)
	}

	smart := mean(func(u model.UserProfile) bool { return u.PhoneType == model.PhoneSmartphone })
	basic := mean(func(u model.UserProfile) bool { return u.PhoneType == model.PhoneBasic })
	assert.Greater(t, smart, basic+0.25)
}

func TestUsage(t *testing.T) {
	cfg := testConfig(t, 100, 30)
	g := newTestGenerator(t, cfg)
	users := g.Profiles.Generate(100)
	obs := g.Usage.Generate(users)

	// Weeks start at day 0, 7, 14, 21 and 28.
	require.Len(t, obs, 500)
	assert.Equal(t, "2024-01-29", obs[4].WeekStart)

	antennaID := regexp.MustCompile(`^ANT_\d{3}$`)
	for _, o := range obs {
		assert.GreaterOrEqual(t, o.ContactDiversityScore, 0.0)
		assert.LessOrEqual(t, o.ContactDiversityScore, 1.0)
		assert.GreaterOrEqual(t, o.RechargeAmountFCFA, 0.0)
		assert.GreaterOrEqual(t, o.CallDurationSec, 0)
		assert.GreaterOrEqual(t, o.DataMB, 0.0)
		assert.GreaterOrEqual(t, o.MobilityRadiusKm, 0.1)
		assert.Regexp(t, antennaID, o.AntennaID)
		if o.RechargeFrequencyWeekly == 0 {
			assert.Zero(t, o.RechargeAmountFCFA)
		} else {
			assert.GreaterOrEqual(t, o.RechargeAmountFCFA, 100.0*float64(o.RechargeFrequencyWeekly))
		}
	}
}

func TestMigration_Scenario(t *testing.T) {
	cfg := testConfig(t, 100, 30)
	cfg.Migration.Probability = 0.1
	g := newTestGenerator(t, cfg)
	users := g.Profiles.Generate(100)

	events, err := g.Migrate.Generate(users)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(events), 0)
	assert.LessOrEqual(t, len(events), 20)
	assert.Len(t, events, 10)

	seen := map[string]struct{}{}
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	for _, e := range events {
		assert.NotEqual(t, e.OriginLocality, e.DestinationLocality)
		assert.NotEqual(t, geo.ElsewhereName, e.DestinationLocality)
		assert.Positive(t, e.ResidenceDurationDays)
		assert.GreaterOrEqual(t, e.DistanceKm, 0.0)
		assert.Contains(t, movementTypes, e.MovementType)
		assert.True(t, e.Timestamp.Before(end))
		assert.True(t, strings.HasPrefix(e.PreviousLocations, e.OriginLocality))
		if !e.IsReturnMigration {
			assert.Equal(t, e.OriginLocality, e.PreviousLocations)
		}

		bounds, ok := residenceDays[e.MovementType]
		if !ok {
			bounds = [2]float64{7, 60}
		}
		assert.GreaterOrEqual(t, float64(e.ResidenceDurationDays), bounds[0])
		assert.Less(t, float64(e.ResidenceDurationDays), bounds[1])

		_, dup := seen[e.UserID]
		assert.False(t, dup, "migrants are chosen without replacement")
		seen[e.UserID] = struct{}{}
	}
}

func TestMigration_ZeroProbability(t *testing.T) {
	cfg := testConfig(t, 50, 7)
	cfg.Migration.Probability = 0
	g := newTestGenerator(t, cfg)
	events, err := g.Migrate.Generate(g.Profiles.Generate(50))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMobility(t *testing.T) {
	cfg := testConfig(t, 120, 30)
	cfg.Mobility.SampleCap = 50
	g := newTestGenerator(t, cfg)
	users := g.Profiles.Generate(120)
	trips := g.Mobility.Generate(users)
	require.NotEmpty(t, trips)

	travellers := map[string]struct{}{}
	tripIDs := map[string]struct{}{}
	for _, tr := range trips {
		travellers[tr.UserID] = struct{}{}
		tripIDs[tr.TripID] = struct{}{}

		assert.GreaterOrEqual(t, tr.HourOfDay, 0)
		assert.LessOrEqual(t, tr.HourOfDay, 23)
		assert.Positive(t, tr.DurationMin)
		assert.Positive(t, tr.SpeedKmh)
		assert.GreaterOrEqual(t, tr.DistanceKm, 0.0)
		assert.True(t, tr.Timestamp.Before(time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)), "at most 7 days")
		assert.Equal(t, tr.HourOfDay, tr.Timestamp.Hour())
		assert.True(t, strings.HasPrefix(tr.TripID, "TRIP_"+tr.UserID[:6]+"_"))
		if tr.DistanceKm < 0.99 {
			assert.Equal(t, model.ModeWalking, tr.TransportMode)
		}
	}
	assert.LessOrEqual(t, len(travellers), 50)
	assert.Len(t, tripIDs, len(trips))
}

func TestMobility_FirstTripIsMorning(t *testing.T) {
	cfg := testConfig(t, 60, 7)
	g := newTestGenerator(t, cfg)
	trips := g.Mobility.Generate(g.Profiles.Generate(60))

	for _, tr := range trips {
		if strings.HasSuffix(tr.TripID, "_0") {
			assert.Equal(t, model.PurposeHomeToWork, tr.TripPurpose)
			assert.GreaterOrEqual(t, tr.HourOfDay, 5)
			assert.LessOrEqual(t, tr.HourOfDay, 10)
		}
		if tr.TripPurpose == model.PurposeWorkToHome {
			assert.GreaterOrEqual(t, tr.HourOfDay, 16)
			assert.LessOrEqual(t, tr.HourOfDay, 22)
		}
	}
}

func TestChooseMode(t *testing.T) {
	g := newTestGenerator(t, testConfig(t, 1, 7))
	s := g.src.Stream("mode")

	for i := 0; i < 200; i++ {
		mode, speed := chooseMode(s, 0.5, 0.9)
		assert.Equal(t, model.ModeWalking, mode)
		assert.True(t, speed >= 4 && speed < 6)

		mode, speed = chooseMode(s, 10, 0.8)
		assert.Contains(t, longRichModes, mode)
		assert.True(t, speed >= 25 && speed < 50)

		mode, _ = chooseMode(s, 2, 0.2)
		assert.Contains(t, shortModes, mode)
	}
}
