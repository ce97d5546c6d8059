// Package wealth computes a bounded wealth index from usage behaviour, assigns quintiles
// and measures inequality and multidimensional deprivation.
package wealth

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mobility-cli/internal/dataset"
	"github.com/sells-group/mobility-cli/internal/model"
	"github.com/sells-group/mobility-cli/internal/stats"
)

// Base usage features averaged per user.
const (
	FeatureRechargeAmount    = "recharge_amount_fcfa"
	FeatureRechargeFrequency = "recharge_frequency_weekly"
	FeatureCallDuration      = "call_duration_sec"
	FeatureDataMB            = "data_mb"
	FeatureContactDiversity  = "contact_diversity_score"
	FeatureMobilityRadius    = "mobility_radius_km"

	FeaturePhoneEncoded        = "phone_type_encoded"
	FeatureSubscriptionEncoded = "subscription_encoded"

	logSuffix = "_log"
)

// BaseFeatures lists the averaged usage features in matrix order.
var BaseFeatures = []string{
	FeatureRechargeAmount,
	FeatureRechargeFrequency,
	FeatureCallDuration,
	FeatureDataMB,
	FeatureContactDiversity,
	FeatureMobilityRadius,
}

var logFeatures = map[string]bool{
	FeatureRechargeAmount: true,
	FeatureCallDuration:   true,
	FeatureDataMB:         true,
}

var phoneCodes = map[string]float64{
	model.PhoneBasic:      0,
	model.PhoneFeature:    1,
	model.PhoneSmartphone: 2,
}

var subscriptionCodes = map[string]float64{
	model.Prepaid:  0,
	model.Postpaid: 1,
}

// Options controls which derived features are added to the matrix.
type Options struct {
	LogFeatures   bool
	EncodeProfile bool
}

// Matrix is the per-user feature matrix. Rows follow UserIDs; columns follow Features.
type Matrix struct {
	UserIDs  []string
	Regions  []string
	Features []string
	Rows     [][]float64
	Omitted  []string

	raw map[string][]float64
}

// Len returns the number of users.
func (m *Matrix) Len() int { return len(m.UserIDs) }

// Raw returns the per-user mean of a base feature before any transformation, or nil
// when the feature was not available.
func (m *Matrix) Raw(feature string) []float64 {
	return m.raw[feature]
}

// Column returns a copy of one matrix column, or nil.
func (m *Matrix) Column(feature string) []float64 {
	for j, f := range m.Features {
		if f != feature {
			continue
		}
		out := make([]float64, len(m.Rows))
		for i, row := range m.Rows {
			out[i] = row[j]
		}
		return out
	}
	return nil
}

type userAgg struct {
	id           string
	region       string
	phone        string
	subscription string
	sums         map[string]float64
	counts       map[string]int
}

func (u *userAgg) add(feature string, v float64) {
	if math.IsNaN(v) {
		return
	}
	u.sums[feature] += v
	u.counts[feature]++
}

func (u *userAgg) mean(feature string) float64 {
	if u.counts[feature] == 0 {
		return math.NaN()
	}
	return u.sums[feature] / float64(u.counts[feature])
}

type aggregator struct {
	order []string
	users map[string]*userAgg
}

func newAggregator() *aggregator {
	return &aggregator{users: make(map[string]*userAgg)}
}

func (a *aggregator) user(id string) *userAgg {
	u, ok := a.users[id]
	if !ok {
		u = &userAgg{id: id, sums: make(map[string]float64), counts: make(map[string]int)}
		a.users[id] = u
		a.order = append(a.order, id)
	}
	return u
}

// Aggregate averages usage observations per user. Categorical and location fields take
// the first non-empty value seen for the user. Users appear in first-seen order.
func Aggregate(obs []model.UsageObservation, opts Options) *Matrix {
	a := newAggregator()
	for _, o := range obs {
		u := a.user(o.UserID)
		u.add(FeatureRechargeAmount, o.RechargeAmountFCFA)
		u.add(FeatureRechargeFrequency, float64(o.RechargeFrequencyWeekly))
		u.add(FeatureCallDuration, float64(o.CallDurationSec))
		u.add(FeatureDataMB, o.DataMB)
		u.add(FeatureContactDiversity, o.ContactDiversityScore)
		u.add(FeatureMobilityRadius, o.MobilityRadiusKm)
		firstNonEmpty(&u.region, o.Region)
		firstNonEmpty(&u.phone, o.PhoneType)
		firstNonEmpty(&u.subscription, o.SubscriptionType)
	}
	return a.build(BaseFeatures, true, true, opts)
}

// AggregateTable averages a producer-defined usage table per user. Absent feature
// columns are recorded as omitted rather than failing; a missing user_id column or a
// table with no usable feature is an error.
func AggregateTable(t *dataset.Table, opts Options) (*Matrix, error) {
	if !t.Has("user_id") {
		return nil, eris.New("wealth: usage table has no user_id column")
	}

	var present, omitted []string
	for _, f := range BaseFeatures {
		if t.Has(f) {
			present = append(present, f)
		} else {
			omitted = append(omitted, f)
		}
	}
	if len(present) == 0 {
		return nil, eris.New("wealth: usage table has none of the wealth features")
	}

	regionCol := "region"
	if !t.Has(regionCol) && t.Has("district") {
		regionCol = "district"
	}

	a := newAggregator()
	for i := 0; i < t.Len(); i++ {
		id := t.Value(i, "user_id")
		if id == "" {
			continue
		}
		u := a.user(id)
		for _, f := range present {
			if v, ok := t.Float(i, f); ok {
				u.add(f, v)
			}
		}
		firstNonEmpty(&u.region, t.Value(i, regionCol))
		firstNonEmpty(&u.phone, t.Value(i, "phone_type"))
		firstNonEmpty(&u.subscription, t.Value(i, "subscription_type"))
	}

	m := a.build(present, t.Has("phone_type"), t.Has("subscription_type"), opts)
	m.Omitted = append(omitted, m.Omitted...)
	return m, nil
}

func (a *aggregator) build(features []string, hasPhone, hasSubscription bool, opts Options) *Matrix {
	m := &Matrix{raw: make(map[string][]float64, len(features))}
	for _, f := range features {
		m.Features = append(m.Features, f)
		if opts.LogFeatures && logFeatures[f] {
			m.Features = append(m.Features, f+logSuffix)
		}
	}
	if opts.EncodeProfile {
		if hasPhone {
			m.Features = append(m.Features, FeaturePhoneEncoded)
		} else {
			m.Omitted = append(m.Omitted, FeaturePhoneEncoded)
		}
		if hasSubscription {
			m.Features = append(m.Features, FeatureSubscriptionEncoded)
		} else {
			m.Omitted = append(m.Omitted, FeatureSubscriptionEncoded)
		}
	}

	for _, id := range a.order {
		u := a.users[id]
		m.UserIDs = append(m.UserIDs, id)
		m.Regions = append(m.Regions, u.region)

		row := make([]float64, 0, len(m.Features))
		for _, f := range features {
			v := u.mean(f)
			m.raw[f] = append(m.raw[f], v)
			row = append(row, v)
			if opts.LogFeatures && logFeatures[f] {
				row = append(row, math.Log1p(v))
			}
		}
		if opts.EncodeProfile {
			if hasPhone {
				row = append(row, encode(phoneCodes, u.phone, 1))
			}
			if hasSubscription {
				row = append(row, encode(subscriptionCodes, u.subscription, 0))
			}
		}
		m.Rows = append(m.Rows, row)
	}

	fillMedian(m.Rows)
	for _, col := range m.raw {
		fillColumnMedian(col)
	}
	return m
}

func encode(codes map[string]float64, v string, fallback float64) float64 {
	if c, ok := codes[v]; ok {
		return c
	}
	return fallback
}

func firstNonEmpty(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}

// fillMedian replaces NaN cells with the median of their column.
func fillMedian(rows [][]float64) {
	if len(rows) == 0 {
		return
	}
	for j := range rows[0] {
		col := make([]float64, len(rows))
		for i := range rows {
			col[i] = rows[i][j]
		}
		fillColumnMedian(col)
		for i := range rows {
			rows[i][j] = col[i]
		}
	}
}

func fillColumnMedian(col []float64) {
	var known []float64
	for _, v := range col {
		if !math.IsNaN(v) {
			known = append(known, v)
		}
	}
	med := stats.Median(known)
	for i, v := range col {
		if math.IsNaN(v) {
			col[i] = med
		}
	}
}
