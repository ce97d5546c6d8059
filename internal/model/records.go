// Package model defines the synthetic records shared by generators, indicator engines and exporters.
package model

import "time"

// Area classes.
const (
	Urban = "urban"
	Rural = "rural"
)

// Phone classes.
const (
	PhoneBasic      = "basic"
	PhoneFeature    = "feature"
	PhoneSmartphone = "smartphone"
)

// Subscription types.
const (
	Prepaid  = "prepaid"
	Postpaid = "postpaid"
)

// Transport modes.
const (
	ModeWalking     = "walking"
	ModeBicycle     = "bicycle"
	ModeBus         = "bus"
	ModeTaxi        = "taxi"
	ModeMotorbike   = "motorbike"
	ModePersonalCar = "personal_car"
)

// Trip purposes.
const (
	PurposeHomeToWork   = "home_to_work"
	PurposeWorkToHome   = "work_to_home"
	PurposeWorkInternal = "work_internal"
	PurposeShopping     = "shopping"
	PurposeLeisure      = "leisure"
	PurposeHealth       = "health"
	PurposeOther        = "other"
)

// Migration movement types.
const (
	MovePermanent  = "permanent_relocation"
	MoveWork       = "work_migration"
	MoveEducation  = "education_migration"
	MoveSeasonal   = "seasonal_agriculture"
	MoveTemporary  = "temporary_stay"
	MoveCircular   = "circular_migration"
	MoveRelocation = "detected_relocation"
)

// UserProfile is the root record of a synthetic subscriber. Never mutated after generation.
type UserProfile struct {
	UserID             string    `csv:"user_id" json:"user_id"`
	AgeGroup           string    `csv:"age_group" json:"age_group"`
	Gender             string    `csv:"gender" json:"gender"`
	Occupation         string    `csv:"occupation" json:"occupation"`
	PhoneType          string    `csv:"phone_type" json:"phone_type"`
	SubscriptionType   string    `csv:"subscription_type" json:"subscription_type"`
	HomeLat            float64   `csv:"home_lat" json:"home_lat"`
	HomeLon            float64   `csv:"home_lon" json:"home_lon"`
	HomeCell           string    `csv:"home_cell" json:"home_cell"`
	Locality           string    `csv:"locality" json:"locality"`
	Department         string    `csv:"department" json:"department"`
	Region             string    `csv:"region" json:"region"`
	UrbanRural         string    `csv:"urban_rural" json:"urban_rural"`
	HouseholdSize      int       `csv:"household_size" json:"household_size"`
	InitialWealthScore float64   `csv:"initial_wealth_score" json:"initial_wealth_score"`
	CreatedAt          time.Time `csv:"creation_timestamp" json:"creation_timestamp"`
}

// UsageObservation is one user-week of usage behaviour.
type UsageObservation struct {
	UserID                  string    `csv:"user_id" json:"user_id"`
	Timestamp               time.Time `csv:"timestamp" json:"timestamp"`
	WeekStart               string    `csv:"week_start" json:"week_start"`
	Latitude                float64   `csv:"latitude" json:"latitude"`
	Longitude               float64   `csv:"longitude" json:"longitude"`
	Locality                string    `csv:"locality" json:"locality"`
	Department              string    `csv:"department" json:"department"`
	Region                  string    `csv:"region" json:"region"`
	UrbanRural              string    `csv:"urban_rural" json:"urban_rural"`
	AntennaID               string    `csv:"antenna_id" json:"antenna_id"`
	CallDurationSec         int       `csv:"call_duration_sec" json:"call_duration_sec"`
	DataMB                  float64   `csv:"data_mb" json:"data_mb"`
	RechargeAmountFCFA      float64   `csv:"recharge_amount_fcfa" json:"recharge_amount_fcfa"`
	RechargeFrequencyWeekly int       `csv:"recharge_frequency_weekly" json:"recharge_frequency_weekly"`
	ContactDiversityScore   float64   `csv:"contact_diversity_score" json:"contact_diversity_score"`
	MobilityRadiusKm        float64   `csv:"mobility_radius_km" json:"mobility_radius_km"`
	PhoneType               string    `csv:"phone_type" json:"phone_type"`
	SubscriptionType        string    `csv:"subscription_type" json:"subscription_type"`
}

// MigrationEvent is a detected change of residence between two localities.
type MigrationEvent struct {
	UserID                string    `csv:"user_id" json:"user_id"`
	Timestamp             time.Time `csv:"timestamp" json:"timestamp"`
	OriginLocality        string    `csv:"origin_locality" json:"origin_locality"`
	OriginDepartment      string    `csv:"origin_department" json:"origin_department"`
	OriginRegion          string    `csv:"origin_region" json:"origin_region"`
	DestinationLocality   string    `csv:"destination_locality" json:"destination_locality"`
	DestinationDepartment string    `csv:"destination_department" json:"destination_department"`
	DestinationRegion     string    `csv:"destination_region" json:"destination_region"`
	OriginLat             float64   `csv:"origin_lat" json:"origin_lat"`
	OriginLon             float64   `csv:"origin_lon" json:"origin_lon"`
	DestinationLat        float64   `csv:"destination_lat" json:"destination_lat"`
	DestinationLon        float64   `csv:"destination_lon" json:"destination_lon"`
	OriginCell            string    `csv:"origin_cell" json:"origin_cell"`
	DestinationCell       string    `csv:"destination_cell" json:"destination_cell"`
	ResidenceDurationDays int       `csv:"residence_duration_days" json:"residence_duration_days"`
	MovementType          string    `csv:"movement_type" json:"movement_type"`
	IsReturnMigration     bool      `csv:"is_return_migration" json:"is_return_migration"`
	PreviousLocations     string    `csv:"previous_locations" json:"previous_locations"`
	DistanceKm            float64   `csv:"distance_km" json:"distance_km"`
}

// MobilityTrip is a single daily trip.
type MobilityTrip struct {
	UserID        string    `csv:"user_id" json:"user_id"`
	Timestamp     time.Time `csv:"timestamp" json:"timestamp"`
	TripID        string    `csv:"trip_id" json:"trip_id"`
	OriginLat     float64   `csv:"origin_lat" json:"origin_lat"`
	OriginLon     float64   `csv:"origin_lon" json:"origin_lon"`
	DestLat       float64   `csv:"dest_lat" json:"dest_lat"`
	DestLon       float64   `csv:"dest_lon" json:"dest_lon"`
	OriginAntenna string    `csv:"origin_antenna" json:"origin_antenna"`
	DestAntenna   string    `csv:"dest_antenna" json:"dest_antenna"`
	OriginCell    string    `csv:"origin_cell" json:"origin_cell"`
	DestCell      string    `csv:"dest_cell" json:"dest_cell"`
	DurationMin   int       `csv:"duration_min" json:"duration_min"`
	DistanceKm    float64   `csv:"distance_km" json:"distance_km"`
	SpeedKmh      float64   `csv:"speed_kmh" json:"speed_kmh"`
	TransportMode string    `csv:"transport_mode" json:"transport_mode"`
	TripPurpose   string    `csv:"trip_purpose" json:"trip_purpose"`
	HourOfDay     int       `csv:"hour_of_day" json:"hour_of_day"`
	DayOfWeek     int       `csv:"day_of_week" json:"day_of_week"`
	Locality      string    `csv:"locality" json:"locality"`
	Department    string    `csv:"department" json:"department"`
	Region        string    `csv:"region" json:"region"`
}

// Dataset bundles the four generated tables keyed by user id.
type Dataset struct {
	Users     []UserProfile      `json:"users"`
	Usage     []UsageObservation `json:"usage"`
	Migration []MigrationEvent   `json:"migration"`
	Mobility  []MobilityTrip     `json:"mobility"`
}

// Counts returns the row count of each table.
func (d *Dataset) Counts() map[string]int {
	return map[string]int{
		"users":     len(d.Users),
		"usage":     len(d.Usage),
		"migration": len(d.Migration),
		"mobility":  len(d.Mobility),
	}
}
