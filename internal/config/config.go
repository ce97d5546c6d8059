package config

import (
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Generation    GenerationConfig   `yaml:"generation" mapstructure:"generation"`
	SpatialBounds BoundsConfig       `yaml:"spatial_bounds" mapstructure:"spatial_bounds"`
	Elsewhere     BoundsConfig       `yaml:"elsewhere" mapstructure:"elsewhere"`
	Boundaries    BoundariesConfig   `yaml:"boundaries" mapstructure:"boundaries"`
	UrbanCenters  []UrbanCenter      `yaml:"urban_centers" mapstructure:"urban_centers"`
	Demographics  DemographicsConfig `yaml:"demographics" mapstructure:"demographics"`
	Economic      EconomicConfig     `yaml:"economic" mapstructure:"economic"`
	Migration     MigrationConfig    `yaml:"migration" mapstructure:"migration"`
	Mobility      MobilityConfig     `yaml:"mobility" mapstructure:"mobility"`
	Wealth        WealthConfig       `yaml:"wealth" mapstructure:"wealth"`
	Indexer       IndexerConfig      `yaml:"indexer" mapstructure:"indexer"`
	Privacy       PrivacyConfig      `yaml:"privacy" mapstructure:"privacy"`
	Output        OutputConfig       `yaml:"output" mapstructure:"output"`
	Store         StoreConfig        `yaml:"store" mapstructure:"store"`
	Log           LogConfig          `yaml:"log" mapstructure:"log"`
}

// GenerationConfig sets the size and horizon of a synthetic run.
type GenerationConfig struct {
	NUsers        int    `yaml:"n_users" mapstructure:"n_users"`
	StartDate     string `yaml:"start_date" mapstructure:"start_date"`
	Days          int    `yaml:"days_to_generate" mapstructure:"days_to_generate"`
	RandomSeed    int64  `yaml:"random_seed" mapstructure:"random_seed"`
	ProgressEvery int    `yaml:"progress_every" mapstructure:"progress_every"`
}

// Start parses StartDate as a UTC calendar date.
func (g GenerationConfig) Start() (time.Time, error) {
	t, err := time.Parse("2006-01-02", g.StartDate)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "config: parse start_date %q", g.StartDate)
	}
	return t.UTC(), nil
}

// BoundsConfig is a latitude/longitude bounding box in degrees.
type BoundsConfig struct {
	MinLat float64 `yaml:"min_lat" mapstructure:"min_lat"`
	MaxLat float64 `yaml:"max_lat" mapstructure:"max_lat"`
	MinLon float64 `yaml:"min_lon" mapstructure:"min_lon"`
	MaxLon float64 `yaml:"max_lon" mapstructure:"max_lon"`
}

// Contains reports whether the coordinate lies inside the box.
func (b BoundsConfig) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// BoundariesConfig points at administrative boundary data.
type BoundariesConfig struct {
	Path            string        `yaml:"path" mapstructure:"path"`
	NameField       string        `yaml:"name_field" mapstructure:"name_field"`
	DepartmentField string        `yaml:"department_field" mapstructure:"department_field"`
	RegionField     string        `yaml:"region_field" mapstructure:"region_field"`
	Weights         []NamedWeight `yaml:"weights" mapstructure:"weights"`
	MaxAttempts     int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	CentroidSigma   float64       `yaml:"centroid_sigma" mapstructure:"centroid_sigma"`
}

// NamedWeight assigns a population weight to a locality name.
type NamedWeight struct {
	Name   string  `yaml:"name" mapstructure:"name"`
	Weight float64 `yaml:"weight" mapstructure:"weight"`
}

// UrbanCenter is a fallback sampling anchor used when no boundaries are loaded.
// A center named "Others" is the uniform elsewhere bucket.
type UrbanCenter struct {
	Name       string  `yaml:"name" mapstructure:"name"`
	Lat        float64 `yaml:"lat" mapstructure:"lat"`
	Lon        float64 `yaml:"lon" mapstructure:"lon"`
	Weight     float64 `yaml:"weight" mapstructure:"weight"`
	Sigma      float64 `yaml:"sigma" mapstructure:"sigma"`
	Department string  `yaml:"department" mapstructure:"department"`
	Region     string  `yaml:"region" mapstructure:"region"`
}

// Distribution is a discrete categorical distribution.
type Distribution struct {
	Values        []string  `yaml:"values" mapstructure:"values"`
	Probabilities []float64 `yaml:"probabilities" mapstructure:"probabilities"`
}

// DemographicsConfig holds the categorical profile distributions.
type DemographicsConfig struct {
	AgeGroups          Distribution `yaml:"age_groups" mapstructure:"age_groups"`
	Gender             Distribution `yaml:"gender" mapstructure:"gender"`
	Occupation         Distribution `yaml:"occupation" mapstructure:"occupation"`
	PhoneType          Distribution `yaml:"phone_type" mapstructure:"phone_type"`
	Subscription       Distribution `yaml:"subscription" mapstructure:"subscription"`
	HouseholdSizeProbs []float64    `yaml:"household_size_probabilities" mapstructure:"household_size_probabilities"`
	UrbanProbability   float64      `yaml:"urban_probability" mapstructure:"urban_probability"`
	UrbanLocalities    []string     `yaml:"urban_localities" mapstructure:"urban_localities"`
}

// EconomicConfig holds recharge tables.
type EconomicConfig struct {
	RechargeAmounts   []float64 `yaml:"recharge_amounts" mapstructure:"recharge_amounts"`
	RechargeProbsPoor []float64 `yaml:"recharge_probs_poor" mapstructure:"recharge_probs_poor"`
	RechargeProbsRich []float64 `yaml:"recharge_probs_rich" mapstructure:"recharge_probs_rich"`
	PoorThreshold     float64   `yaml:"poor_threshold" mapstructure:"poor_threshold"`
}

// MigrationConfig configures migration generation and classification.
type MigrationConfig struct {
	Probability           float64 `yaml:"migration_probability" mapstructure:"migration_probability"`
	ReturnProbability     float64 `yaml:"return_probability" mapstructure:"return_probability"`
	DistanceThresholdKm   float64 `yaml:"distance_threshold_km" mapstructure:"distance_threshold_km"`
	DurationThresholdDays float64 `yaml:"duration_threshold_days" mapstructure:"duration_threshold_days"`
	ConfidenceDays        float64 `yaml:"confidence_days" mapstructure:"confidence_days"`
	TraceWindowDays       int     `yaml:"trace_window_days" mapstructure:"trace_window_days"`
}

// MobilityConfig configures trip generation and mobility metrics.
type MobilityConfig struct {
	SampleCap          int     `yaml:"sample_cap" mapstructure:"sample_cap"`
	MaxDays            int     `yaml:"max_days" mapstructure:"max_days"`
	RadiusMeanKm       float64 `yaml:"mobility_radius_mean" mapstructure:"mobility_radius_mean"`
	SundaySkip         float64 `yaml:"sunday_skip_probability" mapstructure:"sunday_skip_probability"`
	FreeFlowSpeedKmh   float64 `yaml:"free_flow_speed_kmh" mapstructure:"free_flow_speed_kmh"`
	CongestionCap      float64 `yaml:"congestion_cap" mapstructure:"congestion_cap"`
	AccessThresholdMin float64 `yaml:"access_threshold_min" mapstructure:"access_threshold_min"`
	ModerateAccessMin  float64 `yaml:"moderate_access_min" mapstructure:"moderate_access_min"`
	PeakShare          float64 `yaml:"peak_share" mapstructure:"peak_share"`
	ODLevel            string  `yaml:"od_level" mapstructure:"od_level"`
}

// WealthConfig configures the wealth index engine.
type WealthConfig struct {
	Method        string         `yaml:"method" mapstructure:"method"`
	LogFeatures   bool           `yaml:"log_features" mapstructure:"log_features"`
	EncodeProfile bool           `yaml:"encode_profile" mapstructure:"encode_profile"`
	MPICutoff     float64        `yaml:"mpi_cutoff" mapstructure:"mpi_cutoff"`
	Dimensions    []MPIDimension `yaml:"dimensions" mapstructure:"dimensions"`
}

// MPIDimension is one deprivation dimension. A positive Percentile overrides Threshold.
type MPIDimension struct {
	Name       string  `yaml:"name" mapstructure:"name"`
	Indicator  string  `yaml:"indicator" mapstructure:"indicator"`
	Threshold  float64 `yaml:"threshold" mapstructure:"threshold"`
	Percentile float64 `yaml:"percentile" mapstructure:"percentile"`
	Weight     float64 `yaml:"weight" mapstructure:"weight"`
}

// IndexerConfig selects the spatial cell strategy.
type IndexerConfig struct {
	Strategy   string `yaml:"strategy" mapstructure:"strategy"`
	Resolution int    `yaml:"resolution" mapstructure:"resolution"`
}

// PrivacyConfig controls identifier anonymization.
type PrivacyConfig struct {
	Salt             string `yaml:"salt" mapstructure:"salt"`
	SaltRotationDays int    `yaml:"salt_rotation_days" mapstructure:"salt_rotation_days"`
}

// OutputConfig controls where generated data and indicators are written.
type OutputConfig struct {
	Dir         string `yaml:"dir" mapstructure:"dir"`
	Compression string `yaml:"compression" mapstructure:"compression"`
	Workbook    bool   `yaml:"workbook" mapstructure:"workbook"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Schema      string `yaml:"schema" mapstructure:"schema"`
}

// StoreConfig configures the run registry.
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	Path   string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from ./config.yaml (optional) and environment.
func Load() (*Config, error) {
	return load("")
}

// LoadFile reads configuration from an explicit file path and environment.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return Load()
	}
	return load(path)
}

func load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("MOBILITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("generation.n_users", 1000)
	v.SetDefault("generation.start_date", "2024-01-01")
	v.SetDefault("generation.days_to_generate", 30)
	v.SetDefault("generation.random_seed", 42)
	v.SetDefault("generation.progress_every", 1000)

	v.SetDefault("spatial_bounds.min_lat", 4.0)
	v.SetDefault("spatial_bounds.max_lat", 11.0)
	v.SetDefault("spatial_bounds.min_lon", -9.0)
	v.SetDefault("spatial_bounds.max_lon", -2.0)
	v.SetDefault("elsewhere.min_lat", 4.5)
	v.SetDefault("elsewhere.max_lat", 10.0)
	v.SetDefault("elsewhere.min_lon", -8.0)
	v.SetDefault("elsewhere.max_lon", -3.0)

	v.SetDefault("boundaries.path", "")
	v.SetDefault("boundaries.name_field", "NAME_4")
	v.SetDefault("boundaries.department_field", "NAME_2")
	v.SetDefault("boundaries.region_field", "NAME_1")
	v.SetDefault("boundaries.weights", DefaultLocalityWeights())
	v.SetDefault("boundaries.max_attempts", 100)
	v.SetDefault("boundaries.centroid_sigma", 0.02)
	v.SetDefault("urban_centers", DefaultUrbanCenters())

	setDistribution(v, "demographics.age_groups", []string{"18-24", "25-34", "35-44", "45-54", "55+"}, []float64{0.25, 0.30, 0.22, 0.13, 0.10})
	setDistribution(v, "demographics.gender", []string{"M", "F"}, []float64{0.51, 0.49})
	setDistribution(v, "demographics.occupation", []string{"employee", "trader", "student", "informal_sector", "farmer", "unemployed", "other"}, []float64{0.15, 0.20, 0.12, 0.20, 0.18, 0.10, 0.05})
	setDistribution(v, "demographics.phone_type", []string{"basic", "feature", "smartphone"}, []float64{0.30, 0.25, 0.45})
	setDistribution(v, "demographics.subscription", []string{"prepaid", "postpaid"}, []float64{0.92, 0.08})
	v.SetDefault("demographics.household_size_probabilities", []float64{0.05, 0.15, 0.20, 0.25, 0.15, 0.10, 0.07, 0.03})
	v.SetDefault("demographics.urban_probability", 0.3)
	v.SetDefault("demographics.urban_localities", DefaultUrbanLocalities())

	v.SetDefault("economic.recharge_amounts", []float64{100, 200, 500, 1000, 2000, 5000})
	v.SetDefault("economic.recharge_probs_poor", []float64{0.35, 0.30, 0.20, 0.10, 0.04, 0.01})
	v.SetDefault("economic.recharge_probs_rich", []float64{0.05, 0.10, 0.20, 0.30, 0.20, 0.15})
	v.SetDefault("economic.poor_threshold", 0.4)

	v.SetDefault("migration.migration_probability", 0.05)
	v.SetDefault("migration.return_probability", 0.3)
	v.SetDefault("migration.distance_threshold_km", 50.0)
	v.SetDefault("migration.duration_threshold_days", 30.0)
	v.SetDefault("migration.confidence_days", 90.0)
	v.SetDefault("migration.trace_window_days", 30)

	v.SetDefault("mobility.sample_cap", 1000)
	v.SetDefault("mobility.max_days", 7)
	v.SetDefault("mobility.mobility_radius_mean", 5.0)
	v.SetDefault("mobility.sunday_skip_probability", 0.4)
	v.SetDefault("mobility.free_flow_speed_kmh", 40.0)
	v.SetDefault("mobility.congestion_cap", 5.0)
	v.SetDefault("mobility.access_threshold_min", 30.0)
	v.SetDefault("mobility.moderate_access_min", 45.0)
	v.SetDefault("mobility.peak_share", 0.7)
	v.SetDefault("mobility.od_level", "antenna")

	v.SetDefault("wealth.method", "pca")
	v.SetDefault("wealth.log_features", true)
	v.SetDefault("wealth.encode_profile", true)
	v.SetDefault("wealth.mpi_cutoff", 1.0/3.0)
	v.SetDefault("wealth.dimensions", DefaultMPIDimensions())

	v.SetDefault("indexer.strategy", "auto")
	v.SetDefault("indexer.resolution", 13)

	v.SetDefault("privacy.salt", "")
	v.SetDefault("privacy.salt_rotation_days", 15)

	v.SetDefault("output.dir", "output")
	v.SetDefault("output.compression", "none")
	v.SetDefault("output.workbook", true)
	v.SetDefault("output.schema", "public")

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "mobility.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

func setDistribution(v *viper.Viper, key string, values []string, probs []float64) {
	v.SetDefault(key+".values", values)
	v.SetDefault(key+".probabilities", probs)
}

// DefaultLocalityWeights returns the population weights of the major localities.
func DefaultLocalityWeights() []NamedWeight {
	return []NamedWeight{
		{Name: "Abidjan-Ville", Weight: 0.35},
		{Name: "Bouake", Weight: 0.10},
		{Name: "Yamoussoukro", Weight: 0.05},
		{Name: "Korhogo", Weight: 0.04},
		{Name: "San-Pedro", Weight: 0.04},
		{Name: "Daloa", Weight: 0.03},
		{Name: "Man", Weight: 0.03},
		{Name: "Gagnoa", Weight: 0.02},
		{Name: "Divo", Weight: 0.02},
		{Name: "Abengourou", Weight: 0.02},
	}
}

// DefaultUrbanLocalities returns the localities that are always classified urban.
func DefaultUrbanLocalities() []string {
	return []string{
		"Abidjan-Ville", "Bouake", "Yamoussoukro", "Korhogo", "San-Pedro",
		"Daloa", "Man", "Gagnoa", "Divo", "Abengourou",
		"Anyama", "Bingerville", "Grand-Bassam", "Aboisso",
	}
}

// DefaultUrbanCenters returns the fallback urban centers.
func DefaultUrbanCenters() []UrbanCenter {
	return []UrbanCenter{
		{Name: "Abidjan", Lat: 5.36, Lon: -4.01, Weight: 0.40, Sigma: 0.05, Department: "Abidjan", Region: "Abidjan"},
		{Name: "Bouake", Lat: 7.69, Lon: -5.03, Weight: 0.12, Sigma: 0.05, Department: "Bouake", Region: "Gbeke"},
		{Name: "Yamoussoukro", Lat: 6.82, Lon: -5.28, Weight: 0.06, Sigma: 0.05, Department: "Yamoussoukro", Region: "Yamoussoukro"},
		{Name: "San-Pedro", Lat: 4.75, Lon: -6.64, Weight: 0.06, Sigma: 0.05, Department: "San-Pedro", Region: "San-Pedro"},
		{Name: "Korhogo", Lat: 9.46, Lon: -5.63, Weight: 0.05, Sigma: 0.05, Department: "Korhogo", Region: "Poro"},
		{Name: "Daloa", Lat: 6.88, Lon: -6.45, Weight: 0.05, Sigma: 0.05, Department: "Daloa", Region: "Haut-Sassandra"},
		{Name: "Others", Weight: 0.26},
	}
}

// DefaultMPIDimensions returns the Alkire-Foster dimensions used when none are configured.
func DefaultMPIDimensions() []MPIDimension {
	return []MPIDimension{
		{Name: "economic", Indicator: "recharge_amount_fcfa", Percentile: 20, Weight: 0.4},
		{Name: "connectivity", Indicator: "contact_diversity_score", Threshold: 0.3, Weight: 0.3},
		{Name: "mobility", Indicator: "mobility_radius_km", Threshold: 2.0, Weight: 0.3},
	}
}

const probabilityTolerance = 1e-6

// Validate checks the configuration for values that would make generation meaningless.
func (c *Config) Validate() error {
	var errs []string

	if c.Generation.NUsers <= 0 {
		errs = append(errs, "generation.n_users must be positive")
	}
	if c.Generation.Days <= 0 {
		errs = append(errs, "generation.days_to_generate must be positive")
	}
	if _, err := c.Generation.Start(); err != nil {
		errs = append(errs, "generation.start_date must be YYYY-MM-DD")
	}

	dists := map[string]Distribution{
		"demographics.age_groups":   c.Demographics.AgeGroups,
		"demographics.gender":       c.Demographics.Gender,
		"demographics.occupation":   c.Demographics.Occupation,
		"demographics.phone_type":   c.Demographics.PhoneType,
		"demographics.subscription": c.Demographics.Subscription,
	}
	for key, d := range dists {
		if len(d.Values) == 0 || len(d.Values) != len(d.Probabilities) {
			errs = append(errs, key+": values and probabilities must be non-empty and equal length")
			continue
		}
		if !sumsToOne(d.Probabilities) {
			errs = append(errs, key+": probabilities must sum to 1")
		}
	}
	if len(c.Demographics.HouseholdSizeProbs) != 8 || !sumsToOne(c.Demographics.HouseholdSizeProbs) {
		errs = append(errs, "demographics.household_size_probabilities must have 8 entries summing to 1")
	}
	if !isProbability(c.Demographics.UrbanProbability) {
		errs = append(errs, "demographics.urban_probability must be in [0,1]")
	}

	n := len(c.Economic.RechargeAmounts)
	if n == 0 || len(c.Economic.RechargeProbsPoor) != n || len(c.Economic.RechargeProbsRich) != n {
		errs = append(errs, "economic: recharge amounts and probability tables must be non-empty and equal length")
	} else if !sumsToOne(c.Economic.RechargeProbsPoor) || !sumsToOne(c.Economic.RechargeProbsRich) {
		errs = append(errs, "economic: recharge probabilities must sum to 1")
	}

	if !isProbability(c.Migration.Probability) {
		errs = append(errs, "migration.migration_probability must be in [0,1]")
	}
	if !isProbability(c.Migration.ReturnProbability) {
		errs = append(errs, "migration.return_probability must be in [0,1]")
	}

	if len(c.UrbanCenters) == 0 {
		errs = append(errs, "urban_centers must not be empty")
	}
	var centerTotal float64
	for _, uc := range c.UrbanCenters {
		if uc.Weight < 0 {
			errs = append(errs, "urban_centers."+uc.Name+": weight must not be negative")
		}
		centerTotal += uc.Weight
	}
	if len(c.UrbanCenters) > 0 && centerTotal <= 0 {
		errs = append(errs, "urban_centers: weights must sum to a positive value")
	}

	if c.Mobility.FreeFlowSpeedKmh <= 0 {
		errs = append(errs, "mobility.free_flow_speed_kmh must be positive")
	}
	if c.Mobility.ODLevel != "antenna" && c.Mobility.ODLevel != "cell" {
		errs = append(errs, "mobility.od_level must be antenna or cell")
	}

	switch c.Wealth.Method {
	case "pca", "simple":
	default:
		errs = append(errs, "wealth.method must be pca or simple")
	}
	for _, d := range c.Wealth.Dimensions {
		if d.Weight <= 0 {
			errs = append(errs, "wealth.dimensions."+d.Name+": weight must be positive")
		}
		if d.Percentile < 0 || d.Percentile > 100 {
			errs = append(errs, "wealth.dimensions."+d.Name+": percentile must be in [0,100]")
		}
	}

	switch c.Indexer.Strategy {
	case "auto", "s2", "coord":
	default:
		errs = append(errs, "indexer.strategy must be auto, s2 or coord")
	}

	switch c.Output.Compression {
	case "none", "zstd":
	default:
		errs = append(errs, "output.compression must be none or zstd")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

func sumsToOne(p []float64) bool {
	var sum float64
	for _, v := range p {
		if v < 0 {
			return false
		}
		sum += v
	}
	return math.Abs(sum-1) <= probabilityTolerance
}

func isProbability(p float64) bool {
	return p >= 0 && p <= 1
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
