package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Database *dbConfig
	Service  *svcConfig
}

type dbConfig struct {
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"popforecast"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address         string `envconfig:"POPFORECAST_ADDRESS" default:":8080"`
	LogLevel        string `envconfig:"POPFORECAST_LOG_LEVEL" default:"info"`
	Debug           bool   `envconfig:"POPFORECAST_DEBUG" default:"false"`
	MigrationFolder string `envconfig:"POPFORECAST_MIGRATIONS_FOLDER" default:"deploy/migrations"`

	UrbanAPI   upstreamConfig
	SocDemoAPI socdemoConfig
	SavingAPI  savingConfig

	Restorator restoratorConfig
	Jobs       jobsConfig
}

type upstreamConfig struct {
	BaseURL                   string        `envconfig:"POPFORECAST_URBAN_API_URL" default:"http://localhost:5300"`
	APIKey                    string        `envconfig:"POPFORECAST_URBAN_API_KEY" default:""`
	Timeout                   time.Duration `envconfig:"POPFORECAST_URBAN_API_TIMEOUT" default:"60s"`
	PopulationIndicator       int           `envconfig:"POPFORECAST_POPULATION_INDICATOR" default:"1"`
	PopulationValueType       string        `envconfig:"POPFORECAST_POPULATION_VALUE_TYPE" default:"real"`
	HouseTypeID               int           `envconfig:"POPFORECAST_HOUSE_TYPE_ID" default:"4"`
	BindPopulationConcurrency int           `envconfig:"POPFORECAST_BIND_POPULATION_CONCURRENCY" default:"5"`
}

type socdemoConfig struct {
	BaseURL          string        `envconfig:"POPFORECAST_SOCDEMO_API_URL" default:"http://localhost:5301"`
	APIKey           string        `envconfig:"POPFORECAST_SOCDEMO_API_KEY" default:""`
	Timeout          time.Duration `envconfig:"POPFORECAST_SOCDEMO_API_TIMEOUT" default:"60s"`
	PyramidIndicator int           `envconfig:"POPFORECAST_PYRAMID_INDICATOR" default:"2"`
}

type savingConfig struct {
	BaseURL            string        `envconfig:"POPFORECAST_SAVING_API_URL" default:"http://localhost:5302"`
	APIKey             string        `envconfig:"POPFORECAST_SAVING_API_KEY" default:""`
	Timeout            time.Duration `envconfig:"POPFORECAST_SAVING_API_TIMEOUT" default:"60s"`
	PublishChunkSize   int           `envconfig:"POPFORECAST_PUBLISH_CHUNK_SIZE" default:"1000"`
	PublishConcurrency int           `envconfig:"POPFORECAST_PUBLISH_CONCURRENCY" default:"10"`
	DeleteConcurrency  int           `envconfig:"POPFORECAST_DELETE_CONCURRENCY" default:"10"`
}

type restoratorConfig struct {
	DivideDBPath       string `envconfig:"POPFORECAST_DIVIDE_DB_PATH" default:"/tmp/popforecast/divided.sqlite"`
	ForecastWorkingDir string `envconfig:"POPFORECAST_FORECAST_WORKING_DIR" default:"/tmp/popforecast"`
	FertilityBegin     int    `envconfig:"POPFORECAST_FERTILITY_BEGIN" default:"18"`
	FertilityEnd       int    `envconfig:"POPFORECAST_FERTILITY_END" default:"40"`
}

type jobsConfig struct {
	MaxWorkers int           `envconfig:"POPFORECAST_JOB_MAX_WORKERS" default:"4"`
	Timeout    time.Duration `envconfig:"POPFORECAST_JOB_TIMEOUT" default:"9000s"`
}

// New reads the configuration from the environment. The result is
// passed explicitly to constructors, never read as ambient state, so
// tests can supply isolated configurations per case.
func New() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
