package config

// ServerConfig contains HTTP API configuration.
type ServerConfig struct {
	Port        int      `yaml:"port" validate:"gt=0"`
	CORSOrigins []string `yaml:"corsOrigins"`
}

// FeedConfig names one GTFS dataset and where it comes from. Static is
// a zip path, an unpacked directory or an http(s) URL; PostgresDSN
// selects loading from an imported database instead. The realtime URLs
// are optional enrichment.
type FeedConfig struct {
	Name             string `yaml:"name" validate:"required"`
	Static           string `yaml:"static"`
	PostgresDSN      string `yaml:"postgresDSN"`
	TripUpdatesURL   string `yaml:"tripUpdatesURL" validate:"omitempty,url"`
	ServiceAlertsURL string `yaml:"serviceAlertsURL" validate:"omitempty,url"`
}

// ExtractConfig carries pipeline defaults applied when a flag or
// request parameter does not override them.
type ExtractConfig struct {
	AreaPolicy string `yaml:"areaPolicy" validate:"omitempty,oneof=any all"`
	Format     string `yaml:"format" validate:"omitempty,oneof=text csv json"`
	SQLitePath string `yaml:"sqlitePath"`
}

// NotifyConfig configures extraction event publishing. An empty NATS
// URL disables it.
type NotifyConfig struct {
	NATSURL       string `yaml:"natsURL"`
	SubjectPrefix string `yaml:"subjectPrefix"`
}

// AppConfig is the root configuration structure.
type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Extract ExtractConfig `yaml:"extract"`
	Notify  NotifyConfig  `yaml:"notify"`
	Feeds   []FeedConfig  `yaml:"feeds"`
}
