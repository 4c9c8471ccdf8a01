package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/zephyrus-green/ferrycast/internal/geo"
	"github.com/zephyrus-green/ferrycast/pkg/core"
)

// FileName is the config file looked up in the config directory.
const FileName = "ferrycast.cfg.json"

var validate = validator.New()

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds in-memory SQLite backend settings
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
}

// RemoteConfig holds the upstream collector a remote backend streams to.
type RemoteConfig struct {
	URL    string `json:"url" mapstructure:"url" validate:"omitempty,url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// StorageConfig selects and configures the history backend.
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type" validate:"oneof=none memory sqlite postgres remote"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
	Remote RemoteConfig `json:"remote" mapstructure:"remote"`
}

// DBConfig holds Postgres connection settings.
type DBConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	SSLMode  string
}

// DSN renders the settings as a libpq keyword/value connection string.
func (c DBConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, sslMode)
}

// FleetConfig describes the simulated fleet and the shared track.
type FleetConfig struct {
	Track          []core.Waypoint `validate:"min=2,dive"`
	Vessels        []core.Vessel   `validate:"min=1,dive"`
	Terminals      []core.Terminal `validate:"dive"`
	TerminalRadius float64         `validate:"gte=0"`
	TickPeriod     time.Duration   `validate:"gt=0"`
}

// QueueConfig holds bounded queue capacities.
type QueueConfig struct {
	PositionCapacity int
	VolumeCapacity   int
}

// BroadcastConfig holds streaming settings.
type BroadcastConfig struct {
	Period       time.Duration
	ClientBuffer int
}

// MQTTConfig holds sensor feed broker settings.
type MQTTConfig struct {
	Enabled        bool
	Broker         string `validate:"required_if=Enabled true"`
	Topic          string `validate:"required_if=Enabled true"`
	ClientID       string `validate:"required_if=Enabled true"`
	QoS            byte
	ConnectTimeout time.Duration
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled        bool
	ServiceName    string
	BatchTimeout   time.Duration
	MetricInterval time.Duration
	Endpoint       string
	Insecure       bool
}

// InfluxConfig holds InfluxDB telemetry settings.
type InfluxConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Protocol string
	Token    string
	Org      string
	Bucket   string
}

// defaultTrack is the Brisbane river track between UQ and Milton.
var defaultTrack = [][2]float64{
	{-27.496767459424884, 153.01952753903188},
	{-27.492589806949766, 153.01665580689638},
	{-27.490804557080086, 153.00997428464225},
	{-27.48998333241987, 153.00341351279033},
	{-27.49119731453502, 153.0027292605113},
	{-27.492357726103666, 153.0021255085004},
	{-27.490501061703664, 152.99673199043346},
	{-27.486127065082915, 152.9959068626884},
	{-27.48321692214612, 152.99693324110694},
	{-27.480860185525977, 152.99960987504696},
	{-27.477699936920835, 153.00232675910473},
	{-27.47353969742742, 153.00568764531508},
	{-27.4725576437457, 153.00755927654893},
}

var defaultVessels = []map[string]any{
	{"mmsi": 503123456, "name": "Mirrigin", "start": 0},
	{"mmsi": 503123457, "name": "Kuluwin", "start": 6},
	{"mmsi": 503123458, "name": "Mooroolbin", "start": 12},
}

var defaultTerminals = []map[string]any{
	{"name": "UQ", "lat": -27.496794118158004, "lon": 153.019545830108},
	{"name": "West End", "lat": -27.490377956126146, "lon": 153.0032654581362},
	{"name": "Guyatt Park", "lat": -27.49232410927266, "lon": 153.00212960553657},
	{"name": "Regatta", "lat": -27.483200149234516, "lon": 152.9968978536975},
	{"name": "Milton", "lat": -27.473530974935436, "lon": 153.00563885557887},
}

// SetDefaults registers every default value. Load calls it; tools that run
// without a config file call it directly.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./ferrylogs")

	viper.SetDefault("http.addr", ":8000")
	viper.SetDefault("api.serverUrl", "http://localhost:8000")

	viper.SetDefault("simulator.tickPeriod", "2.5s")
	viper.SetDefault("broadcast.period", "1s")
	viper.SetDefault("broadcast.clientBuffer", 8)

	viper.SetDefault("queues.positionCapacity", 24)
	viper.SetDefault("queues.volumeCapacity", 6)

	viper.SetDefault("track", defaultTrack)
	viper.SetDefault("trackFile", "")
	viper.SetDefault("vessels", defaultVessels)
	viper.SetDefault("terminals", defaultTerminals)
	viper.SetDefault("terminalRadius", 100.0)

	viper.SetDefault("mqtt.enabled", true)
	viper.SetDefault("mqtt.broker", "tcp://test.mosquitto.org:1883")
	viper.SetDefault("mqtt.topic", "discotest")
	viper.SetDefault("mqtt.clientId", "ferrycast")
	viper.SetDefault("mqtt.qos", 1)
	viper.SetDefault("mqtt.connectTimeout", "5s")

	viper.SetDefault("storage.type", "none")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.dumpPath", "./ferrycast_history.db")
	viper.SetDefault("storage.remote.url", "ws://localhost:8000/ingest")
	viper.SetDefault("storage.remote.secret", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "ferrycast")
	viper.SetDefault("db.sslMode", "disable")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "ferrycast")
	viper.SetDefault("influx.bucket", "fleet_positions")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "ferrycast")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "30s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetEnvPrefix("FERRYCAST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetFleetConfig returns the validated fleet configuration. When trackFile is
// set the track is read from that file (JSON or YAML) instead of the track key.
func GetFleetConfig() (FleetConfig, error) {
	var cfg FleetConfig

	track, err := loadTrack()
	if err != nil {
		return cfg, err
	}
	cfg.Track = track

	if err := viper.UnmarshalKey("vessels", &cfg.Vessels); err != nil {
		return cfg, fmt.Errorf("decoding vessels: %w", err)
	}
	if err := viper.UnmarshalKey("terminals", &cfg.Terminals); err != nil {
		return cfg, fmt.Errorf("decoding terminals: %w", err)
	}
	cfg.TerminalRadius = viper.GetFloat64("terminalRadius")
	cfg.TickPeriod = viper.GetDuration("simulator.tickPeriod")

	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid fleet config: %w", err)
	}

	seen := make(map[core.MMSI]bool, len(cfg.Vessels))
	for _, v := range cfg.Vessels {
		if seen[v.MMSI] {
			return cfg, fmt.Errorf("invalid fleet config: duplicate vessel %s", v.MMSI)
		}
		seen[v.MMSI] = true
	}
	return cfg, nil
}

func loadTrack() ([]core.Waypoint, error) {
	if path := viper.GetString("trackFile"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading track file: %w", err)
		}
		// YAML is a superset of JSON, so one decoder covers both formats.
		var pairs [][2]float64
		if err := yaml.Unmarshal(data, &pairs); err != nil {
			return nil, fmt.Errorf("decoding track file %s: %w", path, err)
		}
		track := make([]core.Waypoint, len(pairs))
		for i, p := range pairs {
			track[i] = core.Waypoint{Lat: p[0], Lon: p[1]}
		}
		return track, nil
	}

	// defaults and file values arrive decoded, env overrides as a JSON string
	raw := viper.Get("track")
	input, ok := raw.(string)
	if !ok {
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("encoding track: %w", err)
		}
		input = string(data)
	}
	track, err := geo.ParseTrack(input)
	if err != nil {
		return nil, fmt.Errorf("invalid fleet config: %w", err)
	}
	return track.Waypoints(), nil
}

// GetQueueConfig returns queue capacities.
func GetQueueConfig() QueueConfig {
	return QueueConfig{
		PositionCapacity: viper.GetInt("queues.positionCapacity"),
		VolumeCapacity:   viper.GetInt("queues.volumeCapacity"),
	}
}

// GetBroadcastConfig returns streaming settings.
func GetBroadcastConfig() BroadcastConfig {
	return BroadcastConfig{
		Period:       viper.GetDuration("broadcast.period"),
		ClientBuffer: viper.GetInt("broadcast.clientBuffer"),
	}
}

// GetMQTTConfig returns the validated broker settings.
func GetMQTTConfig() (MQTTConfig, error) {
	cfg := MQTTConfig{
		Enabled:        viper.GetBool("mqtt.enabled"),
		Broker:         viper.GetString("mqtt.broker"),
		Topic:          viper.GetString("mqtt.topic"),
		ClientID:       viper.GetString("mqtt.clientId"),
		ConnectTimeout: viper.GetDuration("mqtt.connectTimeout"),
	}
	// checked as an int: a byte conversion first would wrap 258 into 2
	qos := viper.GetInt("mqtt.qos")
	if err := validate.Var(qos, "gte=0,lte=2"); err != nil {
		return cfg, fmt.Errorf("invalid mqtt config: qos %d: %w", qos, err)
	}
	cfg.QoS = byte(qos)
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid mqtt config: %w", err)
	}
	return cfg, nil
}

// GetStorageConfig returns storage backend settings.
func GetStorageConfig() (StorageConfig, error) {
	cfg := StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
		},
		Remote: RemoteConfig{
			URL:    viper.GetString("storage.remote.url"),
			Secret: viper.GetString("storage.remote.secret"),
		},
	}
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid storage config: %w", err)
	}
	if cfg.Type == "remote" && cfg.Remote.URL == "" {
		return cfg, fmt.Errorf("invalid storage config: remote backend needs storage.remote.url")
	}
	return cfg, nil
}

// GetDBConfig returns Postgres connection settings.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
		SSLMode:  viper.GetString("db.sslMode"),
	}
}

// GetOTelConfig returns OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}
