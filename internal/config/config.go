package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`
	HTTPAddr    string `mapstructure:"HTTP_ADDR"`
	// PublicURL is the address game servers use to call back into the master.
	PublicURL string `mapstructure:"PUBLIC_URL"`

	SpawnCommand         string        `mapstructure:"SPAWN_COMMAND"`
	SpawnMaxConcurrent   int           `mapstructure:"SPAWN_MAX_CONCURRENT"`
	SpawnRegisterTimeout time.Duration `mapstructure:"SPAWN_REGISTER_TIMEOUT"`
	SpawnRegions         []string      `mapstructure:"SPAWN_REGIONS"`

	RoomAccessTTL time.Duration `mapstructure:"ROOM_ACCESS_TTL"`

	LobbyCreatePermissionLevel     int  `mapstructure:"LOBBY_CREATE_PERMISSION_LEVEL"`
	LobbyDontAllowCreatingIfJoined bool `mapstructure:"LOBBY_DONT_ALLOW_CREATING_IF_JOINED"`
	LobbyEventBuffer               int  `mapstructure:"LOBBY_EVENT_BUFFER"`
	LobbyLoopQueue                 int  `mapstructure:"LOBBY_LOOP_QUEUE"`
	LobbyRecordMatches             bool `mapstructure:"LOBBY_RECORD_MATCHES"`

	AutoStartWaitAfterMinPlayers time.Duration `mapstructure:"AUTOSTART_WAIT_AFTER_MIN_PLAYERS"`
	AutoStartWaitAfterFullTeams  time.Duration `mapstructure:"AUTOSTART_WAIT_AFTER_FULL_TEAMS"`
	AutoStartInterval            time.Duration `mapstructure:"AUTOSTART_INTERVAL"`
}

var AppConfig *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("PUBLIC_URL", "http://localhost:8080")

	v.SetDefault("SPAWN_COMMAND", "")
	v.SetDefault("SPAWN_MAX_CONCURRENT", 8)
	v.SetDefault("SPAWN_REGISTER_TIMEOUT", 30*time.Second)
	v.SetDefault("SPAWN_REGIONS", []string{})

	v.SetDefault("ROOM_ACCESS_TTL", time.Minute)

	v.SetDefault("LOBBY_CREATE_PERMISSION_LEVEL", 0)
	v.SetDefault("LOBBY_DONT_ALLOW_CREATING_IF_JOINED", false)
	v.SetDefault("LOBBY_EVENT_BUFFER", 64)
	v.SetDefault("LOBBY_LOOP_QUEUE", 256)
	v.SetDefault("LOBBY_RECORD_MATCHES", true)

	v.SetDefault("AUTOSTART_WAIT_AFTER_MIN_PLAYERS", 10*time.Second)
	v.SetDefault("AUTOSTART_WAIT_AFTER_FULL_TEAMS", 5*time.Second)
	v.SetDefault("AUTOSTART_INTERVAL", time.Second)
}

// Load reads the .env file in dir, if any, and the environment.
// Environment variables win over the file.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	setDefaults(v)

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Println("Warning: .env file not found, loading from environment variables")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig loads the configuration from a .env file and environment variables.
func LoadConfig() {
	cfg, err := Load(".")
	if err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}
	AppConfig = cfg
}
