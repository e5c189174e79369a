package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Web       WebConfig       `yaml:"web"`
	Messaging MessagingConfig `yaml:"messaging"`
	Workshop  WorkshopConfig  `yaml:"workshop"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type WebConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	SessionSecret string `yaml:"session_secret"`
}

type MessagingConfig struct {
	Backend             string        `yaml:"backend"` // "kafka" or "mqtt"
	Kafka               KafkaConfig   `yaml:"kafka"`
	MQTT                MQTTConfig    `yaml:"mqtt"`
	SubmissionsTopic    string        `yaml:"submissions_topic"`
	EventsTopic         string        `yaml:"events_topic"`
	OutboxDrainInterval time.Duration `yaml:"outbox_drain_interval"`
	StationID           string        `yaml:"station_id"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

// StageConfig names one workflow stage and its kind.
// Kinds: "gate", "standard", "bay_allocation", "bay".
type StageConfig struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
}

// WorkshopConfig is the static workflow vocabulary, loaded once at start.
type WorkshopConfig struct {
	Roles       []string      `yaml:"roles"`
	WorkTypes   []string      `yaml:"work_types"`
	BayMin      int           `yaml:"bay_min"`
	BayMax      int           `yaml:"bay_max"`
	Stages      []StageConfig `yaml:"stages"`
	GateStage   string        `yaml:"gate_stage"`
	EndDebounce time.Duration `yaml:"end_debounce"`
	// DetailPairing selects the pairing profile used by the single-vehicle
	// dashboard view: "bay_work" or "maintenance".
	DetailPairing string `yaml:"detail_pairing"`
}

func Defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "servicetrack.db"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "servicetrack",
				User:     "servicetrack",
				Password: "",
				SSLMode:  "disable",
			},
		},
		Redis: RedisConfig{
			Address:  "localhost:6379",
			Password: "",
			DB:       0,
		},
		Web: WebConfig{
			Host:          "0.0.0.0",
			Port:          5000,
			SessionSecret: "change-me-in-production",
		},
		Messaging: MessagingConfig{
			Backend: "kafka",
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
				GroupID: "servicetrack",
			},
			MQTT: MQTTConfig{
				Broker:   "localhost",
				Port:     1883,
				ClientID: "servicetrack",
			},
			SubmissionsTopic:    "servicetrack.submissions",
			EventsTopic:         "servicetrack.events",
			OutboxDrainInterval: 5 * time.Second,
			StationID:           "center",
		},
		Workshop: DefaultWorkshop(),
	}
}

// DefaultWorkshop returns the stock service-center vocabulary.
func DefaultWorkshop() WorkshopConfig {
	return WorkshopConfig{
		Roles: []string{
			"Admin",
			"Security Guard",
			"Active Reception Technician",
			"Service Advisor",
			"Job Controller",
			"Bay Technician",
			"Final Inspection Technician",
			"Diagnosis Engineer",
			"Washing",
		},
		WorkTypes: []string{
			"PM",
			"GR",
			"Body and Paint",
			"Diagnosis",
			"PMGR",
			"PMGR + Body&Paint",
			"GR+ Body & Paint",
			"PM+ Body and Paint",
		},
		BayMin: 1,
		BayMax: 15,
		Stages: []StageConfig{
			{Name: "Security Gate", Kind: "gate"},
			{Name: "Interactive Bay", Kind: "bay"},
			{Name: "Job Card Creation + Customer Approval", Kind: "standard"},
			{Name: "Bay Allocation Started", Kind: "bay_allocation"},
			{Name: "Maintenance Started", Kind: "standard"},
			{Name: "Final Inspection", Kind: "standard"},
			{Name: "Washing", Kind: "standard"},
		},
		GateStage:     "Security Gate",
		EndDebounce:   10 * time.Second,
		DetailPairing: "bay_work",
	}
}

func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Workshop.Validate(); err != nil {
		return nil, fmt.Errorf("workshop config: %w", err)
	}
	return cfg, nil
}

// Validate checks the workshop vocabulary for obvious mistakes.
func (w *WorkshopConfig) Validate() error {
	if len(w.Roles) == 0 {
		return fmt.Errorf("no roles configured")
	}
	if w.BayMin > w.BayMax {
		return fmt.Errorf("bay_min %d > bay_max %d", w.BayMin, w.BayMax)
	}
	if w.EndDebounce < 0 {
		return fmt.Errorf("end_debounce must not be negative")
	}
	switch w.DetailPairing {
	case "", "bay_work", "maintenance":
	default:
		return fmt.Errorf("unknown detail_pairing %q", w.DetailPairing)
	}
	for _, s := range w.Stages {
		switch s.Kind {
		case "gate", "standard", "bay_allocation", "bay":
		default:
			return fmt.Errorf("stage %q: unknown kind %q", s.Name, s.Kind)
		}
	}
	return nil
}
