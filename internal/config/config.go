package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

type Config struct {
	Env           string `yaml:"env" env:"ENV" env-default:"prod"`
	StorageDriver string `yaml:"storage_driver" env:"STORAGE_DRIVER" env-default:"mysql"`
	HTTPServer    `yaml:"http_server"`
	DBUser        string `yaml:"db_user" env:"DB_USER"`
	DBPassword    string `yaml:"db_password" env:"DB_PASSWORD"`
	DBHost        string `yaml:"db_host" env:"DB_HOST" env-default:"localhost"`
	DBPort        int    `yaml:"db_port" env:"DB_PORT" env-default:"3306"`
	DBName        string `yaml:"db_name" env:"DB_NAME"`
	ParseTime     bool   `yaml:"parse_time" env-default:"true"`

	AdminLogin string `yaml:"admin_login" env:"ADMIN_LOGIN"`
	AdminPass  string `yaml:"admin_pass" env:"ADMIN_PASS"`

	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS" env-separator:"," env-default:"http://localhost:5173"`
	// FrontendDir — собранный UI; пусто — API без статики.
	FrontendDir string   `yaml:"frontend_dir" env:"FRONTEND_DIR"`

	Materials Materials `yaml:"materials"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:4001"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// Materials — настройки проверки материалов и генерации операций.
type Materials struct {
	StrictUnits   bool                `yaml:"strict_units" env:"MATERIALS_STRICT_UNITS" env-default:"false"`
	DefaultStages []string            `yaml:"default_stages"`
	ConsumeStages map[string][]string `yaml:"consume_stages"`
	// LookupConcurrency — сколько компонентов проверяется параллельно.
	LookupConcurrency int `yaml:"lookup_concurrency" env-default:"4"`
}

func MustConfig() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает .env (если есть), затем YAML из CONFIG_PATH. Переменные
// окружения перекрывают значения файла.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/local.yaml"
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, err
	}

	if cfg.StorageDriver != DriverMySQL && cfg.StorageDriver != DriverMemory {
		return nil, errors.New("storage_driver must be mysql or memory")
	}
	if cfg.StorageDriver == DriverMySQL && (cfg.DBUser == "" || cfg.DBName == "") {
		return nil, errors.New("db_user and db_name are required for mysql storage")
	}

	return &cfg, nil
}
