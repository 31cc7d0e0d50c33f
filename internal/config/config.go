package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Shared holds settings both binaries read.
type Shared struct {
	LogLevel     string
	ServerAddr   string
	ManifestPath string
}

// ControlPlane holds control-plane configuration.
type ControlPlane struct {
	Shared

	// ExecutionStore is memory, postgres or redis.
	ExecutionStore string
	DatabaseURL    string
	MigrationsDir  string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	ExecutionTTL   time.Duration

	DispatchPolicy       string
	DispatchMode         string
	DispatchTimeout      time.Duration
	DispatchWorkerFilter string
	WorkerClientTimeout  time.Duration

	HeartbeatTimeout time.Duration
	SweepInterval    time.Duration

	// Raft is enabled when RaftNodeID is set.
	RaftNodeID    string
	RaftAddr      string
	RaftDataDir   string
	RaftBootstrap bool
	// RaftJoin is the HTTP address of an existing member to join through.
	RaftJoin      string
}

// Worker holds worker configuration.
type Worker struct {
	Shared

	ControlPlaneURL   string
	AdvertiseAddr     string
	IdentityFile      string
	HeartbeatInterval time.Duration

	ExecutionTimeout time.Duration
	MemoryLimitPages uint32
	CompileCacheDir  string

	// ModuleSource is file or minio.
	ModuleSource   string
	ModuleDir      string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioSecure    bool
}

// LoadDotEnv loads a .env file when present.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func loadShared(defaultAddr string) Shared {
	return Shared{
		LogLevel:     getenv("LOG_LEVEL", "info"),
		ServerAddr:   getenv("SERVER_ADDR", defaultAddr),
		ManifestPath: getenv("MANIFEST_PATH", "functions.yaml"),
	}
}

// LoadControlPlane reads control-plane configuration from environment.
func LoadControlPlane() (*ControlPlane, error) {
	cfg := &ControlPlane{
		Shared:               loadShared("0.0.0.0:8080"),
		ExecutionStore:       strings.ToLower(getenv("EXECUTION_STORE", "memory")),
		DatabaseURL:          databaseURL(),
		MigrationsDir:        os.Getenv("MIGRATIONS_DIR"),
		RedisAddr:            getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              parseInt(os.Getenv("REDIS_DB"), 0),
		ExecutionTTL:         parseDuration(os.Getenv("EXECUTION_TTL"), 24*time.Hour),
		DispatchPolicy:       getenv("DISPATCH_POLICY", "lowest-id"),
		DispatchMode:         getenv("DISPATCH_MODE", "shared"),
		DispatchTimeout:      parseDuration(os.Getenv("DISPATCH_TIMEOUT"), 30*time.Second),
		DispatchWorkerFilter: os.Getenv("DISPATCH_WORKER_FILTER"),
		WorkerClientTimeout:  parseDuration(os.Getenv("WORKER_CLIENT_TIMEOUT"), 0),
		HeartbeatTimeout:     parseDuration(os.Getenv("HEARTBEAT_TIMEOUT"), 15*time.Second),
		SweepInterval:        parseDuration(os.Getenv("SWEEP_INTERVAL"), 5*time.Second),
		RaftNodeID:           os.Getenv("RAFT_NODE_ID"),
		RaftAddr:             getenv("RAFT_ADDR", "127.0.0.1:7000"),
		RaftDataDir:          getenv("RAFT_DATA_DIR", "data/raft"),
		RaftBootstrap:        parseBool(os.Getenv("RAFT_BOOTSTRAP"), false),
		RaftJoin:             os.Getenv("RAFT_JOIN"),
	}
	switch cfg.ExecutionStore {
	case "memory", "postgres", "redis":
	default:
		return nil, fmt.Errorf("unsupported EXECUTION_STORE %q", cfg.ExecutionStore)
	}
	if cfg.HeartbeatTimeout <= 0 {
		return nil, errors.New("HEARTBEAT_TIMEOUT must be positive")
	}
	return cfg, nil
}

// LoadWorker reads worker configuration from environment.
func LoadWorker() (*Worker, error) {
	cfg := &Worker{
		Shared:            loadShared("0.0.0.0:8081"),
		ControlPlaneURL:   getenv("CONTROL_PLANE_URL", "http://localhost:8080"),
		AdvertiseAddr:     os.Getenv("WORKER_ADDR"),
		IdentityFile:      getenv("WORKER_ID_FILE", "data/worker-id"),
		HeartbeatInterval: parseDuration(os.Getenv("HEARTBEAT_INTERVAL"), 5*time.Second),
		ExecutionTimeout:  parseDuration(os.Getenv("EXECUTION_TIMEOUT"), 10*time.Second),
		MemoryLimitPages:  uint32(parseInt(os.Getenv("MEMORY_LIMIT_PAGES"), 0)),
		CompileCacheDir:   os.Getenv("COMPILE_CACHE_DIR"),
		ModuleSource:      strings.ToLower(getenv("MODULE_SOURCE", "file")),
		ModuleDir:         getenv("MODULE_DIR", "modules"),
		MinioEndpoint:     os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey:    os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:    os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:       getenv("MINIO_BUCKET", "functions"),
		MinioSecure:       parseBool(os.Getenv("MINIO_SECURE"), false),
	}
	if cfg.AdvertiseAddr == "" {
		cfg.AdvertiseAddr = advertise(cfg.ServerAddr)
	}
	switch cfg.ModuleSource {
	case "file":
	case "minio":
		if cfg.MinioEndpoint == "" {
			return nil, errors.New("MINIO_ENDPOINT is required when MODULE_SOURCE=minio")
		}
	default:
		return nil, fmt.Errorf("unsupported MODULE_SOURCE %q", cfg.ModuleSource)
	}
	return cfg, nil
}

func databaseURL() string {
	dsn := os.Getenv("DATABASE_URL")
	if dsn != "" {
		return dsn
	}
	user := getenv("POSTGRES_USER", "fnhub")
	pass := getenv("POSTGRES_PASSWORD", "fnhub_pass")
	db := getenv("POSTGRES_DB", "fnhub")
	host := getenv("POSTGRES_HOST", "localhost")
	port := getenv("POSTGRES_PORT", "5432")
	sslmode := getenv("DATABASE_SSLMODE", "disable")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, sslmode)
}

// advertise derives a reachable address from a listen address.
func advertise(listen string) string {
	if strings.HasPrefix(listen, "0.0.0.0:") {
		return "127.0.0.1:" + strings.TrimPrefix(listen, "0.0.0.0:")
	}
	if strings.HasPrefix(listen, ":") {
		return "127.0.0.1" + listen
	}
	return listen
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func parseDuration(val string, def time.Duration) time.Duration {
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def
	}
	return d
}

func parseBool(val string, def bool) bool {
	if val == "" {
		return def
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return b
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}
