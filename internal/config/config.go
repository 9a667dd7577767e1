package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr string
	DataDir    string
	UploadsDir string

	// SecretKey signs browser session tokens; AdminKey is the static
	// credential for the admin area. An empty AdminKey disables /admin.
	SecretKey string
	AdminKey  string

	MaxFiles    int
	MaxFileMB   int
	MaxTotalMB  int
	MaxListings int

	PhotoBackend string
	S3Endpoint   string
	S3AccessKey  string
	S3SecretKey  string
	S3Bucket     string
	S3UseSSL     bool

	LogLevel string
	LogFile  string
}

// Load reads a .env file if present and returns the configuration from
// environment variables. Real environment variables take precedence.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found, using system environment")
	}

	return &Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),
		DataDir:    getEnv("DATA_DIR", "./data"),
		UploadsDir: getEnv("UPLOADS_DIR", "./uploads"),

		SecretKey: getEnv("SECRET_KEY", "dev-secret-change-me"),
		AdminKey:  getEnv("ADMIN_KEY", ""),

		MaxFiles:    getEnvInt("MAX_FILES", 5),
		MaxFileMB:   getEnvInt("MAX_FILE_MB", 10),
		MaxTotalMB:  getEnvInt("MAX_TOTAL_MB", 25),
		MaxListings: getEnvInt("MAX_LISTINGS", 200),

		PhotoBackend: getEnv("PHOTO_BACKEND", "local"),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),
		S3AccessKey:  getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:  getEnv("S3_SECRET_KEY", ""),
		S3Bucket:     getEnv("S3_BUCKET", ""),
		S3UseSSL:     getEnvBool("S3_USE_SSL", false),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),
	}
}

// CSVPath is the location of the submissions file under DataDir.
func (c *Config) CSVPath() string {
	return filepath.Join(c.DataDir, "submissions.csv")
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
