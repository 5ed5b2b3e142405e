package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         string
	RunsDir      string
	MaxUploadMB  int
	OCRProvider  string // "remote" or "tesseract"
	TokenURL     string
	RecognizeURL string
	APIKey       string // fallback when the request carries no credentials
	SecretKey    string
	HTTPTimeout  int // seconds, per recognizer call
	PageInterval int // milliseconds between page recognitions
	PdftoppmPath string
	PdfinfoPath  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string // empty disables result archival
}

// LoadConfig loads the environment variables and returns config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		RunsDir:      getEnv("RUNS_DIR", "web_runs"),
		MaxUploadMB:  getEnvInt("MAX_UPLOAD_MB", 100),
		OCRProvider:  getEnv("OCR_PROVIDER", "remote"),
		TokenURL:     getEnv("OCR_TOKEN_URL", "https://aip.baidubce.com/oauth/2.0/token"),
		RecognizeURL: getEnv("OCR_RECOGNIZE_URL", "https://aip.baidubce.com/rest/2.0/ocr/v1/accurate"),
		APIKey:       getEnv("OCR_API_KEY", ""),
		SecretKey:    getEnv("OCR_SECRET_KEY", ""),
		HTTPTimeout:  getEnvInt("OCR_HTTP_TIMEOUT_SECONDS", 60),
		PageInterval: getEnvInt("OCR_PAGE_INTERVAL_MS", 0),
		PdftoppmPath: getEnv("PDFTOPPM_PATH", "pdftoppm"),
		PdfinfoPath:  getEnv("PDFINFO_PATH", "pdfinfo"),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", ""),
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}
