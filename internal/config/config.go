// Package config reads the application configuration from environment
// variables. The core packages treat these values as read-only inputs;
// nothing here is written back.
package config

import (
	"os"
	"strconv"
	"time"
)

// Stow describes the STOW-RS endpoint to upload to.
type Stow struct {
	URL       string
	Username  string
	Password  string
	VerifyTLS bool
	Timeout   time.Duration
}

// Defaults are the batch-wide descriptive DICOM fields.
type Defaults struct {
	StudyDescription       string
	SeriesDescription      string
	ReferringPhysicianName string
	AccessionNumber        string
	PatientIDPrefix        string
}

// Config holds the full application configuration.
type Config struct {
	ListenAddress string
	DatabaseURL   string
	// RenderingEnabled gates the PDF-to-image capability; when false
	// the pipeline produces encapsulated documents only.
	RenderingEnabled bool

	Stow     Stow
	Defaults Defaults

	OtelEndpoint       string
	OtelServiceName    string
	OtelServiceVersion string
	Debug              bool
}

// Load reads configuration from environment variables, falling back
// to defaults that match a local Orthanc.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddress:    GetEnv("LISTEN_ADDRESS", ":8080"),
		DatabaseURL:      GetEnv("DATABASE_URL", ""),
		RenderingEnabled: getBool("RENDERING_ENABLED", true),
		Stow: Stow{
			URL:       GetEnv("STOW_URL", "http://127.0.0.1:8042/dicom-web/studies"),
			Username:  GetEnv("STOW_USERNAME", ""),
			Password:  GetEnv("STOW_PASSWORD", ""),
			VerifyTLS: getBool("STOW_VERIFY_TLS", true),
			Timeout:   getSeconds("STOW_TIMEOUT_SECONDS", 30),
		},
		Defaults: Defaults{
			StudyDescription:       GetEnv("STUDY_DESCRIPTION", "Documenti"),
			SeriesDescription:      GetEnv("SERIES_DESCRIPTION", "PDF Upload"),
			ReferringPhysicianName: GetEnv("REFERRING_PHYSICIAN", ""),
			AccessionNumber:        GetEnv("ACCESSION_NUMBER", ""),
			PatientIDPrefix:        GetEnv("PATIENT_ID_PREFIX", "ICCPV"),
		},
		OtelEndpoint:       GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OtelServiceName:    GetEnv("OTEL_SERVICE_NAME", "pdf2pacs"),
		OtelServiceVersion: GetEnv("OTEL_SERVICE_VERSION", "1.0.0"),
		Debug:              getBool("DEBUG", false),
	}
	return cfg, nil
}

// GetEnv retrieves an environment variable or returns a default value.
func GetEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(GetEnv(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return v
}

func getSeconds(key string, fallback int) time.Duration {
	n, err := strconv.Atoi(GetEnv(key, strconv.Itoa(fallback)))
	if err != nil || n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}
