package config

// Storage drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// StorageConfig selects where job records, datasets and chart payloads live.
type StorageConfig struct {
	// Driver is the job-record backend: "postgres" or "sqlite".
	// Postgres connection settings come from DB_* environment variables.
	Driver string `yaml:"driver"`

	// SQLitePath is the database file for the sqlite driver.
	SQLitePath string `yaml:"sqlite_path"`

	// BlobDir is the root directory of the blob store.
	BlobDir string `yaml:"blob_dir"`

	// MaxResultBytes is the job-record document ceiling. Larger results fail the job.
	MaxResultBytes int64 `yaml:"max_result_bytes"`

	// MaxUploadBytes limits uploaded dataset size.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// DefaultStorageConfig returns the built-in storage defaults.
func DefaultStorageConfig() *StorageConfig {
	return &StorageConfig{
		Driver:         DriverPostgres,
		SQLitePath:     "adaa.db",
		BlobDir:        "data/blobs",
		MaxResultBytes: 16 << 20,
		MaxUploadBytes: 100 << 20,
	}
}
