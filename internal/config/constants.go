package config

// Default paths for on-disk state
const (
	// DefaultDatabasePath is the default path for the clinic database file
	DefaultDatabasePath = "./clinic.db"

	// DefaultBackupDir is where Backup_*.db files are written unless configured otherwise
	DefaultBackupDir = "./backups"

	// DefaultExportDir is where CSV and markdown exports are written
	DefaultExportDir = "./exports"
)
