package params

import (
	"os"

	"github.com/joho/godotenv"
)

type API struct {
	ListenAddr string
}

type Node struct {
	// JournalPath is the pebble directory for the operation journal.
	// Empty disables durability (in-memory only).
	JournalPath string
	// LogFile mirrors logs to a file. Empty logs to console only.
	LogFile string
	// CustodyAddr is the exchange's own address on both token contracts.
	CustodyAddr string
}

type Config struct {
	API  API
	Node Node
}

func Default() Config {
	return Config{
		API: API{
			ListenAddr: ":8080",
		},
		Node: Node{
			JournalPath: "data/journal",
			LogFile:     "data/node.log",
			CustodyAddr: "0x00000000000000000000000000000000deadbeef",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg.API.ListenAddr = getEnv("API_LISTEN_ADDR", cfg.API.ListenAddr)
	cfg.Node.JournalPath = getEnv("JOURNAL_PATH", cfg.Node.JournalPath)
	cfg.Node.CustodyAddr = getEnv("CUSTODY_ADDR", cfg.Node.CustodyAddr)

	// LOG_FILE set to the empty string is an explicit opt-out of the
	// file log, so it is looked up rather than defaulted.
	if v, ok := os.LookupEnv("LOG_FILE"); ok {
		cfg.Node.LogFile = v
	}

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
