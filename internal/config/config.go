// Package config loads the daemon's environment-variable configuration,
// in the same direct os.Getenv-with-defaults style the teacher uses for
// its ICAP server, rather than a config-file format.
package config

import (
	"os"

	"golang.org/x/crypto/bcrypt"
)

// Daemon holds the settings icapd needs to listen and to reach the token
// vault's backing store.
type Daemon struct {
	Port          string
	DBHost        string
	DBUser        string
	DBPass        string
	DBName        string
	Debug         bool
	EncryptionKey string

	MaxInitialLineLength int
	MaxICAPHeaderSize    int
	MaxChunkSize         int

	RateLimitAttempts int
	RateLimitWindowS  int
	RateLimitBlockS   int

	// AdminSecretHash, if set, is a bcrypt hash an operator must supply the
	// plaintext for (via icapctl serve --admin-secret) before the daemon
	// will start. Empty disables the check.
	AdminSecretHash string
}

// Load reads Daemon settings from the environment, falling back to the
// same defaults the standalone ICAP server shipped with.
func Load() Daemon {
	d := Daemon{
		Port:          os.Getenv("ICAP_PORT"),
		DBHost:        os.Getenv("DB_HOST"),
		DBUser:        os.Getenv("DB_USER"),
		DBPass:        os.Getenv("DB_PASSWORD"),
		DBName:        os.Getenv("DB_NAME"),
		Debug:         os.Getenv("DEBUG_MODE") == "1",
		EncryptionKey: os.Getenv("ENCRYPTION_KEY"),

		MaxInitialLineLength: envInt("ICAP_MAX_INITIAL_LINE", 8192),
		MaxICAPHeaderSize:    envInt("ICAP_MAX_HEADER_SIZE", 65536),
		MaxChunkSize:         envInt("ICAP_MAX_CHUNK_SIZE", 1<<20),

		RateLimitAttempts: envInt("ICAP_RATE_LIMIT_ATTEMPTS", 100),
		RateLimitWindowS:  envInt("ICAP_RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitBlockS:   envInt("ICAP_RATE_LIMIT_BLOCK_SECONDS", 300),

		AdminSecretHash: os.Getenv("ICAP_ADMIN_SECRET_HASH"),
	}

	if d.Port == "" {
		d.Port = "1344"
	}
	if d.DBHost == "" {
		d.DBHost = "mysql"
	}
	if d.DBUser == "" {
		d.DBUser = "pciproxy"
	}
	if d.DBPass == "" {
		d.DBPass = "pciproxy123"
	}
	if d.DBName == "" {
		d.DBName = "pci_proxy"
	}

	return d
}

// VerifyAdminSecret checks secret against AdminSecretHash. If no hash is
// configured, startup is unauthenticated and this always succeeds.
func (d Daemon) VerifyAdminSecret(secret string) bool {
	if d.AdminSecretHash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(d.AdminSecretHash), []byte(secret)) == nil
}

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return def
		}
		n = n*10 + int(c-'0')
	}
	return n
}
