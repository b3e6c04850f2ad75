package adapt

import (
	"database/sql"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"

	"github.com/fernet/fernet-go"
)

// tokenPattern matches the vault's own token format, wherever it shows up
// in a request or response body.
var tokenPattern = regexp.MustCompile(`tok_[a-zA-Z0-9_\-]+`)

// TokenVaultHandler is a Handler that replaces vault tokens with the card
// numbers they stand for on the way out to an origin server (RESPMOD is
// not its real use — REQMOD is, since tokens travel client to origin —
// but the same substitution logic serves both directions, so both methods
// are wired here for symmetry with the decoder's own even-handedness
// between REQMOD and RESPMOD).
type TokenVaultHandler struct {
	db        *sql.DB
	fernetKey *fernet.Key
	debug     bool
}

// NewTokenVaultHandler opens the MySQL connection backing the vault and
// decodes the base64 Fernet key used to decrypt stored card numbers. An
// empty encryptionKey is accepted for configurations that only ever see
// already-tokenized traffic with detokenization disabled downstream.
func NewTokenVaultHandler(dsn, encryptionKey string, debug bool) (*TokenVaultHandler, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to token vault: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping token vault: %w", err)
	}

	var key *fernet.Key
	if encryptionKey != "" {
		keyBytes, err := base64.URLEncoding.DecodeString(encryptionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to decode vault encryption key: %w", err)
		}
		key = &fernet.Key{}
		copy(key[:], keyBytes)
	}

	return &TokenVaultHandler{db: db, fernetKey: key, debug: debug}, nil
}

// Close releases the underlying database connection.
func (h *TokenVaultHandler) Close() error {
	return h.db.Close()
}

func (h *TokenVaultHandler) lookupCardNumber(token string) (string, error) {
	if h.debug {
		log.Printf("DEBUG: looking up token %s", token)
	}
	var encrypted []byte
	err := h.db.QueryRow(
		"SELECT card_number_encrypted FROM credit_cards WHERE token = ? AND is_active = TRUE", token,
	).Scan(&encrypted)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}

	if h.fernetKey == nil {
		return "", fmt.Errorf("vault encryption key not configured")
	}
	plain := fernet.VerifyAndDecrypt(encrypted, 0, []*fernet.Key{h.fernetKey})
	if plain == nil {
		return "", fmt.Errorf("failed to decrypt vault entry for token %s", token)
	}
	return string(plain), nil
}

// detokenize replaces every vault token found in body with its underlying
// card number, reporting whether anything changed.
func (h *TokenVaultHandler) detokenize(body []byte) ([]byte, bool, error) {
	matches := tokenPattern.FindAllString(string(body), -1)
	if len(matches) == 0 {
		return body, false, nil
	}

	resolved := make(map[string]string, len(matches))
	for _, token := range matches {
		if _, ok := resolved[token]; ok {
			continue
		}
		cardNumber, err := h.lookupCardNumber(token)
		if err != nil {
			return nil, false, fmt.Errorf("failed to look up token %s: %w", token, err)
		}
		resolved[token] = cardNumber
	}

	result := string(body)
	modified := false
	for token, cardNumber := range resolved {
		if cardNumber == "" {
			continue
		}
		result = strings.ReplaceAll(result, token, cardNumber)
		modified = true
		if h.debug {
			log.Printf("DEBUG: replaced token %s with vault entry", token)
		}
	}
	return []byte(result), modified, nil
}

// ReqmodBody detokenizes a request body before it reaches the origin.
func (h *TokenVaultHandler) ReqmodBody(req *http.Request, body []byte) ([]byte, bool, error) {
	return h.detokenize(body)
}

// RespmodBody detokenizes a response body before it reaches the client.
// A vault deployment that tokenizes on egress rather than ingress would
// instead scan for card numbers here; this decoder only needs to prove
// out that RESPMOD bodies flow through the same Handler contract as
// REQMOD ones.
func (h *TokenVaultHandler) RespmodBody(res *http.Response, body []byte) ([]byte, bool, error) {
	return h.detokenize(body)
}
