package logging

import (
	"encoding/hex"
	"io"
	"log/slog"
	"os"

	"golang.org/x/crypto/blake2b"
)

// New creates a JSON slog logger configured at the provided level. If the
// level string is invalid it defaults to info.
func New(level string) *slog.Logger {
	lvl := new(slog.LevelVar)
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl.Set(slog.LevelInfo)
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}

// Discard returns a logger that drops all output. Useful for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Card logs a card uid as a short stable fingerprint. Raw uids are bearer
// credentials for the reader network and must not reach log storage.
func Card(uid string) slog.Attr {
	return slog.String("card", Fingerprint(uid))
}

func Fingerprint(uid string) string {
	sum := blake2b.Sum256([]byte(uid))
	return hex.EncodeToString(sum[:6])
}
