// Package fair implements the commit-reveal outcome generator. A secret
// server seed is committed by publishing its SHA-256 digest before any seat
// is final; after resolution the seed is revealed so any verifier can
// recompute the draw from public room data.
package fair

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const seedBytes = 32

// CommitSeed generates a high-entropy secret seed and its one-way
// commitment. The hash is safe to publish immediately; the seed must be
// withheld until the round resolves.
func CommitSeed() (seed, hash string, err error) {
	raw := make([]byte, seedBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("failed to generate server seed: %w", err)
	}
	seed = hex.EncodeToString(raw)
	return seed, Hash(seed), nil
}

// Hash returns the hex-encoded SHA-256 commitment of a seed
func Hash(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// Verify checks that a revealed seed matches its published commitment
func Verify(seed, hash string) bool {
	computed := Hash(seed)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// Reveal deterministically derives an index in [0, span) from the server
// seed, client seed and nonce. The keyed HMAC-SHA512 output is reduced from
// its first 13 hex characters (52 bits), so the modulo bias for any span up
// to a few thousand is far below measurable.
func Reveal(seed, clientSeed string, nonce, span int) (int, error) {
	if span <= 0 {
		return 0, fmt.Errorf("span must be positive, got %d", span)
	}

	h := hmac.New(sha512.New, []byte(seed))
	h.Write([]byte(clientSeed + "-" + strconv.Itoa(nonce)))
	digest := hex.EncodeToString(h.Sum(nil))

	value, err := strconv.ParseInt(digest[:13], 16, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse digest prefix: %w", err)
	}

	return int(value % int64(span)), nil
}

// ClientSeed derives the public client seed from the identifiers of the
// active-round entries. Sorting makes the seed independent of join order so
// an external verifier can reproduce it from public room data.
func ClientSeed(entryIDs []int64) string {
	ids := make([]int64, len(entryIDs))
	copy(ids, entryIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ":")
}
