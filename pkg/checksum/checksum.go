// Package checksum tags ledger archive objects with the SHA-256 of their body and
// the number of NDJSON entries they hold, and checks an archive pulled back from
// object storage against that tag.
package checksum

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Object metadata keys written alongside every archive.
const (
	MetaSHA256  = "sha256"
	MetaEntries = "entries"
)

var (
	// ErrMissingMetadata is returned when an archive carries no integrity tag.
	ErrMissingMetadata = errors.New("archive has no integrity metadata")
	// ErrChecksumMismatch is returned when the body hash differs from the tag.
	ErrChecksumMismatch = errors.New("archive checksum mismatch")
	// ErrEntryCountMismatch is returned when the body holds a different number of entries.
	ErrEntryCountMismatch = errors.New("archive entry count mismatch")
)

// ArchiveSum is the integrity tag of one archive body.
type ArchiveSum struct {
	SHA256  string
	Entries int
}

// Metadata renders the tag as object metadata.
func (s ArchiveSum) Metadata() map[string]string {
	return map[string]string{
		MetaSHA256:  s.SHA256,
		MetaEntries: strconv.Itoa(s.Entries),
	}
}

// SumArchive hashes an NDJSON archive body and counts its non-blank lines in one pass.
func SumArchive(r io.Reader) (ArchiveSum, error) {
	hasher := sha256.New()
	scanner := bufio.NewScanner(io.TeeReader(r, hasher))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	entries := 0
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			entries++
		}
	}
	if err := scanner.Err(); err != nil {
		return ArchiveSum{}, fmt.Errorf("failed to read archive: %w", err)
	}
	return ArchiveSum{SHA256: hex.EncodeToString(hasher.Sum(nil)), Entries: entries}, nil
}

// ParseMetadata reads the tag back from object metadata. Keys are matched
// case-insensitively since some S3-compatible stores normalise them.
func ParseMetadata(meta map[string]string) (ArchiveSum, error) {
	var sum ArchiveSum
	var entries string
	for k, v := range meta {
		switch strings.ToLower(k) {
		case MetaSHA256:
			sum.SHA256 = strings.ToLower(strings.TrimSpace(v))
		case MetaEntries:
			entries = strings.TrimSpace(v)
		}
	}
	if sum.SHA256 == "" || entries == "" {
		return ArchiveSum{}, ErrMissingMetadata
	}
	n, err := strconv.Atoi(entries)
	if err != nil || n < 0 {
		return ArchiveSum{}, fmt.Errorf("invalid %s metadata %q", MetaEntries, entries)
	}
	sum.Entries = n
	return sum, nil
}

// VerifyArchive checks body against the tag in meta and returns the computed sum.
func VerifyArchive(body io.Reader, meta map[string]string) (ArchiveSum, error) {
	want, err := ParseMetadata(meta)
	if err != nil {
		return ArchiveSum{}, err
	}
	got, err := SumArchive(body)
	if err != nil {
		return ArchiveSum{}, err
	}
	if got.SHA256 != want.SHA256 {
		return got, fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, got.SHA256, want.SHA256)
	}
	if got.Entries != want.Entries {
		return got, fmt.Errorf("%w: got %d, want %d", ErrEntryCountMismatch, got.Entries, want.Entries)
	}
	return got, nil
}
