package anacrolixbt

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// archivedBTH is the summary recorded for a torrent at drop time. Field
// selection mirrors the original liasis ArchivedBTH record: enough to
// reconstruct what the BTH did without keeping the live torrent state.
type archivedBTH struct {
	InfoHash     string `json:"info_hash"`
	Name         string `json:"name"`
	Active       bool   `json:"active"`
	BytesRead    int64  `json:"bytes_read"`
	BytesWritten int64  `json:"bytes_written"`
	AddedAt      int64  `json:"added_at_unix"`
	ArchivedAt   int64  `json:"archived_at_unix"`
}

// archiver receives a summary of every BTH dropped from a client. Its
// contract mirrors BTHNullArchiver/BTHPickleDirectoryArchiver from the
// original liasis: archiving is best-effort and never blocks or fails
// DropTorrent.
type archiver interface {
	archive(rec archivedBTH)
}

// nullArchiver discards every record, matching BTHNullArchiver. It's the
// default when a client has no ArchiveDir configured.
type nullArchiver struct{}

func (nullArchiver) archive(archivedBTH) {}

// dirArchiver writes one JSON file per drop under
// basePath/<info-hash-hex>/<unix-nanos>.json, the same directory-per-hash
// layout BTHPickleDirectoryArchiver used, substituting JSON for pickle
// since a Go daemon has no business writing Python pickles.
type dirArchiver struct {
	basePath string
}

func newArchiver(basePath string) archiver {
	if basePath == "" {
		return nullArchiver{}
	}
	return &dirArchiver{basePath: basePath}
}

func (a *dirArchiver) archive(rec archivedBTH) {
	dir := filepath.Join(a.basePath, rec.InfoHash)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("[WARN] anacrolixbt: archive mkdir %s: %v", dir, err)
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("%d.json", time.Now().UnixNano()))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		log.Printf("[WARN] anacrolixbt: archive create %s: %v", path, err)
		return
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(rec); err != nil {
		log.Printf("[WARN] anacrolixbt: archive encode %s: %v", path, err)
	}
}

func infoHashHex(b [20]byte) string {
	return hex.EncodeToString(b[:])
}
