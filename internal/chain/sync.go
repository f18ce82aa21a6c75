package chain

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/SushanthKS06/IsoLog/internal/model"
)

// Manifest is manifest.json inside a sync package (§4.7/§6).
type Manifest struct {
	Version   int               `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	SourceID  string            `json:"source_id"`
	Files     []ManifestFile    `json:"files"`
	Counts    map[string]int    `json:"counts"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ManifestFile records one archive member's declared content type and
// the SHA-256 hash import re-verifies against.
type ManifestFile struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	SHA256      string `json:"sha256"`
}

const manifestVersion = 1

// ExportPackage bundles events and blocks into a tar.gz per §4.7:
// manifest.json, events.jsonl (one canonical-JSON event per line),
// blockchain.json (the block array). klauspost/compress's gzip is a
// drop-in for compress/gzip with a faster implementation, already a
// teacher dependency; archive/tar has no ecosystem replacement in the
// pack so it's used as-is.
func ExportPackage(sourceID string, events []*model.Event, blocks []*model.HashBlock, now time.Time) ([]byte, error) {
	eventsJSONL, err := eventsToJSONL(events)
	if err != nil {
		return nil, err
	}
	blockchainJSON, err := json.MarshalIndent(blocks, "", "  ")
	if err != nil {
		return nil, err
	}

	manifest := Manifest{
		Version:   manifestVersion,
		CreatedAt: now,
		SourceID:  sourceID,
		Counts:    map[string]int{"events": len(events), "blocks": len(blocks)},
		Files: []ManifestFile{
			{Name: "events.jsonl", ContentType: "application/x-ndjson", SHA256: sha256Hex(eventsJSONL)},
			{Name: "blockchain.json", ContentType: "application/json", SHA256: sha256Hex(blockchainJSON)},
		},
	}
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, f := range []struct {
		name string
		data []byte
	}{
		{"manifest.json", manifestJSON},
		{"events.jsonl", eventsJSONL},
		{"blockchain.json", blockchainJSON},
	} {
		if err := tw.WriteHeader(&tar.Header{
			Name: f.name,
			Mode: 0640,
			Size: int64(len(f.data)),
		}); err != nil {
			return nil, err
		}
		if _, err := tw.Write(f.data); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func eventsToJSONL(events []*model.Event) ([]byte, error) {
	var buf bytes.Buffer
	for _, ev := range events {
		line, err := ev.CanonicalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// PackageHash is the SHA-256 of the whole archive, per §4.7 ("The
// package hash is the SHA-256 of the archive bytes").
func PackageHash(archive []byte) string { return sha256Hex(archive) }

// ImportResult is the structured outcome of ImportPackage (§7: failures
// return structured results, not raised errors).
type ImportResult struct {
	Valid           bool          `json:"valid"`
	EventsImported  int           `json:"events_imported"`
	BlocksImported  int           `json:"blocks_imported"`
	ChainContinuity *VerifyResult `json:"chain_continuity,omitempty"`
	Reason          string        `json:"reason,omitempty"`
}

// ImportPackage extracts archive, verifies every manifest file hash
// against its re-computed hash, and — if verifyBlockchain is true —
// additionally walks the included chain's previous-hash continuity. A
// hash mismatch is fatal to the whole import: per §4.7, "the import
// does not partially commit", so ImportPackage returns events and
// blocks only when every check passes; on failure both are nil.
func ImportPackage(archive []byte, verifyBlockchain bool) (events []*model.Event, blocks []*model.HashBlock, result ImportResult, err error) {
	gz, err := gzip.NewReader(bytes.NewReader(archive))
	if err != nil {
		return nil, nil, ImportResult{Reason: "not a gzip archive"}, nil
	}
	defer gz.Close()

	files := map[string][]byte{}
	tr := tar.NewReader(gz)
	for {
		hdr, terr := tr.Next()
		if terr == io.EOF {
			break
		}
		if terr != nil {
			return nil, nil, ImportResult{Reason: fmt.Sprintf("tar read error: %v", terr)}, nil
		}
		data, rerr := io.ReadAll(tr)
		if rerr != nil {
			return nil, nil, ImportResult{Reason: fmt.Sprintf("tar read error: %v", rerr)}, nil
		}
		files[hdr.Name] = data
	}
	// The tar reader stops at the end-of-archive blocks; read the gzip
	// stream to its end so its CRC-32/size trailer is checked too.
	if _, derr := io.Copy(io.Discard, gz); derr != nil {
		return nil, nil, ImportResult{Reason: fmt.Sprintf("gzip read error: %v", derr)}, nil
	}

	manifestData, ok := files["manifest.json"]
	if !ok {
		return nil, nil, ImportResult{Reason: "missing manifest.json"}, nil
	}
	var manifest Manifest
	if jerr := json.Unmarshal(manifestData, &manifest); jerr != nil {
		return nil, nil, ImportResult{Reason: "malformed manifest.json"}, nil
	}

	for _, mf := range manifest.Files {
		data, ok := files[mf.Name]
		if !ok {
			return nil, nil, ImportResult{Reason: "manifest references missing file " + mf.Name}, nil
		}
		if sha256Hex(data) != mf.SHA256 {
			return nil, nil, ImportResult{Reason: "hash mismatch for " + mf.Name}, nil
		}
	}

	parsedEvents, perr := jsonlToEvents(files["events.jsonl"])
	if perr != nil {
		return nil, nil, ImportResult{Reason: "malformed events.jsonl: " + perr.Error()}, nil
	}
	var parsedBlocks []*model.HashBlock
	if raw, ok := files["blockchain.json"]; ok {
		if jerr := json.Unmarshal(raw, &parsedBlocks); jerr != nil {
			return nil, nil, ImportResult{Reason: "malformed blockchain.json"}, nil
		}
	}

	res := ImportResult{Valid: true, EventsImported: len(parsedEvents), BlocksImported: len(parsedBlocks)}
	if verifyBlockchain {
		vr := VerifyChain(parsedBlocks)
		res.ChainContinuity = &vr
		if !vr.Valid {
			res.Valid = false
			res.Reason = "blockchain continuity check failed: " + vr.Reason
			return nil, nil, res, nil
		}
	}
	return parsedEvents, parsedBlocks, res, nil
}

func jsonlToEvents(data []byte) ([]*model.Event, error) {
	var out []*model.Event
	for _, line := range bytes.Split(bytes.TrimRight(data, "\n"), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var ev model.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, err
		}
		out = append(out, &ev)
	}
	return out, nil
}
