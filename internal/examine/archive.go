package examine

import (
	"archive/zip"
	"bytes"
	"path/filepath"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/diblac17-eng/weftend/internal/reason"
)

// eocdProbeBytes is how far back from the end of a zip the end-of-central-
// directory record is searched for. The record plus a maximal comment fits
// in 64KB + 22 bytes.
const eocdProbeBytes = 64*1024 + 22

var eocdSignature = []byte{'P', 'K', 0x05, 0x06}

// archiveObservation is what the archive probe contributes to a mint.
type archiveObservation struct {
	DepthMax    int64
	NestedCount int64
	Markers     []string
}

var nestedArchiveExts = map[string]bool{
	".zip": true, ".jar": true, ".war": true, ".tar": true,
	".tgz": true, ".gz": true, ".7z": true, ".xpi": true,
}

// probeArchive inspects an archive file without extracting it. Zip-family
// archives must carry a readable end-of-central-directory record; a missing
// record is the ZIP_EOCD_MISSING observation, which withholds the artifact
// rather than failing the run closed. Nested archives are counted by name
// but never opened — depth beyond one level is reported, not explored.
func probeArchive(path string, content []byte) (*archiveObservation, *Failure) {
	ext := strings.ToLower(filepath.Ext(path))
	if !isZipFamily(ext) {
		return &archiveObservation{DepthMax: 1, Markers: []string{"archive_unexpanded"}}, nil
	}

	if !hasEOCD(content) {
		return nil, &Failure{Code: reason.ZipEOCDMissing, Message: "zip end-of-central-directory record missing"}
	}

	r, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, &Failure{Code: reason.ZipEOCDMissing, Message: "zip central directory unreadable"}
	}

	// Distinct nested archives are counted by an identity key over the
	// entry's name and declared size; duplicated entries count once.
	seen := map[uint64]bool{}
	obs := &archiveObservation{DepthMax: 1, Markers: []string{"archive_bounded"}}
	for _, f := range r.File {
		e := strings.ToLower(filepath.Ext(f.Name))
		if !nestedArchiveExts[e] {
			continue
		}
		key := xxh3.HashString(f.Name) ^ f.UncompressedSize64
		if seen[key] {
			continue
		}
		seen[key] = true
		obs.NestedCount++
	}
	if obs.NestedCount > 0 {
		obs.DepthMax = 2
		obs.Markers = append(obs.Markers, "nested_archives_unexpanded")
	}
	return obs, nil
}

func isZipFamily(ext string) bool {
	switch ext {
	case ".zip", ".jar", ".war", ".xpi":
		return true
	default:
		return false
	}
}

// hasEOCD scans the trailing window of content for the zip end-of-central-
// directory signature.
func hasEOCD(content []byte) bool {
	window := content
	if len(window) > eocdProbeBytes {
		window = window[len(window)-eocdProbeBytes:]
	}
	return bytes.Contains(window, eocdSignature)
}
