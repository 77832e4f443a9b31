package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/diblac17-eng/weftend/internal/buildinfo"
	"github.com/diblac17-eng/weftend/internal/reason"
)

// BuildSource identifies how the build digest was obtained.
type BuildSource string

const (
	// BuildSourceExecutable means the digest is the sha256 of the running
	// binary on disk.
	BuildSourceExecutable BuildSource = "executable"

	// BuildSourceFallback means the binary could not be hashed and the
	// digest is the fnv1a32 of the ldflags version metadata.
	BuildSourceFallback BuildSource = "fallback"
)

// Build is the engine identity embedded in every top-level receipt as
// weftendBuild. It binds a receipt to a specific build of the engine.
type Build struct {
	Algo        string   `json:"algo"`
	Digest      string   `json:"digest"`
	Source      string   `json:"source"`
	ReasonCodes []string `json:"reasonCodes,omitempty"`
}

// NewBuild computes the build identity once at process startup. The running
// executable is hashed with sha256; if it cannot be read, the identity falls
// back to fnv1a32 over the ldflags version metadata and carries
// WEFTEND_BUILD_DIGEST_UNAVAILABLE.
func NewBuild() Build {
	if d, ok := hashExecutable(); ok {
		return Build{Algo: "sha256", Digest: d, Source: string(BuildSourceExecutable)}
	}
	return FallbackBuild()
}

// FallbackBuild returns the fnv1a32 identity used when the running binary
// cannot be hashed, and by the compare loader when neither side carries a
// build identity.
func FallbackBuild() Build {
	seed := []byte(buildinfo.Version + "+" + buildinfo.Commit)
	return Build{
		Algo:        "fnv1a32",
		Digest:      FNV1a32(seed),
		Source:      string(BuildSourceFallback),
		ReasonCodes: []string{string(reason.BuildDigestUnavailable)},
	}
}

func hashExecutable() (string, bool) {
	exe, err := os.Executable()
	if err != nil {
		return "", false
	}
	f, err := os.Open(exe)
	if err != nil {
		return "", false
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", false
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), true
}
