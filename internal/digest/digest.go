// Package digest implements the content-digest algebra shared by every
// receipt: sha256 artifact digests, the zero-digest sentinel used when
// self-referencing receiptDigest fields are computed, and the fnv1a32
// fallback for build identity.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/diblac17-eng/weftend/internal/canon"
)

// ZeroDigest is the sentinel placed in a receipt's receiptDigest field while
// the digest of the receipt itself is being computed.
const ZeroDigest = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// ComputeArtifactDigestV0 returns "sha256:" + lowercase hex of SHA-256 over
// the exact bytes given.
func ComputeArtifactDigestV0(b []byte) string {
	sum := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// FNV1a32 returns "fnv1a32:" + 8-digit lowercase hex of the 32-bit FNV-1a
// hash. It exists only as the build-identity fallback; artifact and receipt
// digests are always sha256.
func FNV1a32(b []byte) string {
	h := fnv.New32a()
	h.Write(b)
	return fmt.Sprintf("fnv1a32:%08x", h.Sum32())
}

// IsSha256 reports whether d is a well-formed "sha256:<64 lowercase hex>"
// digest string.
func IsSha256(d string) bool {
	const prefix = "sha256:"
	if !strings.HasPrefix(d, prefix) {
		return false
	}
	hexPart := d[len(prefix):]
	if len(hexPart) != 64 {
		return false
	}
	for i := 0; i < len(hexPart); i++ {
		c := hexPart[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// ReceiptDigest computes the self-digest of a receipt document: the
// receiptDigest key is set to the zero sentinel, the document is
// canonicalized, hashed, and the resulting digest returned. The input map is
// not modified.
func ReceiptDigest(doc map[string]any) (string, error) {
	clone := make(map[string]any, len(doc))
	for k, v := range doc {
		clone[k] = v
	}
	clone["receiptDigest"] = ZeroDigest
	b, err := canon.MarshalV0(clone)
	if err != nil {
		return "", fmt.Errorf("digest: canonicalize receipt: %w", err)
	}
	return ComputeArtifactDigestV0(b), nil
}

// SealReceipt canonicalizes doc with its receiptDigest embedded: the digest
// is computed via ReceiptDigest, written into a copy of the document, and
// the canonical bytes of the sealed form returned along with the digest.
func SealReceipt(doc map[string]any) ([]byte, string, error) {
	d, err := ReceiptDigest(doc)
	if err != nil {
		return nil, "", err
	}
	sealed := make(map[string]any, len(doc))
	for k, v := range doc {
		sealed[k] = v
	}
	sealed["receiptDigest"] = d
	b, err := canon.MarshalV0(sealed)
	if err != nil {
		return nil, "", err
	}
	return b, d, nil
}
