// Package inspect verifies a release directory: the manifest signature, the
// plan and policy bindings, and the evidence head. Every check emits a
// reason code; the report is the stdout surface of `weftend inspect`.
package inspect

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/diblac17-eng/weftend/internal/canon"
	"github.com/diblac17-eng/weftend/internal/digest"
	"github.com/diblac17-eng/weftend/internal/reason"
	"github.com/diblac17-eng/weftend/internal/schema"
)

// Check is one verification step in the report.
type Check struct {
	Name       string `json:"name"`
	OK         bool   `json:"ok"`
	Optional   bool   `json:"optional,omitempty"`
	Present    bool   `json:"present"`
	ReasonCode string `json:"reasonCode,omitempty"`
}

// Report is the full verification outcome.
type Report struct {
	Schema      string   `json:"schema"`
	Verdict     string   `json:"verdict"`
	Checks      []Check  `json:"checks"`
	ReasonCodes []string `json:"reasonCodes"`
}

// requiredFiles are the four documents every release directory must carry.
var requiredFiles = []struct {
	name string
	code reason.Code
}{
	{"release_manifest.json", reason.ReleaseManifestMissing},
	{"release_public_key.json", reason.ReleasePublicKeyMissing},
	{"runtime_bundle.json", reason.ReleaseBundleMissing},
	{"evidence.json", reason.ReleaseEvidenceMissing},
}

// optionalArtifacts are reported but never fail verification.
var optionalArtifacts = []string{"policy.json", "tartarus.json", "receipts", "artifacts"}

// Verify runs every check against the release directory. Portal mode is the
// strictest surface: it additionally rejects releases whose evidence is
// bound to a fallback (fnv1a32) build identity.
func Verify(dir string, portal bool) *Report {
	rep := &Report{Schema: "weftend.inspectReport/0", ReasonCodes: []string{}}
	fail := func(name string, code reason.Code, present bool) {
		rep.Checks = append(rep.Checks, Check{Name: name, OK: false, Present: present, ReasonCode: string(code)})
		rep.ReasonCodes = append(rep.ReasonCodes, string(code))
	}
	pass := func(name string) {
		rep.Checks = append(rep.Checks, Check{Name: name, OK: true, Present: true})
	}

	files := map[string][]byte{}
	for _, rf := range requiredFiles {
		b, err := os.ReadFile(filepath.Join(dir, rf.name))
		if err != nil {
			fail(rf.name, rf.code, false)
			continue
		}
		files[rf.name] = b
		pass(rf.name)
	}

	var manifest schema.ReleaseManifest
	var pubkey schema.ReleasePublicKey
	var bundle schema.RuntimeBundle

	if b, ok := files["release_manifest.json"]; ok {
		if err := json.Unmarshal(b, &manifest); err != nil || len(manifest.Validate()) > 0 {
			fail("release_manifest.schema", "RELEASE_MANIFEST_INVALID", true)
		} else {
			pass("release_manifest.schema")
		}
	}
	if b, ok := files["release_public_key.json"]; ok {
		if err := json.Unmarshal(b, &pubkey); err != nil || len(pubkey.Validate()) > 0 {
			fail("release_public_key.schema", "RELEASE_PUBLIC_KEY_INVALID", true)
		} else {
			pass("release_public_key.schema")
		}
	}
	if b, ok := files["runtime_bundle.json"]; ok {
		if err := json.Unmarshal(b, &bundle); err != nil || len(bundle.Validate()) > 0 {
			fail("runtime_bundle.schema", "RUNTIME_BUNDLE_INVALID", true)
		} else {
			pass("runtime_bundle.schema")
		}
	}

	if manifest.Signature != "" && pubkey.Key != "" {
		if verifySignature(&manifest, &pubkey) {
			pass("manifest.signature")
		} else {
			fail("manifest.signature", reason.ReleaseSignatureBad, true)
		}
	}

	if manifest.PlanDigest != "" && bundle.Plan.PlanHash != "" {
		if manifest.PlanDigest == bundle.Plan.PlanHash {
			pass("manifest.planDigest")
		} else {
			fail("manifest.planDigest", reason.ReleasePlanDigestMismatch, true)
		}
	}
	if manifest.PolicyDigest != "" && bundle.Trust.PolicyID != "" {
		if manifest.PolicyDigest == bundle.Trust.PolicyID {
			pass("manifest.policyDigest")
		} else {
			fail("manifest.policyDigest", reason.PolicyDigestMismatch, true)
		}
	}

	if b, ok := files["evidence.json"]; ok && manifest.EvidenceJournalHead != "" {
		if digest.ComputeArtifactDigestV0(b) == manifest.EvidenceJournalHead {
			pass("manifest.evidenceJournalHead")
		} else {
			fail("manifest.evidenceJournalHead", reason.EvidenceHeadMismatch, true)
		}
	}

	if b, ok := files["evidence.json"]; ok {
		weak := evidenceBuildWeak(b)
		switch {
		case !weak:
			pass("evidence.buildIdentity")
		case portal:
			fail("evidence.buildIdentity", reason.ReleaseBuildDigestWeak, true)
		default:
			// Outside the portal a weak build identity is reported, not fatal.
			rep.Checks = append(rep.Checks, Check{
				Name: "evidence.buildIdentity", OK: true, Present: true,
				ReasonCode: string(reason.ReleaseBuildDigestWeak),
			})
		}
	}

	for _, name := range optionalArtifacts {
		_, err := os.Stat(filepath.Join(dir, name))
		rep.Checks = append(rep.Checks, Check{Name: name, OK: true, Optional: true, Present: err == nil})
	}

	rep.ReasonCodes = canon.StableSortUniqueV0(rep.ReasonCodes)
	if len(rep.ReasonCodes) == 0 {
		rep.Verdict = "PASS"
	} else {
		rep.Verdict = "FAIL"
	}
	return rep
}

// verifySignature checks the manifest signature under the declared
// algorithm. The demo "pub:" form exists for fixtures: a key "pub:<token>"
// verifies exactly the signature "demo:<token>".
func verifySignature(m *schema.ReleaseManifest, k *schema.ReleasePublicKey) bool {
	if strings.HasPrefix(k.Key, schema.DemoKeyPrefix) {
		token := strings.TrimPrefix(k.Key, schema.DemoKeyPrefix)
		return m.Signature == "demo:"+token
	}

	msg, err := m.SigningBytes()
	if err != nil {
		return false
	}
	sig, err := hex.DecodeString(m.Signature)
	if err != nil {
		return false
	}
	key, err := hex.DecodeString(k.Key)
	if err != nil {
		return false
	}

	switch m.SigAlg {
	case schema.SigAlgEd25519:
		if len(key) != ed25519.PublicKeySize {
			return false
		}
		return ed25519.Verify(ed25519.PublicKey(key), msg, sig)
	case schema.SigAlgP256:
		pub, err := x509.ParsePKIXPublicKey(key)
		if err != nil {
			return false
		}
		ec, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return false
		}
		sum := sha256.Sum256(msg)
		return ecdsa.VerifyASN1(ec, sum[:], sig)
	default:
		return false
	}
}

// evidenceBuildWeak reports whether the evidence bundle is bound to a
// non-sha256 build identity.
func evidenceBuildWeak(evidence []byte) bool {
	var doc struct {
		WeftendBuild digest.Build `json:"weftendBuild"`
	}
	if err := json.Unmarshal(evidence, &doc); err != nil {
		return false
	}
	return doc.WeftendBuild.Algo != "" && doc.WeftendBuild.Algo != "sha256"
}
