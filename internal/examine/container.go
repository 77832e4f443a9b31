package examine

import (
	"regexp"
	"strings"

	"github.com/diblac17-eng/weftend/internal/digest"
	"github.com/diblac17-eng/weftend/internal/reason"
	"github.com/diblac17-eng/weftend/internal/schema"
)

// immutableRef matches the only container reference form accepted on the
// evidence path: <registry>/<repo>@sha256:<64hex>. Tags are mutable and
// rejected.
var immutableRef = regexp.MustCompile(`^[a-z0-9][a-z0-9.\-]*(?::\d+)?(?:/[a-z0-9][a-z0-9._\-]*)+@sha256:[0-9a-f]{64}$`)

// examineContainer mints a container artifact from an immutable image
// reference. The image itself is never pulled; the mint records the
// reference identity and the local-store probe outcome.
func (e *Examiner) examineContainer(ref string, opts Options) (*Result, *Failure) {
	if strings.HasPrefix(opts.DockerHost, "tcp://") || strings.HasPrefix(opts.DockerHost, "ssh://") {
		return nil, &Failure{
			Code:         reason.DockerRemoteContextUnsupported,
			Message:      "remote docker contexts are not supported on the evidence path",
			Precondition: true,
		}
	}

	if !immutableRef.MatchString(ref) {
		return nil, &Failure{
			Code:         reason.DockerImageRefNotImmutable,
			Message:      "container reference must be pinned by digest (repo@sha256:<64hex>)",
			Precondition: true,
		}
	}

	if opts.LocalImageProbe == nil {
		return nil, &Failure{
			Code:         reason.DockerDaemonUnavailable,
			Message:      "no local image store is reachable",
			Precondition: true,
		}
	}
	if !opts.LocalImageProbe(ref) {
		return nil, &Failure{
			Code:         reason.DockerImageNotLocal,
			Message:      "image is not present in the local store",
			Precondition: true,
		}
	}

	mint := &schema.MintPackage{
		Schema:           schema.SchemaMint,
		ArtifactKind:     schema.KindContainer,
		TargetKind:       schema.TargetContainer,
		InputDigest:      digest.ComputeArtifactDigestV0([]byte(ref)),
		TotalFiles:       1,
		FileCountsByKind: map[string]int64{schema.KindContainer: 1},
		EntryHints:       []string{ref[strings.LastIndex(ref, "@")+1:]},
	}
	mint.Normalize()
	return &Result{Mint: mint, AdapterClass: "container"}, nil
}
