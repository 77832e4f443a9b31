package examine

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/diblac17-eng/weftend/internal/schema"
)

// binaryProbeBytes is how much of a file is inspected for null bytes when
// deciding text versus native content, matching Git's 8KB convention.
const binaryProbeBytes = 8192

// kindPatterns maps artifact kinds to doublestar patterns matched against
// the slash-form relative path. Order matters: the first matching kind wins.
var kindPatterns = []struct {
	kind     string
	patterns []string
}{
	{schema.KindArchive, []string{"**/*.{zip,jar,war,tar,tgz,gz,7z,xpi}"}},
	{schema.KindEmail, []string{"**/*.{eml,msg}"}},
	{schema.KindHTML, []string{"**/*.{html,htm,xhtml}"}},
	{schema.KindScript, []string{"**/*.{js,mjs,cjs,ts,sh,bash,ps1,psm1,py,rb,pl,bat,cmd,vbs,lua}"}},
	{schema.KindNative, []string{"**/*.{exe,dll,so,dylib,wasm,bin,o,a,node}"}},
}

// entryHintNames are well-known entry file names surfaced as hints in the
// mint. Matching is by base name, case-insensitive.
var entryHintNames = map[string]bool{
	"main.wasm":     true,
	"index.html":    true,
	"index.htm":     true,
	"manifest.json": true,
	"run.sh":        true,
	"setup.exe":     true,
	"install.ps1":   true,
	"main.js":       true,
}

// classifyName assigns the artifact kind for one path. Content wins over
// extension for the native case: any null byte in the probe window makes a
// file NATIVE unless its extension already names a more specific kind.
func classifyName(path string, binary bool) string {
	rel := filepath.ToSlash(strings.ToLower(path))
	for _, kp := range kindPatterns {
		for _, p := range kp.patterns {
			if ok, _ := doublestar.Match(p, rel); ok {
				return kp.kind
			}
		}
	}
	if binary {
		return schema.KindNative
	}
	return schema.KindText
}

// isBinaryContent reports whether the probe window contains a null byte.
// Empty content is not binary.
func isBinaryContent(b []byte) bool {
	probe := b
	if len(probe) > binaryProbeBytes {
		probe = probe[:binaryProbeBytes]
	}
	return bytes.IndexByte(probe, 0) != -1
}

// entryHints returns the well-known entry hints matched by the path's base
// name.
func entryHints(path string) []string {
	base := strings.ToLower(filepath.Base(path))
	if entryHintNames[base] {
		return []string{base}
	}
	return nil
}
