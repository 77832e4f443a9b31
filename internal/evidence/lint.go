package evidence

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/diblac17-eng/weftend/internal/canon"
	"github.com/diblac17-eng/weftend/internal/reason"
	"github.com/diblac17-eng/weftend/internal/schema"
)

// driveLetterPath matches Windows drive-letter paths like `C:\`.
var driveLetterPath = regexp.MustCompile(`[A-Z]:\\`)

// Lint sweeps every text and JSON file under dir for the forbidden leakage
// patterns: drive-letter paths, /Users/, /home/, and HOME=. Evidence must
// never reveal where it was produced.
func Lint(dir string) schema.PrivacyLintResult {
	var codes []string

	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".json" && ext != ".txt" {
			return nil
		}
		b, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		s := string(b)
		if driveLetterPath.MatchString(s) || strings.Contains(s, "/Users/") || strings.Contains(s, "/home/") {
			codes = append(codes, string(reason.PrivacyLintPathLeak))
		}
		if strings.Contains(s, "HOME=") {
			codes = append(codes, string(reason.PrivacyLintEnvLeak))
		}
		return nil
	})

	verdict := "PASS"
	if len(codes) > 0 {
		verdict = "FAIL"
	}
	return schema.PrivacyLintResult{
		Schema:      schema.SchemaPrivacyLint,
		Verdict:     verdict,
		ReasonCodes: canon.StableSortUniqueV0(codes),
	}
}
