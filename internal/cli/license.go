package cli

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/diblac17-eng/weftend/internal/reason"
	"github.com/diblac17-eng/weftend/internal/schema"
)

// licenseDoc is the license.json document. The signature covers the
// canonical bytes with the signature field emptied.
type licenseDoc struct {
	Schema    string `json:"schema"`
	Licensee  string `json:"licensee"`
	SigAlg    string `json:"sigAlg"`
	Signature string `json:"signature"`
}

// keyDoc is the key file format for license issue/verify: hex-encoded raw
// key material under a named algorithm.
type keyDoc struct {
	Alg string `json:"alg"`
	Key string `json:"key"`
}

var licenseCmd = &cobra.Command{
	Use:   "license",
	Short: "Issue and verify license documents",
}

var licenseIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Sign a license document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		keyPath, _ := cmd.Flags().GetString("key")
		out, _ := cmd.Flags().GetString("out")
		licensee, _ := cmd.Flags().GetString("licensee")
		return runLicenseIssue(keyPath, out, licensee)
	},
}

var licenseVerifyCmd = &cobra.Command{
	Use:   "verify <license.json>",
	Short: "Verify a license document against a public key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keyPath, _ := cmd.Flags().GetString("key")
		ok, err := runLicenseVerify(keyPath, args[0])
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "FAIL")
			return reason.Surface(reason.ReleaseSignatureBad, "license signature does not verify", nil)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "PASS")
		return nil
	},
}

func init() {
	licenseIssueCmd.Flags().String("key", "", "signing key file (required)")
	licenseIssueCmd.Flags().String("out", "", "license output file (required)")
	licenseIssueCmd.Flags().String("licensee", "", "licensee name (required)")
	_ = licenseIssueCmd.MarkFlagRequired("key")
	_ = licenseIssueCmd.MarkFlagRequired("out")
	_ = licenseIssueCmd.MarkFlagRequired("licensee")

	licenseVerifyCmd.Flags().String("key", "", "public key file (required)")
	_ = licenseVerifyCmd.MarkFlagRequired("key")

	licenseCmd.AddCommand(licenseIssueCmd)
	licenseCmd.AddCommand(licenseVerifyCmd)
	rootCmd.AddCommand(licenseCmd)
}

func runLicenseIssue(keyPath, out, licensee string) error {
	if samePath(keyPath, out) {
		return reason.Surface(reason.LicenseOutConflictsKey, "license output must not overwrite the signing key", nil)
	}

	key, err := readKey(keyPath)
	if err != nil {
		return err
	}
	raw, decErr := hex.DecodeString(key.Key)
	if decErr != nil || len(raw) != ed25519.SeedSize {
		return reason.Surface(reason.InputInvalid, "signing key must be a hex ed25519 seed", decErr)
	}
	priv := ed25519.NewKeyFromSeed(raw)

	doc := licenseDoc{
		Schema:   "weftend.license/0",
		Licensee: licensee,
		SigAlg:   schema.SigAlgEd25519,
	}
	msg, merr := licenseSigningBytes(&doc)
	if merr != nil {
		return reason.Internal(merr)
	}
	doc.Signature = hex.EncodeToString(ed25519.Sign(priv, msg))

	b, cerr := schema.CanonicalBytes(&doc)
	if cerr != nil {
		return reason.Internal(cerr)
	}
	if err := os.WriteFile(out, append(b, '\n'), 0644); err != nil {
		return reason.Internal(err)
	}
	return nil
}

func runLicenseVerify(keyPath, licensePath string) (bool, error) {
	key, err := readKey(keyPath)
	if err != nil {
		return false, err
	}

	b, rerr := os.ReadFile(licensePath)
	if rerr != nil {
		return false, reason.Surface(reason.InputMissing, "license file cannot be read", rerr)
	}
	var doc licenseDoc
	if jerr := json.Unmarshal(b, &doc); jerr != nil || doc.Schema != "weftend.license/0" {
		return false, reason.Surface(reason.InputInvalid, "license file is malformed", jerr)
	}

	sig, serr := hex.DecodeString(doc.Signature)
	if serr != nil {
		return false, nil
	}
	pub, perr := hex.DecodeString(key.Key)
	if perr != nil || len(pub) != ed25519.PublicKeySize {
		return false, reason.Surface(reason.InputInvalid, "public key must be hex ed25519", perr)
	}

	msg, merr := licenseSigningBytes(&doc)
	if merr != nil {
		return false, reason.Internal(merr)
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig), nil
}

func licenseSigningBytes(doc *licenseDoc) ([]byte, error) {
	unsigned := *doc
	unsigned.Signature = ""
	return schema.CanonicalBytes(&unsigned)
}

func readKey(path string) (*keyDoc, *reason.Error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, reason.Surface(reason.InputMissing, "key file cannot be read", err)
	}
	var k keyDoc
	if err := json.Unmarshal(b, &k); err != nil {
		return nil, reason.Surface(reason.InputInvalid, "key file is malformed", err)
	}
	return &k, nil
}

func samePath(a, b string) bool {
	aa, errA := filepath.Abs(a)
	bb, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return aa == bb
}
