package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/viant/artifex/service/verifier"
)

var verifyCmd = &cobra.Command{
	Use:   "verify URL",
	Short: "Verify a local artifact against checksums and a signature",
	Long: `Verify computes the requested checksums in a single pass and checks an
optional base64 signature of the artifact SHA-256 digest.

Example:
  artifex verify model.bin --checksum SHA256=9f86d0...
  artifex verify model.bin --signature MEUCIQ... --public-key dispatcher.pem
`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringSlice("checksum", nil, "Expected checksum as ALGORITHM=hex, repeatable")
	verifyCmd.Flags().String("signature", "", "Base64 signature")
	verifyCmd.Flags().String("signature-algorithm", verifier.RSASHA256, "Signature algorithm (RSA-SHA256, ED25519)")
	verifyCmd.Flags().String("public-key", "", "Public key PEM URL")
	verifyCmd.Flags().String("public-key-secret", "", "scy key decrypting the public key, e.g. blowfish://default")
	verifyCmd.Flags().Bool("require-checksum", false, "Fail artifacts without checksums")
}

func runVerify(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	values, _ := flags.GetStringSlice("checksum")
	checksums := map[string]string{}
	for _, value := range values {
		algorithm, expected, ok := strings.Cut(value, "=")
		if !ok {
			return fmt.Errorf("invalid checksum %q, expected ALGORITHM=hex", value)
		}
		checksums[algorithm] = expected
	}
	signature, _ := flags.GetString("signature")
	signatureAlgorithm, _ := flags.GetString("signature-algorithm")
	publicKey, _ := flags.GetString("public-key")
	publicKeySecret, _ := flags.GetString("public-key-secret")
	requireChecksum, _ := flags.GetBool("require-checksum")

	options := []verifier.Option{verifier.WithConfig(verifier.Config{RequireChecksum: requireChecksum})}
	if publicKey != "" {
		options = append(options, verifier.WithKeySource(verifier.NewSecretKeys(publicKey, publicKeySecret)))
	}
	record := verifier.New(options...).Verify(cmd.Context(), &verifier.Request{
		TaskID:             args[0],
		ResourceKey:        args[0],
		ArtifactURL:        args[0],
		Checksums:          checksums,
		Signature:          signature,
		SignatureAlgorithm: signatureAlgorithm,
	})
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(record); err != nil {
		return err
	}
	if !record.Verified() {
		_, reason, message := record.State()
		return fmt.Errorf("verification failed: %v: %v", reason, message)
	}
	return nil
}
