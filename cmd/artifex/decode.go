package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/viant/afs"
	"github.com/viant/artifex/protocol"
)

var decodeCmd = &cobra.Command{
	Use:   "decode [URL|-]",
	Short: "Decode a protocol message and print it in the latest version",
	Long: `Decode reads a dispatcher message of any supported version, migrates it
to the latest version and prints the result.

Example:
  artifex decode assignment-v1.yaml
  cat status.yaml | artifex decode -
`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

func runDecode(cmd *cobra.Command, args []string) error {
	data, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}
	msg, err := protocol.Decode(data)
	if err != nil {
		return err
	}
	encoded, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(encoded)
	return err
}

func readInput(cmd *cobra.Command, URL string) ([]byte, error) {
	if URL == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	if _, err := os.Stat(URL); err == nil {
		return os.ReadFile(URL)
	}
	data, err := afs.New().DownloadWithURL(cmd.Context(), URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read %v: %w", URL, err)
	}
	return data, nil
}
