package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/artifex/protocol"
)

func TestRunDecode(t *testing.T) {
	testCases := []struct {
		description string
		input       string
		expectErr   bool
		expected    string
	}{
		{
			description: "v1 status migrated",
			input:       "version: 1\nkind: status\nstatus:\n  reports:\n    - taskId: t1\n      state: CHECKING\n",
			expected:    "verifying",
		},
		{
			description: "missing version",
			input:       "kind: status\n",
			expectErr:   true,
		},
	}
	for _, testCase := range testCases {
		out := &bytes.Buffer{}
		decodeCmd.SetIn(strings.NewReader(testCase.input))
		decodeCmd.SetOut(out)
		err := runDecode(decodeCmd, []string{"-"})
		if testCase.expectErr {
			assert.Error(t, err, testCase.description)
			continue
		}
		require.NoError(t, err, testCase.description)
		msg, err := protocol.Decode(out.Bytes())
		require.NoError(t, err, testCase.description)
		assert.Equal(t, protocol.Latest(), msg.Version, testCase.description)
		assert.Equal(t, testCase.expected, msg.Status.Reports[0].State, testCase.description)
	}
}
