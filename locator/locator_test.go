package locator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	var testCases = []struct {
		description string
		uri         string
		scheme      string
		env         string
		resource    *string
		expectErr   bool
	}{
		{description: "with resource", uri: "disk://aaaa/*", scheme: "disk", env: "aaaa", resource: strPtr("*")},
		{description: "without resource", uri: "disk://bbb", scheme: "disk", env: "bbb"},
		{description: "nested resource", uri: "disk://env/a/b/c.bin", scheme: "disk", env: "env", resource: strPtr("a/b/c.bin")},
		{description: "empty resource", uri: "disk://env/", scheme: "disk", env: "env", resource: strPtr("")},
		{description: "missing separator", uri: "disk:/bbb", expectErr: true},
		{description: "empty scheme", uri: "://bbb", expectErr: true},
		{description: "empty environment", uri: "disk:///x", expectErr: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			actual, err := Parse(testCase.uri)
			if testCase.expectErr {
				assert.True(t, errors.Is(err, ErrMalformedLocation))
				assert.Nil(t, actual)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCase.scheme, actual.Scheme)
			assert.Equal(t, testCase.env, actual.EnvironmentCode)
			assert.Equal(t, testCase.resource, actual.ResourceCode)
			assert.Equal(t, testCase.uri, Format(actual))
		})
	}
}

func TestResolver_Resolve(t *testing.T) {
	resolver := NewResolver(map[string]string{"aaaa": "mem://localhost/envs/aaaa/"})

	URL, err := resolver.ResolveString("disk://aaaa/functions/f1.zip")
	require.NoError(t, err)
	assert.Equal(t, "mem://localhost/envs/aaaa/functions/f1.zip", URL)

	URL, err = resolver.ResolveString("disk://aaaa")
	require.NoError(t, err)
	assert.Equal(t, "mem://localhost/envs/aaaa", URL)

	_, err = resolver.ResolveString("disk://zzz/x")
	assert.True(t, errors.Is(err, ErrUnknownEnvironment))

	_, err = resolver.ResolveString("s3://aaaa/x")
	assert.True(t, errors.Is(err, ErrMalformedLocation))

	for _, uri := range []string{"disk://aaaa/../../x", "disk://aaaa/functions/../../bbbb/f1.zip", "disk://aaaa/..", `disk://aaaa/functions\..\..\x`} {
		_, err = resolver.ResolveString(uri)
		assert.ErrorIs(t, err, ErrMalformedLocation, uri)
	}
	URL, err = resolver.ResolveString("disk://aaaa/functions/f1..zip")
	require.NoError(t, err)
	assert.Equal(t, "mem://localhost/envs/aaaa/functions/f1..zip", URL)
}

func strPtr(s string) *string { return &s }
