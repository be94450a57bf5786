package target

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_ContextWithNamespaces(t *testing.T) {
	specs, err := Resolve([]string{"prod:ns1,ns2"})
	require.NoError(t, err)
	require.Len(t, specs, 1)

	assert.Equal(t, "prod", specs[0].Context)
	assert.Equal(t, []string{"ns1", "ns2"}, specs[0].Namespaces)
}

func TestResolve_BareContextMeansAllNamespaces(t *testing.T) {
	specs, err := Resolve([]string{"prod"})
	require.NoError(t, err)
	require.Len(t, specs, 1)

	assert.Equal(t, "prod", specs[0].Context)
	assert.Empty(t, specs[0].Namespaces)
}

func TestResolve_PreservesOrderAndDuplicates(t *testing.T) {
	specs, err := Resolve([]string{"staging:batch", "prod", "staging:batch"})
	require.NoError(t, err)
	require.Len(t, specs, 3)

	assert.Equal(t, "staging", specs[0].Context)
	assert.Equal(t, "prod", specs[1].Context)
	assert.Equal(t, specs[0], specs[2], "duplicates are passed through untouched")
}

func TestResolve_ParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"empty target", ""},
		{"trailing colon", "prod:"},
		{"missing context", ":ns1"},
		{"empty namespace element", "prod:ns1,,ns2"},
		{"uppercase namespace", "prod:Jobs"},
		{"namespace with leading dash", "prod:-jobs"},
		{"context with comma", "pr,od:ns1"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Resolve([]string{test.target})
			require.Error(t, err)

			var parseErr *ParseError
			assert.True(t, errors.As(err, &parseErr), "expected *ParseError, got %T", err)
		})
	}
}

func TestResolve_FailsFastOnFirstBadTarget(t *testing.T) {
	_, err := Resolve([]string{"prod:ns1", "bad:"})
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "bad:", parseErr.Target)
}
