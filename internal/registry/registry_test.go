package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJurisdictionKey(t *testing.T) {
	tests := []struct {
		name string
		j    Jurisdiction
		want string
	}{
		{
			name: "statewide",
			j:    Jurisdiction{State: "co"},
			want: "CO",
		},
		{
			name: "county normalized",
			j:    Jurisdiction{State: "mo", County: "Clay"},
			want: "clay|MO",
		},
		{
			name: "whitespace trimmed",
			j:    Jurisdiction{State: " WI ", County: "  Dane "},
			want: "dane|WI",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.j.Key())
		})
	}
}

func TestNew_DuplicateKey(t *testing.T) {
	entries := []Descriptor{
		{Name: "a", State: "CO", URL: "https://example.com/a", Dialect: DialectPoint},
		{Name: "b", State: "co", URL: "https://example.com/b", Dialect: DialectPoint},
	}

	_, err := New(entries)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name      string
		entry     Descriptor
		errString string
	}{
		{
			name:      "missing url",
			entry:     Descriptor{Name: "x", State: "CO", Dialect: DialectPoint},
			errString: "url is required",
		},
		{
			name:      "missing state",
			entry:     Descriptor{Name: "x", URL: "https://example.com", Dialect: DialectPoint},
			errString: "state is required",
		},
		{
			name:      "unknown dialect",
			entry:     Descriptor{Name: "x", State: "CO", URL: "https://example.com", Dialect: "polyline"},
			errString: "unknown dialect",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New([]Descriptor{tt.entry})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestResolve(t *testing.T) {
	reg, err := New([]Descriptor{
		{Name: "Colorado", State: "CO", URL: "https://example.com/co", Dialect: DialectEnvelope},
		{Name: "Jackson MO", State: "MO", County: "Jackson", URL: "https://example.com/jackson", Dialect: DialectPoint},
	})
	require.NoError(t, err)

	t.Run("state entry covers any county in the state", func(t *testing.T) {
		d, err := reg.Resolve(Jurisdiction{State: "CO", County: "Boulder"})
		require.NoError(t, err)
		assert.Equal(t, "Colorado", d.Name)
	})

	t.Run("county entry", func(t *testing.T) {
		d, err := reg.Resolve(Jurisdiction{State: "MO", County: "Jackson"})
		require.NoError(t, err)
		assert.Equal(t, "Jackson MO", d.Name)
	})

	t.Run("unregistered county", func(t *testing.T) {
		_, err := reg.Resolve(Jurisdiction{State: "KS", County: "Johnson"})
		assert.ErrorIs(t, err, ErrNotRegistered)
	})

	t.Run("unregistered state", func(t *testing.T) {
		_, err := reg.Resolve(Jurisdiction{State: "KS"})
		assert.ErrorIs(t, err, ErrNotRegistered)
	})
}

func TestDefaultEntries(t *testing.T) {
	reg, err := New(DefaultEntries())
	require.NoError(t, err)
	assert.Equal(t, 3, reg.Len())

	d, err := reg.Resolve(Jurisdiction{State: "MO", County: "Clay"})
	require.NoError(t, err)
	assert.Equal(t, DialectEnvelope, d.Dialect)
	assert.InDelta(t, 0.002, d.Buffer(), 1e-9)
}
