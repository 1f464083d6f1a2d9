package types

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryValidate(t *testing.T) {
	now := time.Now().UTC()
	valid := Memory{
		ID:        "mem-1",
		Project:   DefaultProject,
		Content:   "the deploy script lives in scripts/deploy.sh",
		Tags:      []string{"ops"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, valid.Validate())

	noID := valid
	noID.ID = ""
	assert.Error(t, noID.Validate())

	blank := valid
	blank.Content = "   \n\t"
	assert.Error(t, blank.Validate())

	badProject := valid
	badProject.Project = "No Spaces Allowed"
	assert.Error(t, badProject.Validate())
}

func TestNormalizeProject(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "blank falls back to default", in: "", want: DefaultProject},
		{name: "whitespace falls back to default", in: "  ", want: DefaultProject},
		{name: "lowercased", in: "Apollo", want: "apollo"},
		{name: "underscores and dashes kept", in: "apollo_v2-beta", want: "apollo_v2-beta"},
		{name: "leading dash rejected", in: "-apollo", wantErr: true},
		{name: "spaces rejected", in: "apollo mission", wantErr: true},
		{name: "too long rejected", in: strings.Repeat("a", MaxProjectLength+1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeProject(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMemoryClone(t *testing.T) {
	m := Memory{ID: "a", Project: "p", Content: "c", Tags: []string{"x", "y"}}
	c := m.Clone()
	c.Tags[0] = "mutated"
	assert.Equal(t, "x", m.Tags[0])
}

func TestClampSearchLimit(t *testing.T) {
	assert.Equal(t, DefaultSearchLimit, ClampSearchLimit(0))
	assert.Equal(t, DefaultSearchLimit, ClampSearchLimit(-3))
	assert.Equal(t, 7, ClampSearchLimit(7))
	assert.Equal(t, MaxSearchLimit, ClampSearchLimit(10_000))
}
