package gitutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRepo(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{name: "Full name", in: "sevigo/brigadier", wantOwner: "sevigo", wantRepo: "brigadier"},
		{name: "HTTPS clone URL", in: "https://github.com/sevigo/brigadier.git", wantOwner: "sevigo", wantRepo: "brigadier"},
		{name: "HTTPS URL without suffix", in: "https://github.com/sevigo/brigadier/", wantOwner: "sevigo", wantRepo: "brigadier"},
		{name: "URL without scheme", in: "github.com/sevigo/brigadier", wantOwner: "sevigo", wantRepo: "brigadier"},
		{name: "SSH URL", in: "git@github.com:sevigo/brigadier.git", wantOwner: "sevigo", wantRepo: "brigadier"},
		{name: "Dots in name", in: "sevigo/brigadier.js", wantOwner: "sevigo", wantRepo: "brigadier.js"},
		{name: "Other host", in: "https://gitlab.com/sevigo/brigadier", wantErr: true},
		{name: "Too many segments", in: "https://github.com/sevigo/brigadier/pull/1", wantErr: true},
		{name: "Single segment", in: "brigadier", wantErr: true},
		{name: "Empty", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, err := ParseRepo(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantOwner, owner)
			assert.Equal(t, tt.wantRepo, repo)
		})
	}
}
