package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/floe/internal/core/domain"
)

func TestPrependDirsToPathLike(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		envDirs  []string
		suffixes []string
		pathDirs []string
		want     []string
	}{
		{
			name:     "empty path-like var",
			envDirs:  []string{"foo", "bar"},
			suffixes: []string{"bin"},
			want:     []string{"foo/bin", "bar/bin"},
		},
		{
			name:    "no suffix keeps dirs bare",
			envDirs: []string{"foo", "bar"},
			want:    []string{"foo", "bar"},
		},
		{
			name:     "existing entries keep first occurrence",
			envDirs:  []string{"foo"},
			suffixes: []string{"bin"},
			pathDirs: []string{"/usr/bin", "foo/bin", "/bin"},
			want:     []string{"foo/bin", "/usr/bin", "/bin"},
		},
		{
			name:     "multiple suffixes per dir",
			envDirs:  []string{"foo"},
			suffixes: []string{"bin", "sbin"},
			pathDirs: []string{"/usr/bin"},
			want:     []string{"foo/bin", "foo/sbin", "/usr/bin"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := domain.PrependDirsToPathLike(tc.envDirs, tc.suffixes, tc.pathDirs)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDirListRoundTrip(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"foo", "bar"}, domain.SeparateDirList("foo:bar"))
	assert.Equal(t, []string{"foo"}, domain.SeparateDirList(":foo:"))
	assert.Nil(t, domain.SeparateDirList(""))
	assert.Equal(t, "foo:bar", domain.JoinDirList([]string{"foo", "bar"}))
}
