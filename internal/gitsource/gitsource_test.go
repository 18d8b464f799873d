package gitsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalPath(t *testing.T) {
	testCases := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{name: "https", url: "https://github.com/user/words.git", want: filepath.Join("repos", "github.com", "user", "words")},
		{name: "https without suffix", url: "https://gitlab.com/a/b", want: filepath.Join("repos", "gitlab.com", "a", "b")},
		{name: "scp-like", url: "git@github.com:user/words.git", want: filepath.Join("repos", "github.com", "user", "words")},
		{name: "local path", url: "/home/user/words", wantErr: true},
		{name: "garbage", url: "not a url", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := LocalPath("repos", tc.url)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSyncOpenFailsOnNonRepo(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "words.md"), []byte("W: a\nM: b\n"), 0o644))

	err := Sync(context.Background(), zap.NewNop(), "https://example.invalid/words.git", dir)
	assert.ErrorContains(t, err, "failed to open existing repo")
}
