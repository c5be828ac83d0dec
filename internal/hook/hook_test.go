package hook

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxvaer/dirsift/internal/scanner"
)

func TestRunExpandsPlaceholdersAndPipesJSON(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	dir := t.TempDir()
	args := filepath.Join(dir, "args")
	stdin := filepath.Join(dir, "stdin")

	r := NewRunner("echo {status} {path} {size} > "+args+"; cat > "+stdin, nil)
	r.Run(context.Background(), &scanner.Result{
		Path:   "/admin/",
		Status: 200,
		Response: &scanner.Response{
			Status: 200,
			Body:   []byte("hello world"),
			URL:    "http://example.com/admin/",
		},
	})

	got, err := os.ReadFile(args)
	require.NoError(t, err)
	assert.Equal(t, "200 /admin/ 11\n", string(got))

	raw, err := os.ReadFile(stdin)
	require.NoError(t, err)
	var payload resultJSON
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, "http://example.com/admin/", payload.URL)
	assert.Equal(t, 2, payload.WordCount)
}
