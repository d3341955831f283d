package htmlimport

import (
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const userBoxHTML = `<link rel="import" href="../shared.html">
<!-- <dom-module id="user-box"><template>commented out</template></dom-module> -->
<dom-module id="other-box">
  <template><p>other</p></template>
</dom-module>
<dom-module id="user-box">
  <template>
    <!-- greeting -->
    <span class="name">Hello</span>
  </template>
</dom-module>`

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"frontend/user-box.html": {Data: []byte(userBoxHTML)},
		"frontend/empty.html":    {Data: []byte(`<dom-module id="empty-box"></dom-module>`)},
		"frontend/commented.html": {
			Data: []byte(`<!-- <dom-module id="user-box"><template>x</template></dom-module> -->`),
		},
	}
}

func TestResolveFindsDomModule(t *testing.T) {
	r := NewResolver(testFS(), WithLogger(zaptest.NewLogger(t)))

	module, err := r.Resolve("frontend/user-box.html", "user-box", "UserBoxExporter")
	require.NoError(t, err)
	assert.Equal(t, "dom-module", module.Data)
}

func TestTemplateStripsComments(t *testing.T) {
	r := NewResolver(testFS())

	got, err := r.Template("/frontend/user-box.html", "user-box", "UserBoxExporter")
	require.NoError(t, err)
	assert.Equal(t, `<span class="name">Hello</span>`, got)
	assert.NotContains(t, got, "greeting")
}

func TestTemplateWithoutTemplateElement(t *testing.T) {
	r := NewResolver(testFS())

	got, err := r.Template("frontend/empty.html", "empty-box", "EmptyExporter")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name       string
		importPath string
		tag        string
		wantInMsg  []string
	}{
		{
			name:       "missing module",
			importPath: "frontend/user-box.html",
			tag:        "missing-box",
			wantInMsg:  []string{"missing-box", "MissingExporter"},
		},
		{
			name:       "commented module is not a definition",
			importPath: "frontend/commented.html",
			tag:        "user-box",
			wantInMsg:  []string{"user-box", "MissingExporter"},
		},
	}

	r := NewResolver(testFS())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(tt.importPath, tt.tag, "MissingExporter")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrTemplateNotFound))
			for _, s := range tt.wantInMsg {
				assert.Contains(t, err.Error(), s)
			}
		})
	}
}

func TestCacheAndForget(t *testing.T) {
	fsys := testFS()
	r := NewResolver(fsys)

	_, err := r.Resolve("frontend/user-box.html", "user-box", "x")
	require.NoError(t, err)

	// Cached document survives removal from the file system.
	delete(fsys, "frontend/user-box.html")
	_, err = r.Resolve("frontend/user-box.html", "user-box", "x")
	require.NoError(t, err)

	r.Forget("frontend/user-box.html")
	_, err = r.Resolve("frontend/user-box.html", "user-box", "x")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestCleanPath(t *testing.T) {
	tests := map[string]string{
		"frontend/a.html":             "frontend/a.html",
		"/frontend/a.html":            "frontend/a.html",
		"frontend://src/a.html":       "src/a.html",
		"frontend/../frontend/a.html": "frontend/a.html",
	}
	for in, want := range tests {
		assert.Equal(t, want, cleanPath(in), in)
	}
}
