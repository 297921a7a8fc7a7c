package bundle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFor(t *testing.T) {
	format, err := FormatFor("dist/app.tar.xz")
	require.NoError(t, err)
	assert.Equal(t, TarXz, format)

	format, err = FormatFor("app.tar.br")
	require.NoError(t, err)
	assert.Equal(t, TarBrotli, format)

	_, err = FormatFor("app.zip")
	assert.ErrorContains(t, err, "not supported")
}

func TestPackAndExtract(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "lib", "plugins"), 0770))
	require.NoError(t, os.WriteFile(filepath.Join(src, "app"), []byte("#!/bin/sh\necho hi\n"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(src, "lib", "libcore.a"), []byte("archive"), 0640))
	require.NoError(t, os.WriteFile(filepath.Join(src, "lib", "plugins", "x.so"), []byte("plugin"), 0640))

	for _, ext := range []string{".tar.xz", ".tar.br"} {
		t.Run(ext, func(t *testing.T) {
			archive := filepath.Join(t.TempDir(), "bundle"+ext)

			count, err := Pack(archive, src)
			require.NoError(t, err)
			assert.Equal(t, 3, count)

			dest := t.TempDir()
			require.NoError(t, Extract(archive, dest))

			data, err := os.ReadFile(filepath.Join(dest, "lib", "plugins", "x.so"))
			require.NoError(t, err)
			assert.Equal(t, "plugin", string(data))

			data, err = os.ReadFile(filepath.Join(dest, "app"))
			require.NoError(t, err)
			assert.Equal(t, "#!/bin/sh\necho hi\n", string(data))
		})
	}
}

func TestPackRejectsUnknownFormat(t *testing.T) {
	_, err := Pack(filepath.Join(t.TempDir(), "out.rar"), t.TempDir())
	assert.Error(t, err)
}
