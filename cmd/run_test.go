package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCommands(t *testing.T) {
	input := `
# generated by configure
cc -c a.c -o a.o

   cc -c b.c -o b.o
`

	commands, err := readCommands(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"cc -c a.c -o a.o", "cc -c b.c -o b.o"}, commands)
}

func TestRewriteBuiltins(t *testing.T) {
	rewrite := rewriteBuiltins("/opt/unitbuild")

	assert.Equal(t, []string{"/opt/unitbuild", "rm", "-rf", "build"}, rewrite([]string{"rm", "-rf", "build"}))
	assert.Equal(t, []string{"cc", "-c", "a.c"}, rewrite([]string{"cc", "-c", "a.c"}))
	assert.Empty(t, rewrite([]string{}))
}
