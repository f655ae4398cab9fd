package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"owlreasoner/internal/config"
	"owlreasoner/internal/errs"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const zooManifest = `prefixes: {ex: "http://example.org/zoo#"}
classes: [ex:Animal, ex:Mammal, ex:Dog, ex:Cat]
object_properties: [ex:hasOwner]
individuals: [ex:rex, ex:tom, ex:alice]
axioms:
  - subclass: {sub: ex:Dog, super: ex:Mammal}
  - subclass: {sub: ex:Mammal, super: ex:Animal}
  - type: {individual: ex:rex, class: ex:Dog}
  - type: {individual: ex:tom, class: ex:Cat}
  - fact: {subject: ex:rex, property: ex:hasOwner, object: ex:alice}
`

const contradiction = "  - type: {individual: ex:rex, class: {not: ex:Dog}}\n"

// setup installs the globals PersistentPreRunE would set and writes the
// manifest to a temp dir.
func setup(t *testing.T, manifest string) string {
	t.Helper()
	cfg = config.DefaultConfig()
	logger = zap.NewNop()
	path := filepath.Join(t.TempDir(), "zoo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))
	return path
}

func newCmd() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	return cmd, &out
}

func TestCheckCmd(t *testing.T) {
	path := setup(t, zooManifest)
	cmd, out := newCmd()
	require.NoError(t, runCheck(cmd, []string{path}))
	assert.Equal(t, "consistent\n", out.String())

	path = setup(t, zooManifest+contradiction)
	cmd, out = newCmd()
	err := runCheck(cmd, []string{path})
	assert.ErrorIs(t, err, errInconsistent)
	assert.Equal(t, "inconsistent\n", out.String())
}

func TestCheckCmdMissingManifest(t *testing.T) {
	setup(t, zooManifest)
	cmd, _ := newCmd()
	err := runCheck(cmd, []string{filepath.Join(t.TempDir(), "nope.yaml")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open manifest")
}

func TestClassifyCmd(t *testing.T) {
	path := setup(t, zooManifest)
	cmd, out := newCmd()
	require.NoError(t, runClassify(cmd, []string{path}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Contains(t, lines, "ex:Dog ⊑ ex:Mammal")
	assert.Contains(t, lines, "ex:Mammal ⊑ ex:Animal")
	assert.Contains(t, lines, "ex:Cat")
}

func TestSubsumesCmd(t *testing.T) {
	path := setup(t, zooManifest)

	cmd, out := newCmd()
	require.NoError(t, runSubsumes(cmd, []string{path, "ex:Dog", "ex:Animal"}))
	assert.Equal(t, "true\n", out.String())

	cmd, out = newCmd()
	require.NoError(t, runSubsumes(cmd, []string{path, "ex:Cat", "ex:Mammal"}))
	assert.Equal(t, "false\n", out.String())
}

func TestInstancesCmd(t *testing.T) {
	path := setup(t, zooManifest)

	cmd, out := newCmd()
	require.NoError(t, runInstances(cmd, []string{path, "ex:Animal"}))
	assert.Equal(t, "ex:rex\n", out.String())

	cmd, _ = newCmd()
	err := runInstances(cmd, []string{path, "ex:Unicorn"})
	assert.ErrorIs(t, err, errs.ErrUnknownEntityReference)
}

func TestQueryCmd(t *testing.T) {
	path := setup(t, zooManifest)
	t.Cleanup(func() {
		queryTriples, queryEntail, queryDistinct = nil, false, false
	})

	queryTriples = []string{"?x a ex:Animal", "?x ex:hasOwner ?o"}

	cmd, out := newCmd()
	require.NoError(t, runQuery(cmd, []string{path}))
	assert.Equal(t, []string{"?x  ?o"}, nonEmptyLines(out.String()), "told facts do not type rex as an Animal")

	queryEntail = true
	cmd, out = newCmd()
	require.NoError(t, runQuery(cmd, []string{path}))
	lines := nonEmptyLines(out.String())
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"ex:rex", "ex:alice"}, strings.Fields(lines[1]))

	queryTriples = []string{"?x a"}
	cmd, _ = newCmd()
	assert.ErrorIs(t, runQuery(cmd, []string{path}), errs.ErrInvalidQuery)
}

func TestWatchRechecksOnChange(t *testing.T) {
	path := setup(t, zooManifest)
	out := &syncBuffer{}

	w, err := newManifestWatcher(path, out, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return strings.Contains(out.String(), "] consistent") },
		5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(zooManifest+contradiction), 0o644))
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "] inconsistent") },
		5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimRight(l, " "); l != "" {
			out = append(out, l)
		}
	}
	return out
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
