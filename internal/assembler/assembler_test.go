package assembler

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/config"
)

func TestResolvePathPrefersConfigured(t *testing.T) {
	assert.Equal(t, "/opt/bin/netconvert", resolvePath("/opt/bin/netconvert"))
}

func TestResolvePathFallsBackToEnvVar(t *testing.T) {
	t.Setenv(pathEnvVar, "/usr/local/bin/netconvert")
	assert.Equal(t, "/usr/local/bin/netconvert", resolvePath(""))
}

func TestResolvePathDefaultsToBareName(t *testing.T) {
	os.Unsetenv(pathEnvVar)
	assert.Equal(t, "netconvert", resolvePath(""))
}

// TestRunSucceedsWithZeroExit exercises the happy path against /bin/true,
// a stand-in assembler binary that always exits 0 and ignores its args.
func TestRunSucceedsWithZeroExit(t *testing.T) {
	if _, err := os.Stat("/bin/true"); err != nil {
		t.Skip("/bin/true not available on this system")
	}
	err := Run(t.TempDir()+"/prefix", config.AssemblerConfig{Path: "/bin/true"})
	assert.NoError(t, err)
}

// TestRunReturnsBackendFailureOnNonZeroExit exercises the failure path
// against /bin/false, which always exits 1.
func TestRunReturnsBackendFailureOnNonZeroExit(t *testing.T) {
	if _, err := os.Stat("/bin/false"); err != nil {
		t.Skip("/bin/false not available on this system")
	}
	err := Run(t.TempDir()+"/prefix", config.AssemblerConfig{Path: "/bin/false"})
	assert.Error(t, err)
}
