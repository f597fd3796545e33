package safety

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpconform/fuzzer/pkg/fuzzer/jsonvalue"
)

func TestMatchDangerPatternCatchesShellInjection(t *testing.T) {
	reason, hit := MatchDangerPattern("do a rm -rf / on the disk")
	assert.True(t, hit)
	assert.Contains(t, reason, "rm -rf /")
}

func TestMatchDangerPatternCatchesLauncherBinary(t *testing.T) {
	_, hit := MatchDangerPattern("please run xdg-open on this file")
	assert.True(t, hit)
}

func TestMatchDangerPatternAllowsOrdinaryText(t *testing.T) {
	_, hit := MatchDangerPattern("list the files in the current directory")
	assert.False(t, hit)
}

func TestMatchDangerPatternCatchesDeniedURIScheme(t *testing.T) {
	_, hit := MatchDangerPattern("javascript:alert(1)")
	assert.True(t, hit)
}

func TestFilterCheckIsPure(t *testing.T) {
	f := NewFilter(nil, nil)
	args := jsonvalue.Object(map[string]jsonvalue.Value{"cmd": jsonvalue.String("rm -rf /")})

	d1 := f.Check("tools/call", args)
	d2 := f.Check("tools/call", args)
	assert.Equal(t, d1.Kind, d2.Kind)
	assert.Equal(t, d1.Reason, d2.Reason)
}

func TestFilterBlocksDangerousCommand(t *testing.T) {
	f := NewFilter(nil, nil)
	args := jsonvalue.Object(map[string]jsonvalue.Value{"cmd": jsonvalue.String("rm -rf /")})

	d := f.Check("tools/call", args)
	require.Equal(t, Blocked, d.Kind)
	assert.Contains(t, d.Reason, "command pattern")
}

func TestFilterSanitizesWhenPreferred(t *testing.T) {
	f := NewFilter(nil, nil)
	f.PreferSanitize = true
	args := jsonvalue.Object(map[string]jsonvalue.Value{"cmd": jsonvalue.String("run rm -rf / now")})

	d := f.Check("tools/call", args)
	require.Equal(t, Sanitized, d.Kind)
	v, _ := d.Args.Get("cmd")
	assert.NotContains(t, v.String(), "rm -rf /")
}

func TestFilterAllowsBenignArgs(t *testing.T) {
	f := NewFilter(nil, nil)
	args := jsonvalue.Object(map[string]jsonvalue.Value{"query": jsonvalue.String("hello world")})

	d := f.Check("tools/call", args)
	assert.Equal(t, Allow, d.Kind)
}

func TestFilterBlocksDeniedMethod(t *testing.T) {
	f := NewFilter(nil, nil)
	f.MethodDenyList["dangerous/method"] = true

	d := f.Check("dangerous/method", jsonvalue.Object(nil))
	assert.Equal(t, Blocked, d.Kind)
}

func TestFilterBlocksPathEscapingSandbox(t *testing.T) {
	root := t.TempDir()
	sb := NewSandbox(root, true)
	f := NewFilter(sb, nil)

	args := jsonvalue.Object(map[string]jsonvalue.Value{"path": jsonvalue.String("../../etc/passwd")})
	d := f.Check("tools/call", args)
	assert.Equal(t, Blocked, d.Kind)
}

func TestFilterAllowsPathWithinSandbox(t *testing.T) {
	root := t.TempDir()
	sb := NewSandbox(root, true)
	f := NewFilter(sb, nil)

	args := jsonvalue.Object(map[string]jsonvalue.Value{"path": jsonvalue.String("./notes.txt")})
	d := f.Check("tools/call", args)
	assert.Equal(t, Allow, d.Kind)
}

func TestSandboxCanonicalizeNeverEscapesRoot(t *testing.T) {
	root := t.TempDir()
	sb := NewSandbox(root, true)

	_, err := sb.Canonicalize("../../../etc/shadow")
	assert.Error(t, err)

	abs, err := sb.Canonicalize("sub/dir/file.txt")
	require.NoError(t, err)
	assert.True(t, filepath.HasPrefix(abs, root) || abs == root)
}

func TestNetworkPolicyDeniesOutsideAllowList(t *testing.T) {
	p := &NetworkPolicy{Allow: []string{"api.example.com"}}
	assert.True(t, p.Allowed("api.example.com"))
	assert.True(t, p.Allowed("sub.api.example.com"))
	assert.False(t, p.Allowed("evil.example.net"))
}

func TestNetworkPolicyNoNetworkAllowsOnlyLocalHosts(t *testing.T) {
	p := &NetworkPolicy{NoNetwork: true, LocalHosts: []string{"localhost"}}
	assert.True(t, p.Allowed("localhost"))
	assert.False(t, p.Allowed("example.com"))
}

func TestNetworkPolicyDenyListOverridesAllow(t *testing.T) {
	p := &NetworkPolicy{Allow: []string{"example.com"}, Deny: []string{"blocked.example.com"}}
	assert.False(t, p.Allowed("blocked.example.com"))
}

func TestFilterBlocksDeniedNetworkDestination(t *testing.T) {
	net := &NetworkPolicy{Allow: []string{"good.example.com"}}
	f := NewFilter(nil, net)

	args := jsonvalue.Object(map[string]jsonvalue.Value{"url": jsonvalue.String("https://evil.example.com/x")})
	d := f.Check("tools/call", args)
	assert.Equal(t, Blocked, d.Kind)
}

func TestCommandBlockerDisabledWithoutSafeMode(t *testing.T) {
	cb, err := NewCommandBlocker(false, nil)
	require.NoError(t, err)
	assert.Nil(t, cb)
}

func TestCommandBlockerInstallsAndTearsDownShims(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shim script format differs on windows; covered by shimScript branch instead")
	}
	cb, err := NewCommandBlocker(true, nil)
	require.NoError(t, err)
	require.NotNil(t, cb)
	defer cb.Teardown()

	shimPath := filepath.Join(cb.Dir(), "xdg-open")
	info, err := os.Stat(shimPath)
	require.NoError(t, err)
	assert.True(t, info.Mode()&0o111 != 0)

	require.NoError(t, cb.Teardown())
	_, err = os.Stat(cb.Dir())
	assert.True(t, os.IsNotExist(err))
}

func TestCommandBlockerChildEnvPrependsShimDirAndSetsSafeMode(t *testing.T) {
	cb, err := NewCommandBlocker(true, nil)
	require.NoError(t, err)
	require.NotNil(t, cb)
	defer cb.Teardown()

	env := cb.ChildEnv([]string{"PATH=/usr/bin:/bin", "HOME=/home/fuzzer"})

	var path string
	var sawHome, sawSafeMode bool
	for _, kv := range env {
		switch {
		case strings.HasPrefix(kv, "PATH="):
			path = strings.TrimPrefix(kv, "PATH=")
		case kv == "HOME=/home/fuzzer":
			sawHome = true
		case kv == "MCP_FUZZER_IN_SAFE_MODE=1":
			sawSafeMode = true
		}
	}

	assert.True(t, strings.HasPrefix(path, cb.Dir()+string(os.PathListSeparator)))
	assert.Contains(t, path, "/usr/bin:/bin")
	assert.True(t, sawHome)
	assert.True(t, sawSafeMode)
}

func TestCommandBlockerChildEnvFallsBackToProcessEnviron(t *testing.T) {
	cb, err := NewCommandBlocker(true, nil)
	require.NoError(t, err)
	require.NotNil(t, cb)
	defer cb.Teardown()

	env := cb.ChildEnv(nil)
	assert.Greater(t, len(env), 1)
	assert.Equal(t, "MCP_FUZZER_IN_SAFE_MODE=1", env[len(env)-1])
}
