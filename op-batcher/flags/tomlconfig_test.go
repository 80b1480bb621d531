package flags

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func newTestContext(t *testing.T, set *flag.FlagSet) *cli.Context {
	if set == nil {
		set = flag.NewFlagSet("test", flag.ContinueOnError)
	}
	app := cli.NewApp()
	app.Flags = Flags
	return cli.NewContext(app, set, nil)
}

func TestApplyConfigFileFillsUnsetFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
l1_rpc_url = "http://file-l1"
l1_chain_id = 10
compression_algo = "brotli"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range Flags {
		require.NoError(t, f.Apply(set))
	}
	require.NoError(t, set.Parse([]string{"-config", path}))

	ctx := cli.NewContext(cli.NewApp(), set, nil)
	require.NoError(t, ApplyConfigFile(ctx))

	require.Equal(t, "http://file-l1", ctx.String(L1RPCURLFlag.Name))
	require.Equal(t, uint64(10), ctx.Uint64(L1ChainIDFlag.Name))
	require.Equal(t, "brotli", ctx.String(CompressionAlgoFlag.Name))
}

func TestApplyConfigFileNeverOverridesExplicitFlag(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`l1_rpc_url = "http://file-l1"`), 0o644))

	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range Flags {
		require.NoError(t, f.Apply(set))
	}
	require.NoError(t, set.Parse([]string{"-config", path, "-l1-client-rpc-url", "http://cli-l1"}))

	ctx := cli.NewContext(cli.NewApp(), set, nil)
	require.NoError(t, ApplyConfigFile(ctx))

	require.Equal(t, "http://cli-l1", ctx.String(L1RPCURLFlag.Name))
}

func TestApplyConfigFileNoopWhenUnset(t *testing.T) {
	ctx := newTestContext(t, nil)
	require.NoError(t, ApplyConfigFile(ctx))
}
