package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/oneconcern/irmin/pkg/config"
	"github.com/oneconcern/irmin/pkg/core"
	"github.com/oneconcern/irmin/pkg/dlogger"
	"github.com/oneconcern/irmin/pkg/httpd"
	"github.com/oneconcern/irmin/pkg/model"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type exitMocks struct {
	fatalCalls []string
	exitCodes  []int
}

func setupCLI(t *testing.T) (*exitMocks, string) {
	mocks := &exitMocks{}
	prevFatalf, prevFatalln, prevExit := logFatalf, logFatalln, osExit
	logFatalf = func(format string, v ...interface{}) {
		mocks.fatalCalls = append(mocks.fatalCalls, fmt.Sprintf(format, v...))
	}
	logFatalln = func(v ...interface{}) {
		mocks.fatalCalls = append(mocks.fatalCalls, fmt.Sprintln(v...))
	}
	osExit = func(code int) {
		mocks.exitCodes = append(mocks.exitCodes, code)
	}
	color.NoColor = true
	t.Cleanup(func() {
		logFatalf, logFatalln, osExit = prevFatalf, prevFatalln, prevExit
	})
	return mocks, t.TempDir()
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func runCLI(t *testing.T, root string, args ...string) string {
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--backend", "fs", "--root", root, "--loglevel", "none"))
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestStoreCommands(t *testing.T) {
	mocks, root := setupCLI(t)

	out := runCLI(t, root, "set", "/docs/readme", "hello")
	assert.True(t, strings.HasPrefix(out, "main "))
	runCLI(t, root, "set", "/docs/license", "apache", "-m", "add license", "--author", "tester")
	runCLI(t, root, "set", "/bin/run", "#!/bin/sh", "--executable")

	assert.Equal(t, "hello", runCLI(t, root, "get", "/docs/readme"))
	assert.Equal(t, "/docs/license\n/docs/readme\n", runCLI(t, root, "ls", "/docs"))
	assert.Equal(t, "/bin/\n/docs/\n", runCLI(t, root, "ls"))

	long := runCLI(t, root, "ls", "/bin", "-l")
	assert.Contains(t, long, "contents")
	assert.Contains(t, long, "/bin/run")

	var entries []listEntry
	require.NoError(t, json.Unmarshal([]byte(runCLI(t, root, "ls", "/bin", "--format", "json")), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, model.Executable.String(), entries[0].Metadata)

	assert.Equal(t, "bin/\n  run\ndocs/\n  license\n  readme\n", runCLI(t, root, "tree"))
	assert.Equal(t, "license\nreadme\n", runCLI(t, root, "tree", "/docs"))

	var history []logEntry
	require.NoError(t, json.Unmarshal([]byte(runCLI(t, root, "log", "--format", "json")), &history))
	require.Len(t, history, 3)
	assert.Equal(t, "add license", history[1].Message)
	assert.Equal(t, "tester", history[1].Author)
	assert.Equal(t, "set /docs/readme", history[2].Message)

	require.NoError(t, json.Unmarshal([]byte(runCLI(t, root, "log", "--format", "json", "--depth", "1")), &history))
	assert.Len(t, history, 2)

	runCLI(t, root, "rm", "/docs/license")
	assert.Equal(t, "/docs/readme\n", runCLI(t, root, "ls", "/docs"))

	assert.Empty(t, runCLI(t, root, "get", "/docs/license"))
	assert.Equal(t, []int{int(unix.ENOENT)}, mocks.exitCodes)
	assert.Empty(t, mocks.fatalCalls)
}

func TestBranchCommands(t *testing.T) {
	mocks, root := setupCLI(t)

	runCLI(t, root, "set", "/shared", "base")
	var history []logEntry
	require.NoError(t, json.Unmarshal([]byte(runCLI(t, root, "log", "--format", "json")), &history))
	require.Len(t, history, 1)
	base := history[0].Hash

	runCLI(t, root, "branch", "set-head", base, "--branch", "feature")
	runCLI(t, root, "set", "/feature", "f", "-b", "feature")
	runCLI(t, root, "set", "/main", "m")

	var branches branchListResult
	require.NoError(t, json.Unmarshal([]byte(runCLI(t, root, "branch", "list", "--format", "json")), &branches))
	require.Len(t, branches.Branches, 2)
	assert.Equal(t, "feature", branches.Branches[0].Name)
	assert.Equal(t, "main", branches.Active)
	assert.Contains(t, runCLI(t, root, "branch", "list"), "* main")

	runCLI(t, root, "merge", "feature", "-m", "merge feature")
	assert.Equal(t, "f", runCLI(t, root, "get", "/feature"))
	require.NoError(t, json.Unmarshal([]byte(runCLI(t, root, "log", "--format", "json", "--depth", "0")), &history))
	assert.Equal(t, "merge feature", history[0].Message)
	assert.Len(t, history[0].Parents, 2)

	// conflicting changes
	runCLI(t, root, "set", "/shared", "ours")
	runCLI(t, root, "set", "/shared", "theirs", "-b", "feature")
	runCLI(t, root, "merge", "feature")
	assert.Equal(t, []int{1}, mocks.exitCodes)
	assert.Equal(t, "ours", runCLI(t, root, "get", "/shared"))

	runCLI(t, root, "merge", "feature", "--resolver", "theirs")
	assert.Equal(t, "theirs", runCLI(t, root, "get", "/shared"))

	runCLI(t, root, "branch", "rm", "feature")
	require.NoError(t, json.Unmarshal([]byte(runCLI(t, root, "branch", "list", "--format", "json")), &branches))
	assert.Len(t, branches.Branches, 1)
	assert.Empty(t, mocks.fatalCalls)

	runCLI(t, root, "branch", "set-head", "not-a-hash")
	assert.Len(t, mocks.fatalCalls, 1)
}

func TestRemoteCommands(t *testing.T) {
	mocks, root := setupCLI(t)
	ctx := context.Background()

	cfg := config.Default()
	cfg.LogLevel = dlogger.LogLevelNone
	served, err := core.Open(ctx, cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, served.Close()) }()
	srv, err := httpd.New(served)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	runCLI(t, root, "set", "/a", "v1")
	out := runCLI(t, root, "push", ts.URL+"/main")
	assert.Contains(t, out, ts.URL+"/main")

	main, err := served.Main(ctx)
	require.NoError(t, err)
	data, found, err := main.Find(ctx, model.ParsePath("/a"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v1", string(data))

	ok, err := main.Set(ctx, model.ParsePath("/b"), []byte("v2"), served.Info("server", "add b"))
	require.NoError(t, err)
	require.True(t, ok)
	head, _, err := main.Head(ctx)
	require.NoError(t, err)

	assert.Equal(t, ts.URL+"/main "+head.Hash().String()+"\n", runCLI(t, root, "fetch", ts.URL+"/main"))
	assert.Equal(t, "main "+head.Hash().String()+"\n", runCLI(t, root, "pull", ts.URL+"/main"))
	assert.Equal(t, "v2", runCLI(t, root, "get", "/b"))

	runCLI(t, root, "pull", ts.URL+"/main", "--set", "-b", "mirror")
	assert.Equal(t, "v2", runCLI(t, root, "get", "/b", "-b", "mirror"))
	assert.Empty(t, mocks.fatalCalls)

	runCLI(t, root, "push", "ftp://localhost/main")
	assert.Len(t, mocks.fatalCalls, 1)
}

func TestConfigAndVersion(t *testing.T) {
	mocks, root := setupCLI(t)

	out := runCLI(t, root, "config", "show")
	assert.Contains(t, out, "backend: fs")
	assert.Contains(t, out, "root: "+root)
	assert.Contains(t, out, "maxObjectSize: "+config.DefaultMaxObjectSize)

	out = runCLI(t, root, "config", "show", "--hash", "blake3", "--contents", "json")
	assert.Contains(t, out, "hash: blake3")
	assert.Contains(t, out, "contents: json")

	assert.Contains(t, runCLI(t, root, "version"), "Version: dev")
	assert.Empty(t, mocks.fatalCalls)

	resetFlags(rootCmd)
	rootCmd.SetArgs([]string{"config", "show", "--backend", "tape"})
	require.NoError(t, rootCmd.Execute())
	assert.Len(t, mocks.fatalCalls, 1)
}
