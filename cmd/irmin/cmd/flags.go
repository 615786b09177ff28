// Copyright © 2018 One Concern

package cmd

import (
	"github.com/oneconcern/irmin/pkg/model"
	"github.com/spf13/cobra"
)

type flagsT struct {
	root struct {
		backend  string
		repoRoot string
		hash     string
		contents string
		logLevel string
		cpuProf  string
		memProf  string
		metrics  bool
	}
	store struct {
		branch string
	}
	commit struct {
		author     string
		message    string
		file       string
		executable bool
	}
	list struct {
		long bool
	}
	history struct {
		depth int
	}
	merge struct {
		resolver string
	}
	remote struct {
		depth int
		set   bool
	}
	serve struct {
		addr        string
		listenLimit int
	}
	output struct {
		format string
	}
}

var irminFlags = flagsT{}

func addRootFlags(cmd *cobra.Command) {
	fls := cmd.PersistentFlags()
	fls.StringVar(&irminFlags.root.backend, "backend", "", "The storage backend of the repository: memory, fs, badger, pebble, gcs or s3")
	fls.StringVar(&irminFlags.root.repoRoot, "root", "", "The root directory of the repository, for local backends")
	fls.StringVar(&irminFlags.root.hash, "hash", "", "The hash function of a new repository: blake2b or blake3")
	fls.StringVar(&irminFlags.root.contents, "contents", "", "The type of contents: string, bytes, json (objects) or json-value")
	fls.StringVar(&irminFlags.root.logLevel, "loglevel", "", "The logging level: debug, info, warn, error or none")
	fls.StringVar(&irminFlags.root.cpuProf, "cpuprof", "", "Write a CPU profile of the command to this file")
	fls.StringVar(&irminFlags.root.memProf, "memprof", "", "Write heap and allocation profiles after the command, with this file prefix")
	fls.BoolVar(&irminFlags.root.metrics, "metrics", false, "Collect usage metrics")
}

func addBranchFlag(cmd *cobra.Command) string {
	branch := "branch"
	cmd.PersistentFlags().StringVarP(&irminFlags.store.branch, branch, "b", model.DefaultBranch, "The branch to operate on")
	return branch
}

func addAuthorFlag(cmd *cobra.Command) string {
	author := "author"
	cmd.Flags().StringVar(&irminFlags.commit.author, author, "", "The author of the commit. Defaults to the configured author")
	return author
}

func addMessageFlag(cmd *cobra.Command) string {
	message := "message"
	cmd.Flags().StringVarP(&irminFlags.commit.message, message, "m", "", "The message describing the commit")
	return message
}

func addFileFlag(cmd *cobra.Command) string {
	file := "file"
	cmd.Flags().StringVar(&irminFlags.commit.file, file, "", "Read the contents from this file")
	return file
}

func addExecutableFlag(cmd *cobra.Command) string {
	executable := "executable"
	cmd.Flags().BoolVar(&irminFlags.commit.executable, executable, false, "Tag the contents as executable")
	return executable
}

func addLongFlag(cmd *cobra.Command) string {
	long := "long"
	cmd.Flags().BoolVarP(&irminFlags.list.long, long, "l", false, "Display the kind and hash of entries")
	return long
}

func addDepthFlag(cmd *cobra.Command, usage string) string {
	depth := "depth"
	cmd.Flags().IntVar(&irminFlags.history.depth, depth, 0, usage)
	return depth
}

func addRemoteDepthFlag(cmd *cobra.Command) string {
	depth := "depth"
	cmd.Flags().IntVar(&irminFlags.remote.depth, depth, 0, "Transfer the history up to this number of hops from the head. Zero transfers the whole history")
	return depth
}

func addResolverFlag(cmd *cobra.Command) string {
	resolver := "resolver"
	cmd.Flags().StringVar(&irminFlags.merge.resolver, resolver, "", "Resolve conflicts by keeping ours, theirs, or by merging json objects (json) or values (json-value). Defaults to the resolver of the contents type")
	return resolver
}

func addPullSetFlag(cmd *cobra.Command) string {
	set := "set"
	cmd.Flags().BoolVar(&irminFlags.remote.set, set, false, "Replace the head of the branch by the remote head instead of merging it")
	return set
}

func addAddrFlag(cmd *cobra.Command) string {
	addr := "addr"
	cmd.Flags().StringVar(&irminFlags.serve.addr, addr, "", "The address to listen on. Defaults to the configured address")
	return addr
}

func addListenLimitFlag(cmd *cobra.Command) string {
	limit := "listen-limit"
	cmd.Flags().IntVar(&irminFlags.serve.listenLimit, limit, 0, "Limit the number of connections served at once. Defaults to the configured limit")
	return limit
}

func addFormatFlag(cmd *cobra.Command) string {
	format := "format"
	cmd.Flags().StringVar(&irminFlags.output.format, format, formatText, "The output format: text, json or yaml")
	return format
}
