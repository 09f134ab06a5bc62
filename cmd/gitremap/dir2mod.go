package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/spf13/cobra"

	"github.com/fardream/gitremap"
)

type dir2modCmd struct {
	*cobra.Command

	configPath string
	cfg        JobConfig
}

func newDir2ModCmd() *dir2modCmd {
	c := &dir2modCmd{
		Command: &cobra.Command{
			Use:   "dir2mod",
			Short: "replace a subfolder with a submodule across the whole history",
			Args:  cobra.NoArgs,
		},
	}

	c.Flags().StringVarP(&c.configPath, "config", "c", c.configPath, "yaml job config, overridden by the flags below")
	c.MarkFlagFilename("config")

	c.Flags().StringVar(&c.cfg.Repo, "repo", ".", "path of the repository to rewrite")
	c.Flags().StringSliceVar(&c.cfg.Refs, "ref", nil, "revisions to rewrite, HEAD if none given")
	c.Flags().StringSliceVar(&c.cfg.StopCommits, "stop-commit", nil, "commits at which the history walk stops")
	c.Flags().StringVar(&c.cfg.Folder, "folder", c.cfg.Folder, "subfolder to replace")
	c.Flags().StringVar(&c.cfg.URL, "url", c.cfg.URL, "url of the submodule")
	c.Flags().StringVar(&c.cfg.Name, "name", c.cfg.Name, "name of the submodule, defaults to the folder")
	c.Flags().StringVar(&c.cfg.Treemap, "treemap", c.cfg.Treemap, "directory mapping folder tree hashes to submodule commits")
	c.Flags().StringVar(&c.cfg.RootMap, "rootmap", c.cfg.RootMap, "path of the root map database")
	c.Flags().IntVar(&c.cfg.Workers, "workers", 0, "tree rewrite workers, 0 for the default")
	c.Flags().BoolVar(&c.cfg.Resume, "resume", false, "skip roots already present in the root map")
	c.Flags().BoolVar(&c.cfg.UpdateRefs, "update-refs", false, "move the refs onto the rewritten commits")

	c.RunE = c.run

	return c
}

func (c *dir2modCmd) loadConfig() (*JobConfig, error) {
	cfg := c.cfg

	if c.configPath != "" {
		file, err := os.ReadFile(c.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", c.configPath, err)
		}
		base, err := ParseJobYAML(file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", c.configPath, err)
		}

		// flags explicitly set on the command line win over the file.
		if !c.Flags().Changed("repo") && base.Repo != "" {
			cfg.Repo = base.Repo
		}
		if !c.Flags().Changed("ref") {
			cfg.Refs = base.Refs
		}
		if !c.Flags().Changed("stop-commit") {
			cfg.StopCommits = base.StopCommits
		}
		if !c.Flags().Changed("folder") {
			cfg.Folder = base.Folder
		}
		if !c.Flags().Changed("url") {
			cfg.URL = base.URL
		}
		if !c.Flags().Changed("name") {
			cfg.Name = base.Name
		}
		if !c.Flags().Changed("treemap") {
			cfg.Treemap = base.Treemap
		}
		if !c.Flags().Changed("rootmap") {
			cfg.RootMap = base.RootMap
		}
		if !c.Flags().Changed("workers") {
			cfg.Workers = base.Workers
		}
		if !c.Flags().Changed("resume") {
			cfg.Resume = base.Resume
		}
		if !c.Flags().Changed("update-refs") {
			cfg.UpdateRefs = base.UpdateRefs
		}
	}

	if len(cfg.Refs) == 0 {
		cfg.Refs = []string{"HEAD"}
	}
	if cfg.Folder == "" {
		return nil, errors.New("folder is required")
	}
	if cfg.URL == "" {
		return nil, errors.New("url is required")
	}
	if cfg.Treemap == "" {
		return nil, errors.New("treemap is required")
	}
	if cfg.RootMap == "" {
		return nil, errors.New("rootmap is required")
	}

	return &cfg, nil
}

func (c *dir2modCmd) run(*cobra.Command, []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	r, err := git.PlainOpen(cfg.Repo)
	if err != nil {
		return fmt.Errorf("failed to open repo %s: %w", cfg.Repo, err)
	}

	stops, err := gitremap.NewHashSetFromStrings(cfg.StopCommits...)
	if err != nil {
		return fmt.Errorf("failed to parse stop commits: %w", err)
	}

	// one combined oldest-first path over all refs, each commit once.
	heads := make(map[string]plumbing.Hash, len(cfg.Refs))
	var history []*object.Commit
	seen := gitremap.NewHashSet()

	for _, ref := range cfg.Refs {
		h, err := r.ResolveRevision(plumbing.Revision(ref))
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", ref, err)
		}
		head, err := r.CommitObject(*h)
		if err != nil {
			return fmt.Errorf("failed to read commit %s: %w", h.String(), err)
		}
		heads[ref] = head.Hash

		path, err := gitremap.GetDFSPath(ctx, head, stops)
		if err != nil {
			return fmt.Errorf("failed to walk history of %s: %w", ref, err)
		}
		for _, commit := range path {
			if _, in := seen[commit.Hash]; in {
				continue
			}
			seen[commit.Hash] = struct{}{}
			history = append(history, commit)
		}
	}

	rootmap, err := gitremap.OpenBoltRootMap(cfg.RootMap)
	if err != nil {
		return err
	}
	defer rootmap.Close()

	store, err := gitremap.NewGitStore(r.Storer)
	if err != nil {
		return err
	}

	policy, err := gitremap.NewDir2Mod(cfg.Folder, cfg.URL, cfg.Name, gitremap.NewDirSubmoduleMap(cfg.Treemap))
	if err != nil {
		return err
	}

	engine, err := gitremap.NewEngine(store, policy.Policy(), rootmap)
	if err != nil {
		return err
	}

	if _, err := gitremap.RewriteRoots(ctx, gitremap.DistinctTreeRoots(history), engine, &gitremap.RewriteRootsOptions{
		Workers: cfg.Workers,
		Resume:  cfg.Resume,
	}); err != nil {
		return err
	}

	_, oldtonew, err := gitremap.RewriteDFSPath(ctx, history, r.Storer, rootmap)
	if err != nil {
		return err
	}

	for _, ref := range cfg.Refs {
		newhead, found := oldtonew[heads[ref]]
		if !found {
			return fmt.Errorf("no rewritten commit for %s (%s)", ref, heads[ref].String())
		}

		fmt.Printf("%s: %s -> %s\n", ref, heads[ref].String(), newhead.String())

		if cfg.UpdateRefs {
			if err := r.Storer.SetReference(plumbing.NewHashReference(plumbing.ReferenceName(ref), newhead)); err != nil {
				return fmt.Errorf("failed to update %s: %w", ref, err)
			}
		}
	}

	return nil
}
