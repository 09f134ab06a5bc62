package main

import "github.com/goccy/go-yaml"

// JobConfig describes one rewrite job. All fields can also be set through
// flags; flags win over the config file.
type JobConfig struct {
	// Repo is the path of the repository to rewrite.
	Repo string `yaml:"repo"`
	// Refs are the revisions whose histories get rewritten. Defaults to
	// HEAD.
	Refs []string `yaml:"refs"`
	// StopCommits optionally limits the history: the walk stops at these
	// commits, which become roots of the rewritten history.
	StopCommits []string `yaml:"stop-commits"`

	// Folder is the slash separated path of the subtree to replace with a
	// submodule.
	Folder string `yaml:"folder"`
	// URL of the submodule.
	URL string `yaml:"url"`
	// Name of the submodule, defaulting to Folder.
	Name string `yaml:"name"`
	// Treemap is the directory mapping folder tree hashes to submodule
	// commit hashes, one file per tree hash.
	Treemap string `yaml:"treemap"`

	// RootMap is the path of the bbolt database persisting the old-root
	// to new-root mapping.
	RootMap string `yaml:"rootmap"`
	// Workers bounds the tree rewrite pool, 0 for the default.
	Workers int `yaml:"workers"`
	// Resume skips roots already present in the root map instead of
	// refusing to start on a non-empty one.
	Resume bool `yaml:"resume"`
	// UpdateRefs moves the input refs onto the rewritten commits.
	UpdateRefs bool `yaml:"update-refs"`
}

func ParseJobYAML(file []byte) (*JobConfig, error) {
	result := &JobConfig{}

	if err := yaml.Unmarshal(file, result); err != nil {
		return nil, err
	}

	return result, nil
}
