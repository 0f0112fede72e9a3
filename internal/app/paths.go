package app

import (
	"os"
	"path/filepath"
)

// Paths holds all resolved filesystem paths for the .pepvalid/ project
// directory. All fields are pre-computed strings so call sites never re-join.
type Paths struct {
	Root string // .pepvalid/
	DB   string // .pepvalid/pepvalid.db

	ReportDir   string // .pepvalid/report/
	TrainingDir string // .pepvalid/training/
}

// NewPaths constructs all resolved paths from a project root directory.
func NewPaths(projectRoot string) *Paths {
	root := filepath.Join(projectRoot, ".pepvalid")
	return &Paths{
		Root: root,
		DB:   filepath.Join(root, "pepvalid.db"),

		ReportDir:   filepath.Join(root, "report"),
		TrainingDir: filepath.Join(root, "training"),
	}
}

// EnsureDirs creates all subdirectories under .pepvalid/. Idempotent.
func (p *Paths) EnsureDirs() error {
	dirs := []string{
		p.Root,
		p.ReportDir,
		p.TrainingDir,
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return err
		}
	}
	return nil
}
