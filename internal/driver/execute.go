package driver

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"golang.org/x/xerrors"

	"github.com/kilnforge/kiln/internal/envscope"
	"github.com/kilnforge/kiln/internal/task"
)

// installSubdirs are created under the install path before a build runs
// (§4.5 step 2).
var installSubdirs = []string{"lib", "bin", "sbin", "man", "doc", "share", "stublibs", "etc"}

// runOne executes t's build if needed, returning cached=true when the
// result was reused without doing any work (§4.5 "Persisted-build
// short-circuit" and "Change detection for non-persisted builds").
func (d *Driver) runOne(ctx context.Context, t *task.Task, forced bool) (cached bool, err error) {
	spec := t.Spec
	persisted := spec.ShouldBePersisted
	buildPath := d.cfg.Build(spec, persisted)
	installPath := d.cfg.Install(spec, persisted)
	finalInstallPath := d.cfg.FinalInstall(spec, persisted)
	rootPath := d.cfg.Root(spec, spec.SourcePath, persisted)

	unlock, err := acquireBuildLock(buildPath)
	if err != nil {
		return false, xerrors.Errorf("locking build directory: %w", err)
	}
	defer unlock()

	if persisted && !forced {
		if _, err := os.Stat(finalInstallPath); err == nil {
			return true, nil
		}
	}

	var storedSum string
	var sourceSum string
	if !persisted {
		sourceSum, err = sourceChecksum(d.cfg.Source(spec.SourcePath))
		if err != nil {
			return false, xerrors.Errorf("computing source checksum: %w", err)
		}
		var haveStored bool
		storedSum, haveStored = readStoredChecksum(buildPath)
		if !forced && haveStored && storedSum == sourceSum {
			if _, err := os.Stat(finalInstallPath); err == nil {
				return true, nil
			}
		}
	}

	// 1. Remove residue.
	for _, p := range []string{finalInstallPath, installPath, buildPath} {
		if err := os.RemoveAll(p); err != nil {
			return false, xerrors.Errorf("removing residue at %s: %w", p, err)
		}
	}

	// 2. Create _esy under build and the install sub-directories.
	if err := os.MkdirAll(filepath.Join(buildPath, "_esy"), 0o755); err != nil {
		return false, err
	}
	for _, sub := range installSubdirs {
		if err := os.MkdirAll(filepath.Join(installPath, sub), 0o755); err != nil {
			return false, err
		}
	}

	// 3. If mutates_source_path, copy source into the build scratch dir.
	if spec.MutatesSourcePath {
		if err := copyTree(d.cfg.Source(spec.SourcePath), buildPath, ignoredDirs); err != nil {
			return false, xerrors.Errorf("copying source to build path: %w", err)
		}
	}

	// 4. Write _esy/env.
	if err := writeEnvFile(buildPath, t.Env); err != nil {
		return false, err
	}

	// 5. Write _esy/findlib.conf, currently-building variant.
	if err := d.writeFindlibConf(buildPath, installPath, t); err != nil {
		return false, err
	}

	// 6. Write a sandbox profile where supported.
	if err := writeSandboxProfile(buildPath, buildPath, installPath); err != nil {
		return false, err
	}

	// 7. Run each command.
	logPath := filepath.Join(buildPath, "_esy", "log")
	if d.LogTail > 0 {
		tail := newTailBuffer(d.LogTail)
		for _, cmd := range t.Command {
			if err := runCommand(ctx, cmd, rootPath, t.Env, buildPath, tail); err != nil {
				if werr := os.WriteFile(logPath, tail.Bytes(), 0o644); werr != nil {
					return false, werr
				}
				return false, xerrors.Errorf("command %q: %w (see %s)", cmd.Raw, err, logPath)
			}
		}
	} else {
		logFile, err := os.Create(logPath)
		if err != nil {
			return false, err
		}
		defer logFile.Close()
		for _, cmd := range t.Command {
			if err := runCommand(ctx, cmd, rootPath, t.Env, buildPath, logFile); err != nil {
				return false, xerrors.Errorf("command %q: %w (see %s)", cmd.Raw, err, logPath)
			}
		}
	}

	// 8. Post-install path rewriting.
	if err := rewritePaths(installPath, installPath, finalInstallPath); err != nil {
		return false, xerrors.Errorf("rewriting install paths: %w", err)
	}

	// 9. Re-write findlib.conf, finalized variant.
	if err := d.writeFindlibConfFinal(buildPath, finalInstallPath, t); err != nil {
		return false, err
	}

	// 10. Atomic rename install → final_install. Both paths live under the
	// same store root, so a plain rename is already atomic; renameio's
	// file-replacement guarantee (used for the config writes above) does
	// not apply to directories.
	if err := os.Rename(installPath, finalInstallPath); err != nil {
		return false, xerrors.Errorf("finalizing install: %w", err)
	}

	if !persisted {
		if err := writeStoredChecksum(buildPath, sourceSum); err != nil {
			return false, err
		}
	}

	return false, nil
}

func runCommand(ctx context.Context, cmd task.Command, dir string, env *envscope.Scope, buildPath string, log io.Writer) error {
	rendered := wrapSandboxed(cmd.Rendered, buildPath)
	c := exec.CommandContext(ctx, "/bin/sh", "-c", rendered)
	c.Dir = dir
	c.Env = renderEnviron(env)
	c.Stdout = log
	c.Stderr = log
	return c.Run()
}

func renderEnviron(env *envscope.Scope) []string {
	var out []string
	for _, name := range env.Names() {
		e, _ := env.Get(name)
		out = append(out, name+"="+e.Value)
	}
	return out
}
