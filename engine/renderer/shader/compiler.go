package shader

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/magefile/mage/sh"

	"github.com/spaghettifunk/aurora/engine/core"
)

var ErrCompileFailed = errors.New("shader compilation failed")

type ShaderType uint8

const (
	ShaderTypeVertex ShaderType = iota
	ShaderTypePixel
	ShaderTypeCompute
)

func (t ShaderType) String() string {
	switch t {
	case ShaderTypeVertex:
		return "Vertex"
	case ShaderTypePixel:
		return "Pixel"
	case ShaderTypeCompute:
		return "Compute"
	}
	return "Unknown"
}

// Profile is the shader model 6.6 target of the stage.
func (t ShaderType) Profile() string {
	switch t {
	case ShaderTypeVertex:
		return "vs_6_6"
	case ShaderTypePixel:
		return "ps_6_6"
	case ShaderTypeCompute:
		return "cs_6_6"
	}
	return ""
}

// ShaderCreationDesc names one stage. Path is relative to the shader root.
type ShaderCreationDesc struct {
	Type       ShaderType
	Path       string
	EntryPoint string
}

type Blob struct {
	Type       ShaderType
	Code       []byte
	EntryPoint string
}

// Runner executes the external compiler. It writes stdout/stderr of the
// process into the given writers.
type Runner func(stdout, stderr *bytes.Buffer, cmd string, args ...string) error

// ExecRunner runs the compiler as a child process.
func ExecRunner(stdout, stderr *bytes.Buffer, cmd string, args ...string) error {
	ran, err := sh.Exec(nil, stdout, stderr, cmd, args...)
	if !ran && err != nil {
		return fmt.Errorf("could not run %s: %w", cmd, err)
	}
	return err
}

type Options struct {
	RootDirectory string
	Executable    string
	Debug         bool
	Runner        Runner
}

type cacheKey struct {
	path  string
	entry string
	typ   ShaderType
}

type cacheEntry struct {
	modTime time.Time
	blob    Blob
}

// Compiler drives dxc to produce SPIR-V for every stage. Results are cached
// until the source file changes on disk.
type Compiler struct {
	root       string
	executable string
	debug      bool
	run        Runner

	mu    sync.Mutex
	cache map[cacheKey]cacheEntry
}

func NewCompiler(opts Options) (*Compiler, error) {
	if opts.Executable == "" {
		opts.Executable = "dxc"
	}
	if opts.Runner == nil {
		opts.Runner = ExecRunner
	}
	root, err := filepath.Abs(opts.RootDirectory)
	if err != nil {
		return nil, fmt.Errorf("shader root %q: %w", opts.RootDirectory, err)
	}
	core.LogInfo("Created shader compiler %s for %s", opts.Executable, root)
	return &Compiler{
		root:       root,
		executable: opts.Executable,
		debug:      opts.Debug,
		run:        opts.Runner,
		cache:      make(map[cacheKey]cacheEntry),
	}, nil
}

func (c *Compiler) RootDirectory() string {
	return c.root
}

// FullPath resolves a shader path against the root directory.
func (c *Compiler) FullPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.root, path)
}

// Arguments returns the dxc command line for a stage writing to output.
func (c *Compiler) Arguments(desc ShaderCreationDesc, output string) []string {
	args := []string{
		"-E", desc.EntryPoint,
		"-T", desc.Type.Profile(),
		"-spirv",
		"-fspv-target-env=vulkan1.2",
		"-HV", "2021",
		"-Zpr",
		"-WX",
		"-all_resources_bound",
		"-I", c.root,
	}
	if c.debug {
		args = append(args, "-Zi", "-Qembed_debug", "-Od")
	} else {
		args = append(args, "-O3", "-Qstrip_debug", "-Qstrip_reflect")
	}
	return append(args, "-Fo", output, c.FullPath(desc.Path))
}

// Compile builds one stage. With ignoreErrors set a failure is logged as a
// warning rather than an error; it is returned in both cases.
func (c *Compiler) Compile(desc ShaderCreationDesc, ignoreErrors bool) (Blob, error) {
	full := c.FullPath(desc.Path)
	info, err := os.Stat(full)
	if err != nil {
		return Blob{}, c.fail(desc, ignoreErrors, err)
	}

	key := cacheKey{path: full, entry: desc.EntryPoint, typ: desc.Type}
	c.mu.Lock()
	cached, ok := c.cache[key]
	c.mu.Unlock()
	if ok && cached.modTime.Equal(info.ModTime()) {
		return cached.blob, nil
	}

	out, err := os.CreateTemp("", "aurora-*.spv")
	if err != nil {
		return Blob{}, c.fail(desc, ignoreErrors, err)
	}
	output := out.Name()
	out.Close()
	defer os.Remove(output)

	var stdout, stderr bytes.Buffer
	if err := c.run(&stdout, &stderr, c.executable, c.Arguments(desc, output)...); err != nil {
		if stderr.Len() > 0 {
			err = fmt.Errorf("%w: %s", err, bytes.TrimSpace(stderr.Bytes()))
		}
		return Blob{}, c.fail(desc, ignoreErrors, err)
	}

	code, err := os.ReadFile(output)
	if err != nil {
		return Blob{}, c.fail(desc, ignoreErrors, err)
	}
	if len(code) == 0 {
		return Blob{}, c.fail(desc, ignoreErrors, errors.New("empty output"))
	}

	blob := Blob{Type: desc.Type, Code: code, EntryPoint: desc.EntryPoint}
	c.mu.Lock()
	c.cache[key] = cacheEntry{modTime: info.ModTime(), blob: blob}
	c.mu.Unlock()

	core.LogInfo("Compiled %s shader %s (%s)", desc.Type, desc.Path, desc.EntryPoint)
	return blob, nil
}

// Invalidate drops every cached stage compiled from path.
func (c *Compiler) Invalidate(path string) {
	full := c.FullPath(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.cache {
		if k.path == full {
			delete(c.cache, k)
		}
	}
}

// Reset drops the whole cache. An edited include can change any stage.
func (c *Compiler) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.cache)
}

func (c *Compiler) fail(desc ShaderCreationDesc, ignoreErrors bool, err error) error {
	err = fmt.Errorf("%s shader %s (%s): %w: %v", desc.Type, desc.Path, desc.EntryPoint, ErrCompileFailed, err)
	if ignoreErrors {
		core.LogWarn("%v", err)
	} else {
		core.LogError("%v", err)
	}
	return err
}
