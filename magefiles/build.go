//go:build mage

package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"

	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer/shader"
)

type Build mg.Namespace

var entryPoints = map[string]shader.ShaderType{
	"vs_main": shader.ShaderTypeVertex,
	"ps_main": shader.ShaderTypePixel,
	"cs_main": shader.ShaderTypeCompute,
}

// Compiles every entry point of every shader under the configured shader
// directory with dxc. Nothing is written; it fails on the first broken stage.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the engine binary into bin/.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	return goCmd([]string{"build", "-o", filepath.Join("bin", "aurora"), "."})
}

func buildShaders() error {
	cfg, err := core.LoadConfig(core.DefaultConfigPath)
	if err != nil {
		return err
	}
	compiler, err := shader.NewCompiler(shader.Options{
		RootDirectory: cfg.Shaders.Directory,
		Executable:    cfg.Shaders.Compiler,
		Debug:         cfg.Renderer.Debug,
	})
	if err != nil {
		return err
	}

	compiled := 0
	err = filepath.WalkDir(compiler.RootDirectory(), func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != ".hlsl" {
			return err
		}
		source, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(compiler.RootDirectory(), path)
		if err != nil {
			return err
		}
		for entry, typ := range entryPoints {
			if !strings.Contains(string(source), entry+"(") {
				continue
			}
			desc := shader.ShaderCreationDesc{Type: typ, Path: filepath.ToSlash(rel), EntryPoint: entry}
			if _, err := compiler.Compile(desc, false); err != nil {
				return err
			}
			compiled++
		}
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Printf("Compiled %d shader stages\n", compiled)
	return nil
}
