package toolchain

import (
	"strings"

	"github.com/trace2pass/core/internal/model"
)

// buildCompileArgs constructs the command-line arguments for a plain
// compile per §6's invocation contract:
// "<compiler> <opt-level> <flags…> <source> -o <out>". Used whenever
// recipe.Passes is unset (everything except C5 probes). -x c pins the
// front end to C regardless of compiler family or scratch-file
// extension, the same way the pipeline-print probe does for gcc.
func buildCompileArgs(recipe model.Recipe, sourcePath, outPath string) []string {
	args := []string{recipe.OptLevel}
	args = append(args, recipe.Flags...)
	args = append(args, "-x", "c", sourcePath, "-o", outPath)
	return args
}

// buildEmitIRArgs constructs the arguments to lower sourcePath to
// unoptimized LLVM IR text, the first stage of C5's pass-specific
// pipeline ("produce IR → apply an ordered pass list via the pass
// driver → emit object → link", §6).
func buildEmitIRArgs(sourcePath, irPath string) []string {
	return []string{
		"-x", "c",
		"-S", "-emit-llvm", "-O0",
		"-Xclang", "-disable-O0-optnone",
		sourcePath, "-o", irPath,
	}
}

// buildOptArgs constructs the `opt` invocation applying an explicit,
// ordered pass subsequence to IR produced by buildEmitIRArgs.
func buildOptArgs(passes []string, irPath, optimizedIRPath string) []string {
	return []string{
		"-passes=" + strings.Join(passes, ","),
		"-S", irPath, "-o", optimizedIRPath,
	}
}

// buildCodegenArgs constructs the final clang invocation that takes
// already-optimized IR and emits a linked executable.
func buildCodegenArgs(recipe model.Recipe, optimizedIRPath, outPath string) []string {
	args := append([]string(nil), recipe.Flags...)
	args = append(args, optimizedIRPath, "-o", outPath)
	return args
}

