package toolchain

import (
	"context"
	"fmt"
	"strings"

	"github.com/trace2pass/core/internal/model"
)

// PrintPipeline asks the resolved compiler to enumerate its -O2 pass
// pipeline and returns the ordered pass names, per §6's "Pipeline
// print" contract. A missing or unparseable listing is a hard error —
// callers (C5 only) must treat this as fatal for the bisection, not as
// an indeterminate probe.
func (d *Driver) PrintPipeline(ctx context.Context, recipe model.Recipe) ([]string, error) {
	path, ok := d.resolver.Resolve(recipe.Family, recipe.Version)
	if !ok {
		return nil, fmt.Errorf("toolchain: no binary resolved for %s %s", recipe.Family, recipe.Version)
	}

	var args []string
	switch recipe.Family {
	case model.FamilyClang:
		// `opt` (LLVM's standalone pass-pipeline tool) prints the
		// concrete pass sequence for a given pipeline description
		// without requiring an input module.
		path = optBinaryFor(path)
		args = []string{"-passes=default<O2>", "-print-pipeline-passes", "-disable-output", "-x", "ir", "/dev/null"}
	case model.FamilyGCC:
		args = []string{"-O2", "-fdump-passes", "-c", "-x", "c", "/dev/null", "-o", "/dev/null"}
	default:
		return nil, fmt.Errorf("toolchain: unknown compiler family %q", recipe.Family)
	}

	res, err := runProcess(ctx, d.tracker, "pipeline-print", path, args, SanitizeEnv(), "", d.log)
	if err != nil {
		return nil, fmt.Errorf("toolchain: pipeline print failed: %w", err)
	}

	passes := ParsePipeline(recipe.Family, res.Stdout+res.Stderr)
	if len(passes) == 0 {
		return nil, fmt.Errorf("toolchain: could not parse pass pipeline listing for %s %s", recipe.Family, recipe.Version)
	}
	return passes, nil
}

// ParsePipeline extracts the ordered list of pass names from a raw
// pipeline-print listing. clang's `-print-pipeline-passes` emits a
// single comma-separated line; gcc's `-fdump-passes` emits one pass per
// line prefixed with a pass number. Both are handled here so C5 does
// not need to know which family produced the listing.
func ParsePipeline(family model.CompilerFamily, raw string) []string {
	switch family {
	case model.FamilyClang:
		return parseClangPipeline(raw)
	case model.FamilyGCC:
		return parseGCCPipeline(raw)
	default:
		return nil
	}
}

func parseClangPipeline(raw string) []string {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(line, ",") && !strings.Contains(line, "Pass") {
			continue
		}
		if strings.Contains(line, ",") {
			var out []string
			for _, p := range strings.Split(line, ",") {
				p = strings.TrimSpace(p)
				if p != "" {
					out = append(out, p)
				}
			}
			if len(out) > 1 {
				return out
			}
		}
	}
	return nil
}

func parseGCCPipeline(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// gcc -fdump-passes lines look like: "  1  *free_lang_data ..."
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name := strings.TrimPrefix(fields[1], "*")
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}
