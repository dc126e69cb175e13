package pipeline

import "github.com/trace2pass/core/internal/model"

// knownLLVMPasses is the built-in table of LLVM pass names with a known
// `-mllvm -disable-<pass>` toggle, per the Open Questions decision in
// DESIGN.md: the pass-to-flag mapping is compiler-version-dependent and
// only a small common subset is covered.
var knownLLVMPasses = map[string]bool{
	"instcombine":  true,
	"gvn":          true,
	"licm":         true,
	"simplifycfg":  true,
	"sroa":         true,
	"reassociate":  true,
	"loop-unroll":  true,
	"loop-vectorize": true,
	"slp-vectorizer": true,
	"dse":          true,
	"early-cse":    true,
	"indvars":      true,
}

// knownGCCPasses is the subset of gcc's internal pass names that also
// exist as a `-fno-<pass>` command-line toggle.
var knownGCCPasses = map[string]bool{
	"tree-ccp":      true,
	"tree-dce":      true,
	"tree-fre":      true,
	"tree-pre":      true,
	"tree-sra":      true,
	"inline":        true,
	"ivopts":        true,
	"strict-aliasing": true,
}

// buildWorkaround synthesizes §4.6's workaround recommendation:
// prefer a pass-specific disable flag over downgrading the optimization
// level, and attach a caveat whenever the pass-specific form is not
// known to exist.
func buildWorkaround(family model.CompilerFamily, pb *model.PassBisectionResult, fallbackOptLevel string) model.Workaround {
	if pb == nil || pb.Disposition != model.DispositionBisected || pb.SuspectedPass == "" {
		return model.Workaround{
			FallbackOptLevel: fallbackOptLevel,
			Caveat:           "no suspected pass identified; suggesting an optimization-level downgrade only",
		}
	}

	switch family {
	case model.FamilyClang:
		if knownLLVMPasses[pb.SuspectedPass] {
			return model.Workaround{Flag: "-mllvm -disable-" + pb.SuspectedPass}
		}
	case model.FamilyGCC:
		if knownGCCPasses[pb.SuspectedPass] {
			return model.Workaround{Flag: "-fno-" + pb.SuspectedPass}
		}
	}

	return model.Workaround{
		FallbackOptLevel: fallbackOptLevel,
		Caveat:           "no known command-line toggle for pass " + pb.SuspectedPass + "; suggesting an optimization-level downgrade instead",
	}
}
