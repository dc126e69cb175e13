package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Fingerprint is the stable dedup key grouping events believed to be the
// same bug: a hash over (source-file:line:function, check-kind,
// compiler-version, normalized-sorted-flag-list). Two events with
// identical fingerprints are the same bug; two events with different
// fingerprints may still be the same bug (false split acceptable, false
// merge is not).
type Fingerprint string

// ComputeFingerprint derives the Fingerprint for e per the canonical
// tuple in §3. Flags are sorted before hashing so that flag-ordering
// differences between otherwise-identical recipes do not split the
// fingerprint.
func ComputeFingerprint(e AnomalyEvent) Fingerprint {
	flags := append([]string(nil), e.BuildInfo.Flags...)
	sort.Strings(flags)

	tuple := strings.Join([]string{
		e.Location.File,
		fmt.Sprintf("%d", e.Location.Line),
		e.Location.Function,
		string(e.CheckType),
		e.Compiler.Version,
		strings.Join(flags, ","),
	}, "|")

	sum := sha256.Sum256([]byte(tuple))
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// String satisfies fmt.Stringer and is used as the store's bucket key.
func (f Fingerprint) String() string {
	return string(f)
}
