package buildid

import "strings"

// Parsed is the result of splitting a build id back into its components,
// for display purposes (e.g. `kiln plan`, `kiln eject`). It is never used
// to reconstruct an Input — the id is one-way.
type Parsed struct {
	NormalizedName string
	Version        string
	Hash           string // empty when the id was computed under SkipHashEnv
}

// Parse splits id of the form "<normalized-name>-<version>-<40hex>" (or,
// under SkipHashEnv, "<normalized-name>-<version>") back into its parts. It
// is a best-effort split on the last one or two hyphen-separated
// components; it does not attempt to recover the original, pre-normalize
// package name.
func Parse(id string) Parsed {
	parts := strings.Split(id, "-")
	if len(parts) == 0 {
		return Parsed{}
	}
	last := parts[len(parts)-1]
	if isHex40(last) && len(parts) >= 3 {
		return Parsed{
			NormalizedName: strings.Join(parts[:len(parts)-2], "-"),
			Version:        parts[len(parts)-2],
			Hash:           last,
		}
	}
	if len(parts) >= 2 {
		return Parsed{
			NormalizedName: strings.Join(parts[:len(parts)-1], "-"),
			Version:        last,
		}
	}
	return Parsed{NormalizedName: id}
}

func isHex40(s string) bool {
	if len(s) != 40 {
		return false
	}
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
			return false
		}
	}
	return true
}
