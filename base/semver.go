package base

import "fmt"

// SemVer is the on-disk WNFS node format version, CBOR-encoded as a
// 3-tuple. Mirrors rs-wnfs's use of semver::Version for PrivateFile and
// PublicDirectory headers.
type SemVer struct {
	Major, Minor, Patch uint32
}

func (v SemVer) String() string { return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch) }

// LatestVersion is the node format version written by this implementation.
var LatestVersion = SemVer{Major: 0, Minor: 2, Patch: 0}
