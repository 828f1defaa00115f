package semver

import (
	"fmt"
	"sort"
	"sync"

	masterminds "github.com/Masterminds/semver/v3"
)

const resolverLogPrefix = "semver:resolver"

// VersionRecord is one registered version of a use case.
type VersionRecord struct {
	Major         int
	Minor         int
	Patch         int
	Prerelease    string
	VersionString string
	// Key is the registry name the version was registered under.
	Key string
}

// NewVersionRecord parses version and returns the record registered under key.
func NewVersionRecord(key, version string) (VersionRecord, error) {
	sv, err := masterminds.StrictNewVersion(version)
	if err != nil {
		return VersionRecord{}, fmt.Errorf("%s - invalid version %q: %w", resolverLogPrefix, version, err)
	}
	return VersionRecord{
		Major:         int(sv.Major()),
		Minor:         int(sv.Minor()),
		Patch:         int(sv.Patch()),
		Prerelease:    sv.Prerelease(),
		VersionString: sv.String(),
		Key:           key,
	}, nil
}

// ToVersionString converts version components to a version string.
func ToVersionString(major, minor, patch int, prerelease string) string {
	base := fmt.Sprintf("%d.%d.%d", major, minor, patch)
	if prerelease != "" {
		return base + "-" + prerelease
	}
	return base
}

// ResolveVersion finds the best matching version for a range. An empty range
// selects the latest stable version of the highest major.
func ResolveVersion(versions []VersionRecord, rangeStr string) *VersionRecord {
	if len(versions) == 0 {
		return nil
	}

	if rangeStr == "" {
		return findLatestInMajor(versions, findHighestMajor(versions))
	}

	if IsMajorOnly(rangeStr) {
		return findLatestInMajor(versions, ExtractMajorFromRange(rangeStr))
	}

	constraint, err := masterminds.NewConstraint(rangeStr)
	if err != nil {
		// If range parsing fails, try as exact version
		return findExactVersion(versions, rangeStr)
	}

	var matching []VersionRecord
	for _, v := range versions {
		sv, err := masterminds.NewVersion(v.VersionString)
		if err != nil {
			continue
		}
		if constraint.Check(sv) {
			matching = append(matching, v)
		}
	}

	if len(matching) == 0 {
		return nil
	}

	sortVersionsDesc(matching)
	return &matching[0]
}

// SatisfiesRange checks if a version string satisfies a range.
func SatisfiesRange(version, rangeStr string) bool {
	if IsMajorOnly(rangeStr) {
		sv, err := masterminds.NewVersion(version)
		if err != nil {
			return false
		}
		return int(sv.Major()) == ExtractMajorFromRange(rangeStr)
	}

	constraint, err := masterminds.NewConstraint(rangeStr)
	if err != nil {
		return false
	}

	sv, err := masterminds.NewVersion(version)
	if err != nil {
		return false
	}

	return constraint.Check(sv)
}

// Index tracks the versions registered for each use-case name.
type Index struct {
	mu       sync.RWMutex
	versions map[string][]VersionRecord
}

// NewIndex creates an empty Index.
func NewIndex() *Index {
	return &Index{versions: make(map[string][]VersionRecord)}
}

// Add records key if it is a versioned reference ("name@1.2.0"). Unversioned
// keys are ignored and report false. Re-adding a version replaces it.
func (x *Index) Add(key string) (bool, error) {
	ref, err := ParseRef(key)
	if err != nil {
		return false, err
	}
	if !ref.HasVersion() {
		return false, nil
	}
	if !IsExactVersion(ref.Range) {
		return false, fmt.Errorf("%s - use case %q must be registered with an exact version", resolverLogPrefix, key)
	}
	rec, err := NewVersionRecord(key, ref.Range)
	if err != nil {
		return false, err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	list := x.versions[ref.Name]
	for i := range list {
		if list[i].VersionString == rec.VersionString {
			list[i] = rec
			return true, nil
		}
	}
	x.versions[ref.Name] = append(list, rec)
	return true, nil
}

// Resolve returns the registry key of the best version of ref's name that
// satisfies its range.
func (x *Index) Resolve(ref *ParsedRef) (string, bool) {
	x.mu.RLock()
	list := append([]VersionRecord(nil), x.versions[ref.Name]...)
	x.mu.RUnlock()

	best := ResolveVersion(list, ref.Range)
	if best == nil {
		return "", false
	}
	return best.Key, true
}

// Versions returns the known versions of name, highest first.
func (x *Index) Versions(name string) []string {
	x.mu.RLock()
	list := append([]VersionRecord(nil), x.versions[name]...)
	x.mu.RUnlock()

	sortVersionsDesc(list)
	out := make([]string, len(list))
	for i, v := range list {
		out[i] = v.VersionString
	}
	return out
}

// --- internal helpers ---

func findHighestMajor(versions []VersionRecord) int {
	highest := -1
	for _, v := range versions {
		if v.Major > highest {
			highest = v.Major
		}
	}
	return highest
}

func findLatestInMajor(versions []VersionRecord, major int) *VersionRecord {
	var inMajor []VersionRecord
	for _, v := range versions {
		if v.Major == major {
			inMajor = append(inMajor, v)
		}
	}

	if len(inMajor) == 0 {
		return nil
	}

	// Prefer latest stable (non-prerelease) in major; if none, use latest including prerelease
	var stable []VersionRecord
	for _, v := range inMajor {
		if v.Prerelease == "" {
			stable = append(stable, v)
		}
	}
	candidates := inMajor
	if len(stable) > 0 {
		candidates = stable
	}

	sortVersionsDesc(candidates)
	return &candidates[0]
}

func findExactVersion(versions []VersionRecord, versionStr string) *VersionRecord {
	for i := range versions {
		if versions[i].VersionString == versionStr {
			return &versions[i]
		}
	}
	return nil
}

func sortVersionsDesc(versions []VersionRecord) {
	sort.Slice(versions, func(i, j int) bool {
		vi, err1 := masterminds.NewVersion(versions[i].VersionString)
		vj, err2 := masterminds.NewVersion(versions[j].VersionString)
		if err1 != nil || err2 != nil {
			return false
		}
		return vi.GreaterThan(vj)
	})
}
