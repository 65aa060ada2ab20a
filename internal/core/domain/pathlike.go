package domain

import "strings"

const dirListSeparator = ":"

// SeparateDirList splits a colon-delimited directory list, dropping empty
// entries.
func SeparateDirList(joined string) []string {
	var out []string
	for _, dir := range strings.Split(joined, dirListSeparator) {
		if dir != "" {
			out = append(out, dir)
		}
	}
	return out
}

// JoinDirList is the inverse of SeparateDirList.
func JoinDirList(dirs []string) string {
	return strings.Join(dirs, dirListSeparator)
}

// PrependDirsToPathLike prepends each environment directory, joined with each
// suffix (or bare when there are none), to a PATH-like directory list. The
// result is deduplicated keeping the first occurrence, so environment
// directories shadow whatever was already on the path.
func PrependDirsToPathLike(envDirs, suffixes, pathDirs []string) []string {
	var prepended []string
	for _, dir := range envDirs {
		if len(suffixes) == 0 {
			prepended = append(prepended, dir)
			continue
		}
		for _, suffix := range suffixes {
			prepended = append(prepended, dir+"/"+suffix)
		}
	}

	seen := make(map[string]bool, len(prepended)+len(pathDirs))
	var out []string
	for _, dir := range append(prepended, pathDirs...) {
		if seen[dir] {
			continue
		}
		seen[dir] = true
		out = append(out, dir)
	}
	return out
}
