package core

import "runtime/debug"

// EngineVersion reports the backing engine as "name/version", with the
// version taken from the build's module graph. Falls back to the bare
// name when build info is unavailable (e.g. non-module builds).
func EngineVersion(name, modulePath string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return name
	}
	for _, dep := range info.Deps {
		if dep.Path == modulePath {
			return name + "/" + dep.Version
		}
	}
	return name
}
