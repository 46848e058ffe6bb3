package envutil

import (
	"sort"
	"strings"

	"github.com/samber/lo"
)

// FromEnvironment converts a KEY=VALUE list, as returned by os.Environ, into a map.
// Later entries override earlier ones with the same key. Entries without a '='
// separator are dropped, the same as os/exec does when building a child environment.
func FromEnvironment(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, entry := range environ {
		// Windows keeps per-drive working directories as "=C:=C:\foo", so the
		// separator search starts after the first character.
		sep := -1
		if len(entry) > 1 {
			if i := strings.IndexByte(entry[1:], '='); i >= 0 {
				sep = i + 1
			}
		}
		if sep < 0 {
			continue
		}
		env[entry[:sep]] = entry[sep+1:]
	}
	return env
}

// ToEnvironment converts a map back into a KEY=VALUE list sorted by key.
func ToEnvironment(env map[string]string) []string {
	return lo.Map(SortedKeys(env), func(k string, _ int) string {
		return k + "=" + env[k]
	})
}

func SortedKeys(env map[string]string) []string {
	keys := lo.Keys(env)
	sort.Strings(keys)
	return keys
}
