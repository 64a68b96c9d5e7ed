package intern

import "sync"

var (
	mu     sync.RWMutex
	values = make(map[string]string)
)

// Intern returns a canonical representation for the provided string. Wordlist
// labels and discovered hostnames repeat heavily across sources; interning
// keeps one copy alive per distinct value.
func Intern(s string) string {
	if s == "" {
		return ""
	}

	mu.RLock()
	interned, ok := values[s]
	mu.RUnlock()
	if ok {
		return interned
	}

	mu.Lock()
	defer mu.Unlock()
	if interned, ok := values[s]; ok {
		return interned
	}
	values[s] = s
	return s
}

// Strings interns every element of ss in place and returns ss.
func Strings(ss []string) []string {
	for i, s := range ss {
		ss[i] = Intern(s)
	}
	return ss
}
