package cellib

// JarSnapshot is the durable projection of a jar: cookies nested by
// domain, then path, then name. This is the layout persisted records use.
type JarSnapshot map[string]map[string]map[string]JarEntry

// Snapshot copies the jar into its durable nested-map form.
func (j *Jar) Snapshot() JarSnapshot {
	snap := make(JarSnapshot)
	for key, e := range j.Entries {
		byPath := snap[key.Domain]
		if byPath == nil {
			byPath = make(map[string]map[string]JarEntry)
			snap[key.Domain] = byPath
		}
		byName := byPath[key.Path]
		if byName == nil {
			byName = make(map[string]JarEntry)
			byPath[key.Path] = byName
		}
		byName[key.Name] = e
	}
	return snap
}

// JarFromSnapshot rebuilds a jar from its durable form.
func JarFromSnapshot(snap JarSnapshot) *Jar {
	j := NewJar()
	for domain, byPath := range snap {
		for path, byName := range byPath {
			for name, e := range byName {
				j.Entries[JarKey{Domain: domain, Path: path, Name: name}] = e
			}
		}
	}
	return j
}
