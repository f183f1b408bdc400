package model

// PackageDescriptor is one element of a manifest document, before
// normalization and hashing.
type PackageDescriptor struct {
	Project     string     `json:"project"`
	Type        string     `json:"type"`
	Description string     `json:"description"`
	Site        string     `json:"site"`
	Files       [][2]string `json:"files"`
}

// FilePairs converts the raw [local, remote] tuples into FilePair values.
func (d PackageDescriptor) FilePairs() []FilePair {
	pairs := make([]FilePair, len(d.Files))
	for i, f := range d.Files {
		pairs[i] = FilePair{Src: f[0], Dst: f[1]}
	}
	return pairs
}
