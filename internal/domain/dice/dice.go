// Package dice defines the six-sided epidemic dice and the randomness source
// behind every roll. This package is PURE and must NOT import any infrastructure packages.
package dice

import "fmt"

// Face is the value shown by a die. The five disease faces double as the
// index of the disease track they affect.
type Face int

const (
	Avian Face = iota
	Swine
	SARS
	Smallpox
	Ebola
	Panic
)

const (
	// FaceCount is the number of sides on every die.
	FaceCount = 6
	// DiseaseCount is the number of disease faces (every face but Panic).
	DiseaseCount = 5
)

var faceNames = [FaceCount]string{"Avian Flu", "Swine Flu", "SARS", "Smallpox", "Ebola", "Panic!"}
var faceIcons = [FaceCount]string{"avian.png", "swine.png", "sars.png", "smallpox.png", "ebola.png", "panic.png"}
var faceKeys = [FaceCount]string{"avian", "swine", "sars", "smallpox", "ebola", "panic"}

// Faces lists every face in index order.
func Faces() []Face {
	return []Face{Avian, Swine, SARS, Smallpox, Ebola, Panic}
}

// Diseases lists the disease faces in index order.
func Diseases() []Face {
	return []Face{Avian, Swine, SARS, Smallpox, Ebola}
}

// Valid reports whether f is one of the six faces.
func (f Face) Valid() bool {
	return f >= Avian && f <= Panic
}

// IsDisease reports whether f names one of the five diseases.
func (f Face) IsDisease() bool {
	return f >= Avian && f < Panic
}

// Name returns the display name of the face.
func (f Face) Name() string {
	if !f.Valid() {
		return "Unknown"
	}
	return faceNames[f]
}

// Icon returns the image identifier used by clients for the face.
func (f Face) Icon() string {
	if !f.Valid() {
		return "unknown.png"
	}
	return faceIcons[f]
}

// Key returns the stable wire identifier of the face.
func (f Face) Key() string {
	if !f.Valid() {
		return "unknown"
	}
	return faceKeys[f]
}

func (f Face) String() string {
	return f.Name()
}

// MarshalText encodes the face by its key so snapshots stay readable.
func (f Face) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid die face %d", int(f))
	}
	return []byte(faceKeys[f]), nil
}

// UnmarshalText decodes a face key.
func (f *Face) UnmarshalText(text []byte) error {
	parsed, err := ParseFace(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseFace resolves a face key such as "sars" or "panic".
func ParseFace(key string) (Face, error) {
	for i, k := range faceKeys {
		if k == key {
			return Face(i), nil
		}
	}
	return 0, fmt.Errorf("unknown die face %q", key)
}

// Counts tallies dice by face.
type Counts [FaceCount]int

// CountFaces returns how many dice show each face. Invalid faces are ignored.
func CountFaces(dice []Face) Counts {
	var c Counts
	for _, d := range dice {
		if d.Valid() {
			c[d]++
		}
	}
	return c
}
