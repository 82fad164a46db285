// Package fingerprint computes the stable digest that identifies an
// environment: a manifest's declared dependencies, services, global
// flag, host platform/arch, and schema tag, reduced to a single
// fixed-width hex string. Any change to a normalized input byte
// changes the digest (spec.md §4.2).
//
// Grounded on the teacher's internal/install/checksum.go
// ComputeFileChecksum, generalized from hashing raw file bytes to
// hashing a canonical JSON encoding of a normalized struct.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// SchemaVersion is the format version tag folded into every
// fingerprint. Bump it whenever the normalized input shape changes, so
// environments computed under an old schema never collide with a new
// one.
const SchemaVersion = 1

// ServiceRef is the normalized shape of one manifest service
// declaration. Name and Port both feed the digest: spec.md §8's
// fingerprint-sensitivity property requires that changing a service's
// port changes the fingerprint, since two projects with the same
// service at different ports must not collide in the env/service
// namespace.
type ServiceRef struct {
	Name string
	Port int
}

// Input is the normalized material the fingerprint is computed over.
// Callers (internal/installengine, internal/activator, cmd/launchpad)
// are responsible for reducing a raw
// Manifest to this canonical shape: sorted dependency keys, each value
// reduced to its canonical constraint string, services sorted by name.
type Input struct {
	Dependencies map[string]string
	Services     []ServiceRef
	Global       bool
	Platform     string
	Arch         string
}

// canonical is the JSON-serializable, field-order-stable projection of
// Input actually hashed. Maps in Go's encoding/json are already
// serialized with sorted keys, so Dependencies needs no extra work;
// Services is sorted explicitly since it arrives as a slice.
type canonical struct {
	Schema       int               `json:"schema"`
	Dependencies map[string]string `json:"dependencies"`
	Services     []ServiceRef      `json:"services"`
	Global       bool              `json:"global"`
	Platform     string            `json:"platform"`
	Arch         string            `json:"arch"`
}

// Compute returns the hex-encoded SHA-256 fingerprint for in.
func Compute(in Input) (string, error) {
	deps := make(map[string]string, len(in.Dependencies))
	for k, v := range in.Dependencies {
		deps[k] = v
	}

	services := make([]ServiceRef, len(in.Services))
	copy(services, in.Services)
	sort.Slice(services, func(i, j int) bool { return services[i].Name < services[j].Name })

	c := canonical{
		Schema:       SchemaVersion,
		Dependencies: deps,
		Services:     services,
		Global:       in.Global,
		Platform:     in.Platform,
		Arch:         in.Arch,
	}

	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// MustCompute is like Compute but panics on error. json.Marshal over
// the canonical struct (plain strings, bools, a map of strings) never
// fails; callers that have already validated their Input may prefer
// this over threading an unreachable error path.
func MustCompute(in Input) string {
	digest, err := Compute(in)
	if err != nil {
		panic(err)
	}
	return digest
}
