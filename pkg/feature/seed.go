package feature

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidSeed indicates a seed file that cannot be used.
var ErrInvalidSeed = errors.New("invalid feature flag seed")

// seedFile is the YAML layout of a seed file:
//
//	flags:
//	  - name: new-checkout
//	    enabled: true
//	    rolloutPercentage: 25
//	    rules:
//	      - kind: group
//	        value: beta-testers
type seedFile struct {
	Flags []*Flag `yaml:"flags"`
}

// LoadSeed parses seed flags from r.
func LoadSeed(r io.Reader) ([]*Flag, error) {
	var sf seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.Join(ErrInvalidSeed, err)
	}

	seen := make(map[string]struct{}, len(sf.Flags))
	for i, f := range sf.Flags {
		if f == nil || f.Name == "" {
			return nil, errors.Join(ErrInvalidSeed, fmt.Errorf("flag #%d has no name", i))
		}
		if _, dup := seen[f.Name]; dup {
			return nil, errors.Join(ErrInvalidSeed, fmt.Errorf("flag %q defined twice", f.Name))
		}
		seen[f.Name] = struct{}{}
		for _, r := range f.Rules {
			if !r.Valid() {
				return nil, errors.Join(ErrInvalidSeed, fmt.Errorf("flag %q: invalid rule %s=%q", f.Name, r.Kind, r.Value))
			}
		}
		f.normalize()
	}
	return sf.Flags, nil
}

// LoadSeedFile parses seed flags from the YAML file at path.
func LoadSeedFile(path string) ([]*Flag, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidSeed, err)
	}
	defer fh.Close()
	return LoadSeed(fh)
}
