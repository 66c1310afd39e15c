//go:build cullingdebug

package registry

import "fmt"

// checkSnapshot panics when the indexes disagree with the occluder set.
// Index corruption is a programming error, so it is only checked in debug builds.
func checkSnapshot(s *Snapshot) {
	if err := validateSnapshot(s); err != nil {
		panic(fmt.Sprintf("registry: corrupt snapshot %d: %v", s.Version, err))
	}
}

func validateSnapshot(s *Snapshot) error {
	if len(s.ordered) != len(s.occluders) {
		return fmt.Errorf("ordered list has %d occluders, map has %d", len(s.ordered), len(s.occluders))
	}
	if got := s.static.Len() + s.dynamic.Len(); got != len(s.occluders) {
		return fmt.Errorf("indexes hold %d occluders, map has %d", got, len(s.occluders))
	}

	seen := make(map[ID]bool, len(s.occluders))
	var err error
	check := func(dynamic bool) func(*Occluder) {
		return func(o *Occluder) {
			switch {
			case err != nil:
			case seen[o.ID]:
				err = fmt.Errorf("occluder %d indexed twice", o.ID)
			case s.occluders[o.ID] != o:
				err = fmt.Errorf("occluder %d in index is stale", o.ID)
			case o.Dynamic != dynamic:
				err = fmt.Errorf("occluder %d in wrong index", o.ID)
			}
			seen[o.ID] = true
		}
	}
	s.static.Walk(check(false))
	s.dynamic.Walk(check(true))
	return err
}
