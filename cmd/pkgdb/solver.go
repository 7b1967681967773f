package main

import (
	"context"

	"github.com/ndlib/pkgdb"
	"github.com/ndlib/pkgdb/model"
)

// naiveSolver is a stand-in for the §1 external "solve(world) ->
// transaction" collaborator: for every name in world not yet installed,
// it installs the newest available version; constraint satisfaction and
// transitive dependency resolution are left to a real solver, which is
// explicitly out of this module's scope.
type naiveSolver struct{}

func (naiveSolver) Solve(ctx context.Context, world []model.Dependency, db *pkgdb.Database) ([]pkgdb.Transition, error) {
	installed := make(map[string]bool, len(db.Installed()))
	for _, p := range db.Installed() {
		installed[p.NameString()] = true
	}

	var transitions []pkgdb.Transition
	for _, dep := range world {
		if installed[dep.Name] {
			continue
		}
		pkg := db.AvailableByName(dep.Name)
		if pkg == nil {
			continue
		}
		transitions = append(transitions, pkgdb.Transition{New: pkg})
	}
	return transitions, nil
}
