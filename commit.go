package pkgdb

import (
	"context"

	"github.com/ndlib/pkgdb/errs"
	"github.com/ndlib/pkgdb/model"
)

// Transition is one step of a solved transaction: Old is the currently
// installed package being replaced or removed (nil for a fresh install),
// New is the package to install (nil for a pure removal).
type Transition struct {
	Old, New *model.Package
}

// Solver is the §1 external "solve(world) -> transaction" collaborator:
// dependency resolution proper is out of this core's scope, specified
// here only as the interface RecalculateAndCommit consumes.
type Solver interface {
	Solve(ctx context.Context, world []model.Dependency, db *Database) ([]Transition, error)
}

// RecalculateAndCommit implements §4.H's recalculate_and_commit(): build
// a solver state from world, and if it finds a satisfying assignment,
// install each transition in order and write the configuration back.
// Emits the "OK: N packages, M dirs, F files" summary line on success.
func (db *Database) RecalculateAndCommit(ctx context.Context, solver Solver) error {
	transitions, err := solver.Solve(ctx, db.world, db)
	if err != nil {
		return errs.Wrap(errs.KindResourceLimit, err, "solving world")
	}

	for _, t := range transitions {
		if err := db.InstallPkg(ctx, t.Old, t.New); err != nil {
			return err
		}
	}

	if err := db.WriteConfig(); err != nil {
		return err
	}

	db.bumpStats()
	db.Log.Printf("OK: %d packages, %d dirs, %d files", db.PackageCount(), db.DirCount(), db.FileCount())
	return nil
}
