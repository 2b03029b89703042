package checker

import (
	"github.com/carbide-mc/carbide/logging"
	"github.com/carbide-mc/carbide/model"
	"github.com/carbide-mc/carbide/sat"
	"github.com/carbide-mc/carbide/settings"
)

// invariantFound runs the CAR fixpoint scan: frame i is inductive when
// no state of O_i escapes the union of the earlier frames. Frames
// below the last update level only contribute their or-constraints.
func invariantFound(cfg settings.Settings, m *model.Model, log *logging.Logger,
	over *OverSequence, minUpdateLevel int) (bool, error) {

	inv := sat.New(m, cfg.Backend)
	inv.AddTrans()

	for i := 0; i < over.Len(); i++ {
		frame := over.Frame(i)

		if i < minUpdateLevel {
			inv.AddConstraintOr(frame)
			continue
		}

		inv.AddConstraintAnd(frame)
		ok, err := inv.Solve()
		if err != nil {
			return false, err
		}
		inv.FlipLastConstraint()
		if !ok {
			log.L(1, "Proof at frame ", i)
			over.SetInvariantLevel(i - 1)
			return true, nil
		}
		inv.AddConstraintOr(frame)
	}
	return false, nil
}
