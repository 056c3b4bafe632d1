// Package workflow holds the pure stage transition rules for a visit.
// It performs no I/O; callers commit the actual mutation.
package workflow

import (
	"github.com/afyacare/clinic-api/internal/domain/entity"
	"github.com/afyacare/clinic-api/internal/domain/enum"
	"github.com/afyacare/clinic-api/pkg/apperror"
)

// transitions is the declared stage graph. Forward path
// Reception -> Nurse -> Doctor -> Pharmacy -> Billing -> Completed,
// with Doctor -> Lab -> Doctor as the optional detour.
var transitions = map[enum.VisitStage][]enum.VisitStage{
	enum.StageReception: {enum.StageNurse},
	enum.StageNurse:     {enum.StageDoctor},
	enum.StageDoctor:    {enum.StageLab, enum.StagePharmacy},
	enum.StageLab:       {enum.StageDoctor},
	enum.StagePharmacy:  {enum.StageBilling},
	enum.StageBilling:   {enum.StageCompleted},
}

// stageOwners maps each stage to the role that may work it
var stageOwners = map[enum.VisitStage]enum.StaffRole{
	enum.StageReception: enum.RoleReceptionist,
	enum.StageNurse:     enum.RoleNurse,
	enum.StageDoctor:    enum.RoleDoctor,
	enum.StageLab:       enum.RoleLabTech,
	enum.StagePharmacy:  enum.RolePharmacist,
	enum.StageBilling:   enum.RoleAccountant,
	// Completed is reached through reconciliation, performed under the
	// accountant's authority or by the system itself.
	enum.StageCompleted: enum.RoleAccountant,
}

// StageOwner returns the role owning the given stage
func StageOwner(stage enum.VisitStage) enum.StaffRole {
	return stageOwners[stage]
}

// NextStage returns the default forward stage after the given one.
// The Doctor stage defaults to Pharmacy; the Lab detour is chosen by the
// caller when a test is ordered.
func NextStage(stage enum.VisitStage) (enum.VisitStage, bool) {
	next, ok := transitions[stage]
	if !ok || len(next) == 0 {
		return stage, false
	}
	return next[len(next)-1], true
}

// EdgeAllowed reports whether from -> to is an edge of the stage graph
func EdgeAllowed(from, to enum.VisitStage) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// CanTransition validates a requested stage transition against the visit
// state and the actor's role. It returns nil when the transition is legal
// and a StageGuardViolation carrying the unmet precondition otherwise.
func CanTransition(visit *entity.Visit, from, to enum.VisitStage, actor enum.StaffRole) error {
	if visit.Status != enum.VisitStatusActive {
		return apperror.NewStageGuardViolation("visit is not active")
	}
	if visit.CurrentStage != from {
		return apperror.NewStageGuardViolation(
			"visit is at stage " + visit.CurrentStage.String() + ", not " + from.String())
	}
	if !EdgeAllowed(from, to) {
		return apperror.NewStageGuardViolation(
			"no transition from " + from.String() + " to " + to.String())
	}
	if record := visit.StageRecord(from); record != nil && record.Status != enum.StageStatusCompleted {
		return apperror.NewStageGuardViolation(
			"stage " + from.String() + " is not completed")
	}
	if actor != enum.RoleAdmin && actor != stageOwners[to] && actor != stageOwners[from] {
		return apperror.NewStageGuardViolation(
			"role " + actor.String() + " does not own stage " + to.String())
	}
	return nil
}
