// Package stack discovers the chain of local branches
// that must be uploaded together with the current branch.
//
// The walk starts at the current branch and follows local upstreams.
// Each step is decided by [Transition] from [Facts]
// observed about the branch and its upstream.
package stack

// State is the outcome of one step of the walk.
type State int

// States of the walk.
const (
	// RootReached: the branch tracks a remote branch.
	// The walk stops.
	RootReached State = iota + 1

	// UnseenUpstream: the upstream was never uploaded.
	// It joins the stack and the walk continues from it.
	UnseenUpstream

	// Covered: the upstream's last upload is the branch's base.
	// The walk stops.
	Covered

	// Behind: the upstream's last upload is an ancestor of the base,
	// so the upstream has new commits too.
	// The walk continues from it.
	Behind

	// AheadDiverged: the base is an ancestor of the upstream's last upload.
	// The branch was not rebased onto its upstream's upload. Fatal.
	AheadDiverged

	// Unrelated: neither the base nor the last upload
	// is an ancestor of the other. Fatal.
	Unrelated
)

func (s State) String() string {
	switch s {
	case RootReached:
		return "root-reached"
	case UnseenUpstream:
		return "unseen-upstream"
	case Covered:
		return "covered"
	case Behind:
		return "behind"
	case AheadDiverged:
		return "ahead-diverged"
	case Unrelated:
		return "unrelated"
	default:
		return "unknown"
	}
}

// Continues reports whether the walk moves on to the upstream.
func (s State) Continues() bool {
	return s == UnseenUpstream || s == Behind
}

// Fatal reports whether the walk fails.
func (s State) Fatal() bool {
	return s == AheadDiverged || s == Unrelated
}

// Facts are the observations about a branch and its upstream
// that decide a step of the walk.
//
// Facts are evaluated lazily by the walker:
// a field is only meaningful if the fields before it
// did not already decide the step.
type Facts struct {
	// LocalUpstream is set if the upstream is another local branch,
	// including a local trunk branch with commits of its own.
	LocalUpstream bool

	// UpstreamUploaded is set if the upstream has a last-upload hash.
	UpstreamUploaded bool

	// BaseIsLastUpload is set if the branch's merge base
	// is the upstream's last upload.
	BaseIsLastUpload bool

	// LastUploadBeforeBase is set if the upstream's last upload
	// is an ancestor of the branch's merge base.
	LastUploadBeforeBase bool

	// BaseBeforeLastUpload is set if the branch's merge base
	// is an ancestor of the upstream's last upload.
	BaseBeforeLastUpload bool
}

// Transition decides the step of the walk for the given facts.
func Transition(f Facts) State {
	switch {
	case !f.LocalUpstream:
		return RootReached
	case !f.UpstreamUploaded:
		return UnseenUpstream
	case f.BaseIsLastUpload:
		return Covered
	case f.LastUploadBeforeBase:
		return Behind
	case f.BaseBeforeLastUpload:
		return AheadDiverged
	default:
		return Unrelated
	}
}
