package index

// Retirer is the explicit handle every index variant uses to hand off a
// detached structural node for epoch-gated reclamation, rather than
// reaching a global epoch manager implicitly.
// *epoch.Manager and *epoch.RetirementQueue both satisfy this.
type Retirer interface {
	Retire(free func())
}

// noopRetirer runs each free function immediately, with no epoch gating;
// every constructor substitutes it when given a nil retirer.
type noopRetirer struct{}

func (noopRetirer) Retire(free func()) { free() }
