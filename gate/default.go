package gate

// DefaultStages returns the canonical stage order with every optional
// collaborator set to its permissive default (nil providers approve
// unconditionally). Callers substitute real providers by replacing entries
// before constructing the Gate; the order itself must not change.
func DefaultStages(minConfidence float64) []Stage {
	return []Stage{
		DeclarationStage{MinConfidence: minConfidence},
		IdentityBindingStage{},
		CapabilityStage{},
		PolicyStage{},
		RiskStage{},
		CosignatureStage{},
	}
}
