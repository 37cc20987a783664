package registry

// Default returns the built-in verb registry shipped with runbookd. It
// covers the entity/CBU onboarding domain the rest of the codebase's
// tests and the CLI's default configuration exercise. There is no loader
// for additional VerbDef sets: the daemon and CLI use exactly this list.
func Default() *Registry {
	return New([]VerbDef{
		{
			Name: "entity.create",
			Args: []ArgSpec{
				{Name: "name", SemType: String(), Required: AlwaysRequired(), Validation: []ValidationRule{{Kind: RuleNotEmpty}}},
				{Name: "kind", SemType: Enum("corporation", "partnership", "trust", "individual"), Required: AlwaysRequired()},
				{Name: "active", SemType: Boolean(), Required: NeverRequired()},
			},
			Produces: &CaptureRule{CapturesSymbol: true, SemType: Ref("entity")},
		},
		{
			Name: "cbu.link",
			Args: []ArgSpec{
				{Name: "entity", SemType: Symbol(), Required: AlwaysRequired()},
				{Name: "cbu", SemType: Ref("cbu"), Required: RequiredUnless("entity")},
				{Name: "role", SemType: Enum("owner", "beneficiary", "signatory"), Required: AlwaysRequired()},
			},
			Constraints: []CrossConstraint{
				{Kind: ExactlyOne, Args: []string{"entity", "cbu"}},
			},
		},
		{
			Name: "cbu.create",
			Args: []ArgSpec{
				{Name: "name", SemType: String(), Required: AlwaysRequired()},
				{Name: "jurisdiction", SemType: String(), Required: AlwaysRequired()},
			},
			Produces: &CaptureRule{CapturesSymbol: true, SemType: Ref("cbu")},
		},
		{
			Name: "position.book",
			Args: []ArgSpec{
				{Name: "account", SemType: Ref("account"), Required: AlwaysRequired(), Mutating: true},
				{Name: "instrument", SemType: Ref("instrument"), Required: AlwaysRequired()},
				{Name: "qty", SemType: Decimal(), Required: AlwaysRequired()},
				{Name: "effective_from", SemType: Date(), Required: AlwaysRequired()},
				{Name: "effective_to", SemType: Date(), Required: NeverRequired()},
			},
			Constraints: []CrossConstraint{
				{Kind: LessThan, A: "effective_from", B: "effective_to"},
			},
		},
		{
			Name: "compliance.screen",
			Args: []ArgSpec{
				{Name: "entity", SemType: Symbol(), Required: AlwaysRequired()},
				{Name: "list", SemType: Enum("sanctions", "pep", "adverse_media"), Required: AlwaysRequired()},
				{Name: "as_of", SemType: Date(), Required: NeverRequired()},
			},
		},
		{
			Name: "approval.request",
			Args: []ArgSpec{
				{Name: "subject", SemType: Symbol(), Required: AlwaysRequired()},
				{Name: "approver_role", SemType: String(), Required: AlwaysRequired()},
			},
			Produces: &CaptureRule{CapturesSymbol: true, SemType: Ref("approval")},
		},
		{
			Name: "notify.send",
			Args: []ArgSpec{
				{Name: "to", SemType: String(), Required: AlwaysRequired(), Validation: []ValidationRule{{Kind: RuleValidEmail}}},
				{Name: "template", SemType: String(), Required: AlwaysRequired()},
			},
		},
	})
}
