package model

type DirectiveKind string

const (
	DirectiveAdmit    DirectiveKind = "admit"
	DirectiveRestrict DirectiveKind = "restrict"
	DirectiveKick     DirectiveKind = "kick"
)

// Directive is an instruction the engine emits for the platform to execute.
type Directive struct {
	Kind   DirectiveKind
	ChatID int64
	UserID int64
	Reason string
}
