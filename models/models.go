package models

// AllModels lists every persisted entity in dependency order for schema migration
func AllModels() []any {
	return []any{
		&User{},
		&Link{},
		&SocialLink{},
		&ProfileVisit{},
		&LinkClick{},
	}
}
