package models

import (
	"github.com/hunttickets/backoffice_backend/config"
	"gorm.io/gorm"
)

// SourceTables are owned by the sales platform; the back-office only reads them.
func SourceTables() []string {
	return []string{
		AppTransaction{}.TableName(),
		WebTransaction{}.TableName(),
		CashTransaction{}.TableName(),
		"tickets",
		Credential{}.TableName(),
		"profiles",
	}
}

// GuardSourceTables installs the read-only guard for SourceTables on db.
func GuardSourceTables(db *gorm.DB) error {
	return db.Use(config.NewReadOnlyGuardPlugin(SourceTables()...))
}

// MigrateTable creates the tables the back-office owns. Channel, ticket, credential
// and profile tables belong to the sales platform and are only created when
// withSourceTables is set (local development).
func MigrateTable(db *gorm.DB, withSourceTables bool) error {
	if err := db.AutoMigrate(&Advance{}, &EventFee{}); err != nil {
		return err
	}
	if !withSourceTables {
		return nil
	}
	return db.AutoMigrate(
		&AppTransaction{}, &WebTransaction{}, &CashTransaction{},
		&Ticket{}, &Credential{}, &Profile{},
	)
}
