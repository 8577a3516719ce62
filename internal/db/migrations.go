package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`,
	`CREATE TABLE IF NOT EXISTS tenants (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'matriz',
		parent_id UUID,
		owner_id UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_tenants_parent ON tenants (parent_id);`,
	`CREATE INDEX IF NOT EXISTS idx_tenants_owner ON tenants (owner_id);`,
	`CREATE TABLE IF NOT EXISTS entry_records (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		tenant_id UUID NOT NULL,
		entry_time TIMESTAMPTZ,
		exit_time TIMESTAMPTZ,
		driver_id UUID,
		vehicle_id UUID,
		cached_driver_name TEXT NOT NULL DEFAULT '',
		cached_driver_document TEXT NOT NULL DEFAULT '',
		cached_vehicle_plate TEXT NOT NULL DEFAULT '',
		cached_vehicle_model TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_entry_records_tenant_entry ON entry_records (tenant_id, entry_time);`,
	`CREATE INDEX IF NOT EXISTS idx_entry_records_tenant_created ON entry_records (tenant_id, created_at);`,
	`CREATE TABLE IF NOT EXISTS occurrence_records (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		tenant_id UUID NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_occurrence_records_tenant_created ON occurrence_records (tenant_id, created_at);`,
	`CREATE TABLE IF NOT EXISTS driver_records (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		tenant_id UUID NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		document TEXT NOT NULL DEFAULT '',
		photo_url TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_driver_records_tenant ON driver_records (tenant_id);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
