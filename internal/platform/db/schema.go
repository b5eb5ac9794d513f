package db

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// SchemaObject is a relation the patient store depends on.
type SchemaObject struct {
	Name    string
	Kind    string
	Present bool
}

// RequiredObjects lists the relations created by schema.sql, in creation order.
var RequiredObjects = []SchemaObject{
	{Name: "patients", Kind: "table"},
	{Name: "diagnoses", Kind: "table"},
	{Name: "diagnoses_patient_id_key", Kind: "index"},
}

// SchemaSQL returns the embedded DDL script.
func SchemaSQL() string {
	return schemaSQL
}

// ApplySchema creates the patient tables and the diagnosis uniqueness index if
// they do not exist yet. The script is idempotent and runs in one transaction.
func ApplySchema(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serialize concurrent bootstraps from several replicas.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext('his_schema'))"); err != nil {
		return fmt.Errorf("lock schema: %w", err)
	}

	if _, err := tx.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	return tx.Commit(ctx)
}

// SchemaStatus reports which of RequiredObjects exist in the current search_path.
func SchemaStatus(ctx context.Context, pool *pgxpool.Pool) ([]SchemaObject, error) {
	statuses := make([]SchemaObject, 0, len(RequiredObjects))
	for _, obj := range RequiredObjects {
		var present bool
		if err := pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", obj.Name).Scan(&present); err != nil {
			return nil, fmt.Errorf("check %s %s: %w", obj.Kind, obj.Name, err)
		}
		obj.Present = present
		statuses = append(statuses, obj)
	}
	return statuses, nil
}
