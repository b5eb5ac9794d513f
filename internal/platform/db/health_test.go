package db

import (
	"errors"
	"testing"
)

func TestNewHealthReport_Healthy(t *testing.T) {
	stats := &PoolStats{TotalConns: 5, MaxConns: 20, Healthy: true}
	schema := []SchemaObject{
		{Name: "patients", Kind: "table", Present: true},
		{Name: "diagnoses", Kind: "table", Present: true},
		{Name: "diagnoses_patient_id_key", Kind: "index", Present: true},
	}

	report := NewHealthReport(stats, nil, schema)
	if report.Status != "healthy" {
		t.Errorf("expected healthy, got %s (%s)", report.Status, report.Error)
	}
	if !report.Pool.Healthy {
		t.Error("expected pool to stay healthy")
	}
	if len(report.Schema) != 3 || !report.Schema["diagnoses"] {
		t.Errorf("unexpected schema map: %v", report.Schema)
	}
}

func TestNewHealthReport_PingFailure(t *testing.T) {
	stats := &PoolStats{TotalConns: 1, Healthy: true}

	report := NewHealthReport(stats, errors.New("connection refused"), nil)
	if report.Status != "unhealthy" {
		t.Errorf("expected unhealthy, got %s", report.Status)
	}
	if report.Error != "connection refused" {
		t.Errorf("expected ping error in report, got %q", report.Error)
	}
	if stats.Healthy {
		t.Error("expected pool stats to be marked unhealthy")
	}
	if report.Schema != nil {
		t.Error("expected no schema section when ping fails")
	}
}

func TestNewHealthReport_MissingIndex(t *testing.T) {
	stats := &PoolStats{TotalConns: 2, Healthy: true}
	schema := []SchemaObject{
		{Name: "patients", Kind: "table", Present: true},
		{Name: "diagnoses", Kind: "table", Present: true},
		{Name: "diagnoses_patient_id_key", Kind: "index", Present: false},
	}

	report := NewHealthReport(stats, nil, schema)
	if report.Status != "unhealthy" {
		t.Errorf("expected unhealthy when the upsert index is missing, got %s", report.Status)
	}
	if report.Error != "schema incomplete: missing index diagnoses_patient_id_key" {
		t.Errorf("unexpected error: %q", report.Error)
	}
}
