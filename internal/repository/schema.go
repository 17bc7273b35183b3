package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

var errInvalidDimensions = errors.New("embedding dimensions must be positive")

// Schema renders the DDL for the given embedding dimension.
func Schema(dimensions int) (string, error) {
	if dimensions <= 0 {
		return "", errInvalidDimensions
	}

	return strings.ReplaceAll(schemaSQL, "{{dimensions}}", strconv.Itoa(dimensions)), nil
}

// ApplySchema creates the tables used by the pipeline if they do not exist.
func ApplySchema(ctx context.Context, db *pgxpool.Pool, dimensions int) error {
	ddl, err := Schema(dimensions)
	if err != nil {
		return err
	}

	if _, err := db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	return nil
}
