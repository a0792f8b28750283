package main

import (
	"context"
	"fmt"

	"sql-smart-go/internal/bootstrap"
	"sql-smart-go/internal/config"
	"sql-smart-go/pkg/database"
	"sql-smart-go/pkg/sqlrunner"

	"github.com/spf13/cobra"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the schema document that would be seeded into memory",
		Long: `Introspect the database catalog and print the schema document together with
its source (live or fallback). Nothing is written to memory and no server is started.`,
		RunE: runSchema,
	}
}

func runSchema(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer database.Close(db)

	timeout := cfg.Bootstrap.Timeout
	if timeout <= 0 {
		timeout = bootstrap.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	res := bootstrap.BuildSchema(ctx, sqlrunner.New(db, 0), cfg.Database.Schema)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "-- source: %s (%d columns)\n", res.Source, res.Facts)
	if res.IntrospectionErr != nil {
		fmt.Fprintf(out, "-- %v\n", res.IntrospectionErr)
	}
	fmt.Fprintln(out, res.Document)
	for _, note := range bootstrap.Annotations {
		fmt.Fprintf(out, "-- note: %s\n", note)
	}
	return nil
}
