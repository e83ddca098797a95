package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/grovetools/envwatch/config"
	"github.com/grovetools/envwatch/logging"
)

func main() {
	schemaBytes, err := config.GenerateSchema(map[string]interface{}{
		"logging": &logging.Config{},
	})
	if err != nil {
		log.Fatalf("Error generating schema: %v", err)
	}

	outputPath := filepath.Join("schema", "envwatch.schema.json")
	if err := os.WriteFile(outputPath, append(schemaBytes, '\n'), 0644); err != nil {
		log.Fatalf("Error writing schema file: %v", err)
	}

	log.Printf("Successfully generated schema at %s", outputPath)
}
