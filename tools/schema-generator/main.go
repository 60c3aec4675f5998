package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/grovetools/storyview/config"
	"github.com/grovetools/storyview/logging"
)

func main() {
	outputDir := "schema"
	if len(os.Args) > 1 {
		outputDir = os.Args[1]
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		log.Fatalf("Error creating schema directory: %v", err)
	}

	generators := []struct {
		file     string
		generate func() ([]byte, error)
	}{
		{"storyview.schema.json", config.GenerateSchema},
		{"logging.schema.json", logging.GenerateSchema},
	}
	for _, g := range generators {
		data, err := g.generate()
		if err != nil {
			log.Fatalf("Error generating %s: %v", g.file, err)
		}
		outputPath := filepath.Join(outputDir, g.file)
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			log.Fatalf("Error writing schema file: %v", err)
		}
		log.Printf("Successfully generated schema at %s", outputPath)
	}
}
