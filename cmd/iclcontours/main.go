package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"iclcontours/pkg/config"
	"iclcontours/pkg/frameio"
	"iclcontours/pkg/pipeline"
	"iclcontours/pkg/visualization"
)

func main() {
	// Parse command line arguments
	fitsPath := flag.String("fits", "", "Path to the F277W mosaic FITS file")
	hdu := flag.Int("hdu", frameio.AutoHDU, "HDU index to read (default: SCI extension, else first 2D image)")
	outDir := flag.String("out-dir", "data/processed/icl_contours", "Output directory")
	isophotes := flag.String("isophotes", "27.5,28.0,28.5", "Comma separated list of mag/arcsec^2 isophote levels")
	configPath := flag.String("config", "", "YAML configuration file")
	initConfig := flag.String("init-config", "", "Write the default configuration to this path and exit")
	numCores := flag.Int("cores", 0, "Number of CPU cores to use (default: from config, all available)")
	timeout := flag.Duration("timeout", 0, "Abort the run after this duration (0: no limit)")
	saveIntermediary := flag.Bool("save-intermediary", false, "Save intermediary results during processing")
	intermediaryDir := flag.String("intermediary-dir", "intermediary_results", "Directory to save intermediary results")
	preview := flag.Bool("preview", false, "Render all contour levels to preview.png in the output directory")
	verbose := flag.Bool("verbose", true, "Print progress for every stage")
	flag.Parse()

	if *initConfig != "" {
		if err := config.CreateDefaultConfigFile(*initConfig); err != nil {
			log.Fatalf("Failed to write default configuration: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *initConfig)
		return
	}

	// Validate inputs
	if *fitsPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}

	// explicit flags win over the configuration file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "cores":
			cfg.Processing.NumCores = *numCores
		case "timeout":
			cfg.Processing.Timeout = *timeout
		case "save-intermediary":
			cfg.Output.SaveIntermediaryResults = *saveIntermediary
		case "intermediary-dir":
			cfg.Output.IntermediaryDir = *intermediaryDir
		case "preview":
			cfg.Output.Preview = *preview
		case "verbose":
			cfg.Output.Verbose = *verbose
		case "isophotes":
			levels, err := config.ParseLevels(*isophotes)
			if err != nil {
				log.Fatalf("Invalid -isophotes: %v", err)
			}
			cfg.Isophotes = levels
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("ICL ISOPHOTE EXTRACTION")
	fmt.Println("================================")

	fmt.Printf("Loading %s...\n", *fitsPath)
	frame, err := frameio.LoadFITS(*fitsPath, *hdu)
	if err != nil {
		log.Fatalf("Failed to load frame: %v", err)
	}
	fmt.Printf("Loaded %dx%d frame", frame.Width, frame.Height)
	if frame.PixelScale > 0 {
		fmt.Printf(" at %.4f arcsec/pixel", frame.PixelScale)
	}
	fmt.Println()

	params := pipeline.ParamsFromConfig(cfg)
	p := pipeline.NewPipeline(params)

	startTime := time.Now()
	result, err := p.Process(context.Background(), frame, cfg.Isophotes)
	if err != nil {
		log.Fatalf("Isophote extraction failed: %v", err)
	}
	processingTime := time.Since(startTime)

	paths, err := frameio.WriteContourSets(*outDir, result.ContourSets)
	if err != nil {
		log.Fatalf("Failed to write contours: %v", err)
	}
	for i, set := range result.ContourSets {
		fmt.Printf("Saved %d contours at %.1f mag/arcsec² to %s\n", len(set.Contours), set.Level, paths[i])
	}

	summary := frameio.NewSummary(result.RunID, result.Shape, result.ContourSets, paths)
	summary.Source = filepath.Base(*fitsPath)
	summary.ZeroPoint = params.ZeroPoint
	summary.Sources = result.Sources
	summary.Masked = result.Masked
	summary.Degenerate = result.Degenerate
	if err := frameio.WriteSummary(*outDir, summary); err != nil {
		log.Fatalf("Failed to write summary: %v", err)
	}

	if cfg.Output.Preview && result.Smoothed != nil {
		previewPath := filepath.Join(*outDir, "preview.png")
		if err := visualization.PlotContours(previewPath, result.Shape, result.ContourSets); err != nil {
			log.Printf("Warning: Failed to render preview: %v", err)
		} else {
			fmt.Printf("Preview saved to %s\n", previewPath)
		}
	}

	fmt.Printf("\nRun %s completed in %.2f seconds\n", result.RunID, processingTime.Seconds())
	if result.Degenerate {
		fmt.Println("Warning: every pixel was masked as a source; contour sets are empty")
	}

	// Print information about intermediary results if saved
	if cfg.Output.SaveIntermediaryResults {
		fmt.Println("\nIntermediary results saved to:")
		fmt.Printf("%s\n", cfg.Output.IntermediaryDir)
		fmt.Println("The following stages were saved:")
		fmt.Println("- 01_background: Background model")
		fmt.Println("- 02_residual: Background-subtracted frame")
		fmt.Println("- 03_mask: Source mask")
		fmt.Println("- 04_masked_residual: Residual with sources removed")
		fmt.Println("- 05_smoothed: Median-smoothed diffuse light")
	}
}
