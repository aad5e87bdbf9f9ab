package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"lungseg3d/pkg/config"
	"lungseg3d/pkg/isosurface"
	"lungseg3d/pkg/loader"
	"lungseg3d/pkg/segmentation"
	"lungseg3d/pkg/stl"
	"lungseg3d/pkg/visualization"
)

func main() {
	// Parse command line arguments
	scanPath := flag.String("scan", "", "Path to a DICOM directory or a .mhd file")
	outputFile := flag.String("output", "lungs.stl", "Output STL filename")
	step := flag.Int("step", 0, "Marching cubes step size in voxels (0 = use config)")
	cores := flag.Int("cores", 0, "Number of CPU cores to use (0 = use config)")
	configPath := flag.String("config", "lungseg3d.yaml", "Path to the YAML configuration file")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration file and exit")
	extractSlices := flag.Bool("extract-slices", false, "Extract and save windowed slice images along all axes")
	slicesDir := flag.String("slices-dir", "", "Directory to save extracted slices (default: from config)")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write config file: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	// Validate inputs
	if *scanPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *step > 0 {
		cfg.Mesh.StepSize = *step
	}
	if *cores > 0 {
		cfg.Processing.NumCores = *cores
	}
	if *slicesDir != "" {
		cfg.Output.SaveSlices = true
		cfg.Output.SlicesDir = *slicesDir
	}
	if *extractSlices {
		cfg.Output.SaveSlices = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("LUNG SEGMENTATION AND SURFACE EXTRACTION FROM VOLUMETRIC CT")
	fmt.Println("================================")

	// Step 1: load the scan
	fmt.Printf("Step 1: Loading scan from %s...\n", *scanPath)
	startTime := time.Now()
	vol, err := loader.Load(*scanPath)
	if err != nil {
		log.Fatalf("Failed to load scan: %v", err)
	}
	fmt.Printf("Loaded volume %dx%dx%d with spacing %.2fx%.2fx%.2f mm\n",
		vol.Depth, vol.Rows, vol.Cols, vol.Spacing[0], vol.Spacing[1], vol.Spacing[2])

	// Step 2: segment the lung parenchyma
	fmt.Println("Step 2: Segmenting lung parenchyma...")
	opts := segmentation.Options{
		AirThresholdHU:    cfg.Segmentation.AirThresholdHU,
		HoleFillMaxVoxels: cfg.Segmentation.HoleFillMaxVoxels,
		DilationRadius:    cfg.Segmentation.DilationRadius,
		NumCores:          cfg.Processing.NumCores,
	}
	mask, err := segmentation.Segment(vol, opts)
	if err != nil {
		log.Fatalf("Segmentation failed: %v", err)
	}

	stats, err := segmentation.ComputeStats(vol, mask)
	if err != nil {
		log.Fatalf("Failed to compute segmentation statistics: %v", err)
	}
	if stats.SelectedVoxels == 0 {
		fmt.Println("No lungs detected in this scan; output mesh will be empty")
	}

	// Step 3: extract the isosurface
	fmt.Printf("Step 3: Extracting isosurface with step size %d...\n", cfg.Mesh.StepSize)
	mesh, err := isosurface.Extract(mask, cfg.Mesh.StepSize)
	if err != nil {
		log.Fatalf("Isosurface extraction failed: %v", err)
	}

	// Step 4: rescale to physical units and save as STL
	fmt.Printf("Step 4: Writing STL to %s...\n", *outputFile)
	scale := [3]float64{vol.Spacing[2], vol.Spacing[1], vol.Spacing[0]}
	triangles := stl.TrianglesFromMesh(mesh, scale, stl.CenterOffset(vol))
	if err := stl.SaveToSTL(*outputFile, triangles); err != nil {
		log.Fatalf("Failed to save STL file: %v", err)
	}
	processingTime := time.Since(startTime)

	fmt.Printf("\nSegmentation completed in %.2f seconds\n", processingTime.Seconds())
	fmt.Printf("Segmentation summary:\n")
	fmt.Printf("=====================\n")
	fmt.Printf("Selected voxels: %d\n", stats.SelectedVoxels)
	fmt.Printf("Lung volume: %.1f mL\n", stats.VolumeML)
	fmt.Printf("Mean intensity: %.1f HU\n", stats.MeanHU)
	fmt.Printf("Intensity std dev: %.1f HU\n", stats.StdDevHU)
	fmt.Printf("Mesh: %d vertices, %d triangles\n", len(mesh.Vertices), len(mesh.Faces))

	// Optionally export windowed slice images with the mask overlay
	if cfg.Output.SaveSlices {
		fmt.Printf("\nExtracting slice images to %s...\n", cfg.Output.SlicesDir)

		lowHU, highHU := cfg.Display.WindowLowHU, cfg.Display.WindowHighHU
		if cfg.Display.AutoWindow {
			lowHU, highHU = visualization.AutoWindow(vol)
			fmt.Printf("Auto display window: [%.0f, %.0f] HU\n", lowHU, highHU)
		}
		viewer, err := visualization.NewViewer(vol, lowHU, highHU)
		if err != nil {
			log.Fatalf("Failed to create viewer: %v", err)
		}
		if err := viewer.SetMask(mask); err != nil {
			log.Fatalf("Failed to attach mask: %v", err)
		}

		for _, axis := range []string{"x", "y", "z"} {
			if err := viewer.SaveSliceSequence(axis, cfg.Output.SlicesDir); err != nil {
				log.Printf("Warning: Failed to save %s-axis slices: %v", axis, err)
			}
		}
		fmt.Println("Slice extraction completed!")
	}
}
