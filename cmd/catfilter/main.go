package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"iclcontours/pkg/catalog"
)

func main() {
	in := flag.String("in", "", "Input catalog CSV")
	out := flag.String("out", "", "Filtered catalog CSV (default: <in>.filtered.csv)")
	preset := flag.String("preset", "", "Filter preset: "+strings.Join(catalog.Presets(), ", "))
	flag.Parse()

	if *in == "" || *preset == "" {
		flag.Usage()
		os.Exit(1)
	}
	if *out == "" {
		*out = strings.TrimSuffix(*in, ".csv") + ".filtered.csv"
	}

	filter, err := catalog.Preset(*preset)
	if err != nil {
		log.Fatalf("%v", err)
	}

	src, err := os.Open(*in)
	if err != nil {
		log.Fatalf("Failed to open catalog: %v", err)
	}
	defer src.Close()

	dst, err := os.Create(*out)
	if err != nil {
		log.Fatalf("Failed to create output: %v", err)
	}

	stats, err := filter.Apply(src, dst)
	if err != nil {
		dst.Close()
		log.Fatalf("Failed to filter catalog: %v", err)
	}
	if err := dst.Close(); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}

	for _, rule := range stats.Skipped {
		fmt.Printf("Skipped rule %q: column not present\n", rule)
	}
	fmt.Printf("Filtered %s catalog saved to %s (%d of %d rows kept)\n", filter.Name, *out, stats.Kept, stats.Read)
}
