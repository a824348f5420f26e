package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/tiendaweb/tienda-backend/config"
	"github.com/tiendaweb/tienda-backend/internal/app/repository"
	"github.com/tiendaweb/tienda-backend/internal/db"
	"github.com/tiendaweb/tienda-backend/internal/spreadsheet"
)

func main() {
	batchSize := flag.Int("batch", 500, "rows per INSERT")
	assumeYes := flag.Bool("y", false, "import without asking for confirmation")
	flag.Parse()

	if flag.NArg() < 1 {
		log.Fatal("Usage: go run cmd/seed/main.go [-y] [-batch N] <xlsx_file_path>")
	}
	filePath := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	productRepo := repository.NewProductRepository(db.GetDB())

	fmt.Printf("Reading XLSX file: %s\n", filePath)
	f, err := os.Open(filePath)
	if err != nil {
		log.Fatal("Failed to open XLSX:", err)
	}
	products, skipped, err := spreadsheet.ReadProducts(f)
	f.Close()
	if err != nil {
		log.Fatal("Failed to read XLSX:", err)
	}

	for _, rowErr := range skipped {
		fmt.Printf("Skipping %s\n", rowErr.Error())
	}
	fmt.Printf("Total products to import: %d (skipped: %d)\n", len(products), len(skipped))
	if len(products) == 0 {
		fmt.Println("Nothing to import.")
		return
	}

	if !*assumeYes {
		fmt.Print("Do you want to proceed with the import? (yes/no): ")
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "yes" && confirm != "y" {
			fmt.Println("Import cancelled.")
			return
		}
	}

	fmt.Printf("Starting bulk import with batch size: %d\n", *batchSize)
	if err := productRepo.CreateBatch(products, *batchSize); err != nil {
		log.Fatal("Failed to bulk create products:", err)
	}

	fmt.Println("Import completed successfully!")
	fmt.Printf("Total products imported: %d\n", len(products))
}
