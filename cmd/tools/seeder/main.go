package main

import (
	"database/sql"
	"log"
	"os"

	"github.com/alexedwards/argon2id"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedCatalog(db)
	seedDemoAccount(db)

	log.Println("Seeding completed successfully!")
}

func seedCatalog(db *sql.DB) {
	categories := []struct {
		Name        string
		Description string
	}{
		{"Sembako", "Kebutuhan pokok sehari-hari"},
		{"Minuman", "Minuman kemasan dan galon"},
		{"Bumbu Dapur", "Bumbu dan rempah masakan"},
		{"Snack", "Makanan ringan"},
	}

	log.Println("Seeding categories...")
	catIDs := make(map[string]int64)
	for _, c := range categories {
		var id int64
		err := db.QueryRow(`
			INSERT INTO categories (name, description)
			VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
			RETURNING id;
		`, c.Name, c.Description).Scan(&id)
		if err != nil {
			log.Printf("Failed to upsert category %s: %v", c.Name, err)
			continue
		}
		catIDs[c.Name] = id
	}

	products := []struct {
		Category string
		Name     string
		Price    float64
		Unit     string
	}{
		{"Sembako", "Beras Premium 5kg", 78000, "karung"},
		{"Sembako", "Minyak Goreng 2L", 36000, "botol"},
		{"Sembako", "Gula Pasir 1kg", 17500, "bungkus"},
		{"Sembako", "Telur Ayam", 28000, "kg"},
		{"Minuman", "Air Mineral Galon", 21000, "galon"},
		{"Minuman", "Teh Botol 450ml", 5500, "botol"},
		{"Bumbu Dapur", "Kecap Manis 600ml", 24000, "botol"},
		{"Bumbu Dapur", "Garam Halus 500g", 6000, "bungkus"},
		{"Snack", "Keripik Singkong 200g", 12000, "bungkus"},
	}

	log.Println("Seeding products...")
	for _, p := range products {
		categoryID, ok := catIDs[p.Category]
		if !ok {
			log.Printf("Skipping product %s: missing category %s", p.Name, p.Category)
			continue
		}
		_, err := db.Exec(`
			INSERT INTO products (category_id, name, price, unit)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (name) DO UPDATE SET price = EXCLUDED.price, unit = EXCLUDED.unit;
		`, categoryID, p.Name, p.Price, p.Unit)
		if err != nil {
			log.Printf("Failed to upsert product %s: %v", p.Name, err)
		}
	}
}

func seedDemoAccount(db *sql.DB) {
	hash, err := argon2id.CreateHash("password123", argon2id.DefaultParams)
	if err != nil {
		log.Fatalf("Failed to hash demo password: %v", err)
	}

	log.Println("Seeding demo account...")
	_, err = db.Exec(`
		INSERT INTO users (email, password_hash, company_name, address, postal_code, province, telephone)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (email) DO NOTHING;
	`, "demo@example.com", hash, "Toko Demo", "Jl. Melati No. 1", "40115", "Jawa Barat", "0812000111")
	if err != nil {
		log.Printf("Failed to seed demo account: %v", err)
	}
}
