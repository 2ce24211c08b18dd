package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/marchelocal/marketplace/internal/models"
)

type Config struct {
	DB_HOST       string
	DB_PORT       string
	DB_USER       string
	DB_PASSWORD   string
	DB_NAME       string
	ES_URL        string
	ES_USER       string
	ES_PASSWORD   string
	JWT_SECRET    string
	KAFKA_ADDRESS string
	LOG_LEVEL     string

	// Pricing knobs, injected into the order service so tests can
	// swap rates without touching globals.
	TAX_RATE                string
	BASE_DELIVERY_FEE       string
	FREE_DELIVERY_THRESHOLD string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		DB_HOST:                 os.Getenv("DB_HOST"),
		DB_PORT:                 os.Getenv("DB_PORT"),
		DB_USER:                 os.Getenv("DB_USER"),
		DB_PASSWORD:             os.Getenv("DB_PASSWORD"),
		DB_NAME:                 os.Getenv("DB_NAME"),
		ES_URL:                  os.Getenv("ES_URL"),
		ES_USER:                 os.Getenv("ES_USER"),
		ES_PASSWORD:             os.Getenv("ES_PASSWORD"),
		JWT_SECRET:              os.Getenv("JWT_SECRET"),
		KAFKA_ADDRESS:           os.Getenv("KAFKA_ADDRESS"),
		LOG_LEVEL:               os.Getenv("LOG_LEVEL"),
		TAX_RATE:                os.Getenv("TAX_RATE"),
		BASE_DELIVERY_FEE:       os.Getenv("BASE_DELIVERY_FEE"),
		FREE_DELIVERY_THRESHOLD: os.Getenv("FREE_DELIVERY_THRESHOLD"),
	}

	return config, nil
}

// PricingRules returns the order pricing configuration, falling back to the
// marketplace defaults (20% VAT, 5.00 flat fee waived above 50.00).
func (c *Config) PricingRules() (taxRate, baseFee, freeAbove decimal.Decimal, err error) {
	taxRate = decimal.NewFromFloat(0.20)
	baseFee = decimal.NewFromInt(5)
	freeAbove = decimal.NewFromInt(50)

	if c.TAX_RATE != "" {
		if taxRate, err = decimal.NewFromString(c.TAX_RATE); err != nil {
			return taxRate, baseFee, freeAbove, fmt.Errorf("TAX_RATE: %w", err)
		}
	}
	if c.BASE_DELIVERY_FEE != "" {
		if baseFee, err = decimal.NewFromString(c.BASE_DELIVERY_FEE); err != nil {
			return taxRate, baseFee, freeAbove, fmt.Errorf("BASE_DELIVERY_FEE: %w", err)
		}
	}
	if c.FREE_DELIVERY_THRESHOLD != "" {
		if freeAbove, err = decimal.NewFromString(c.FREE_DELIVERY_THRESHOLD); err != nil {
			return taxRate, baseFee, freeAbove, fmt.Errorf("FREE_DELIVERY_THRESHOLD: %w", err)
		}
	}
	return taxRate, baseFee, freeAbove, nil
}

func InitDB() (*gorm.DB, error) {
	configuration, _ := LoadConfig()

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		configuration.DB_USER,
		configuration.DB_PASSWORD,
		configuration.DB_HOST,
		configuration.DB_PORT,
		configuration.DB_NAME,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Shop{},
		&models.Product{},
		&models.Cart{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.Notification{},
	)
}
