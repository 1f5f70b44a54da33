package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vnkhanh/companion-tutor-backend/models"
)

type Config struct {
	Env  string
	Port string

	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	AuthJWTSecret string
	AuthJWTIssuer string

	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string

	VapiAPIKey  string
	VapiBaseURL string

	GeminiAPIKey string
	GeminiModel  string

	CORSOrigins []string

	ReconcileSchedule    string
	ReconcileMaxAttempts int
	ReconcileBaseDelay   time.Duration
	ReconcileMaxPages    int
}

// Load đọc .env (nếu có) rồi lấy cấu hình từ biến môi trường, chỉ một lần khi khởi động
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:  getEnv("APP_ENV", "development"),
		Port: getEnv("PORT", "8080"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", ""),
		DBName:      getEnv("DB_NAME", "companions"),
		DBSSLMode:   getEnv("DB_SSLMODE", "disable"),

		AuthJWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		AuthJWTIssuer: getEnv("AUTH_JWT_ISSUER", ""),

		SupabaseURL:    strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseKey:    getEnv("SUPABASE_KEY", ""),
		SupabaseBucket: getEnv("SUPABASE_BUCKET", "companion-pdfs"),

		VapiAPIKey:  getEnv("VAPI_API_KEY", ""),
		VapiBaseURL: strings.TrimRight(getEnv("VAPI_BASE_URL", "https://api.vapi.ai"), "/"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),

		ReconcileSchedule:    getEnv("RECONCILE_SCHEDULE", "@every 1m"),
		ReconcileMaxAttempts: getEnvInt("RECONCILE_MAX_ATTEMPTS", 6),
		ReconcileBaseDelay:   getEnvDuration("RECONCILE_BASE_DELAY", 15*time.Second),
		ReconcileMaxPages:    getEnvInt("RECONCILE_MAX_PAGES", 10),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate chỉ kiểm tra sự có mặt của các khoá bắt buộc
func (c *Config) Validate() error {
	var missing []string
	required := map[string]string{
		"AUTH_JWT_SECRET": c.AuthJWTSecret,
		"SUPABASE_URL":    c.SupabaseURL,
		"SUPABASE_KEY":    c.SupabaseKey,
		"VAPI_API_KEY":    c.VapiAPIKey,
		"GEMINI_API_KEY":  c.GeminiAPIKey,
	}
	for _, key := range []string{"AUTH_JWT_SECRET", "SUPABASE_URL", "SUPABASE_KEY", "VAPI_API_KEY", "GEMINI_API_KEY"} {
		if required[key] == "" {
			missing = append(missing, key)
		}
	}
	if c.DatabaseURL == "" && c.DBPassword == "" {
		missing = append(missing, "DATABASE_URL or DB_PASSWORD")
	}
	if len(missing) > 0 {
		return errors.New("missing required configuration: " + strings.Join(missing, ", "))
	}
	if c.ReconcileMaxAttempts < 1 {
		return fmt.Errorf("RECONCILE_MAX_ATTEMPTS must be >= 1, got %d", c.ReconcileMaxAttempts)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// DSN ưu tiên DATABASE_URL (Supabase cung cấp sẵn), nếu không thì ghép từ DB_*
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode,
	)
}

// InitDB kết nối Postgres, cấu hình pool và AutoMigrate các bảng
func InitDB(cfg *Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: NewGormLogger(log.Named("gorm"), logger.Warn),
		// quiz/quiz_results giữ lại khi companion bị xoá
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB from gorm: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("postgres connected & migrated")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Companion{},
		&models.SessionHistory{},
		&models.Quiz{},
		&models.QuizResult{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
